package usecase

// Event names published to the notification exchange. Consumers
// (email worker, invoice worker) subscribe by routing key.
const (
	EventOrderConfirmed  = "order.confirmed"
	EventOrderCancelled  = "order.cancelled"
	EventOrderShipped    = "order.shipped"
	EventOrderDelivered  = "order.delivered"
	EventRefundProcessed = "refund.processed"
)

// OrderEventMsg is the wire payload for order lifecycle events.
type OrderEventMsg struct {
	Event       string `json:"event"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
	Status      string `json:"status"`
	AmountPaise int64  `json:"amountPaise"`
}

// TrackingEventMsg is consumed from the courier events topic.
type TrackingEventMsg struct {
	AWB           string `json:"awb"`
	CurrentStatus string `json:"currentStatus"`
	DeliveredDate string `json:"deliveredDate,omitempty"`
}
