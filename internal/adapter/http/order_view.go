package http

import (
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

// orderView is the wire shape of an order. Money renders both as paise
// and as a rupee string so clients never have to divide.
type orderView struct {
	ID           string          `json:"id"`
	OrderNumber  string          `json:"orderNumber"`
	Status       string          `json:"status"`
	Items        []orderItemView `json:"items"`
	Subtotal     int64           `json:"subtotalPaise"`
	Discount     int64           `json:"discountPaise"`
	DiscountCode string          `json:"discountCode,omitempty"`
	Tax          int64           `json:"taxPaise"`
	ShippingCost int64           `json:"shippingCostPaise"`
	Amount       int64           `json:"amountPaise"`
	AmountRupees string          `json:"amount"`

	PaymentStatus string     `json:"paymentStatus"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`

	TrackingID  string     `json:"trackingId,omitempty"`
	CourierName string     `json:"courierName,omitempty"`
	ShippedAt   *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`

	ShippingAddress addressView `json:"shippingAddress"`

	RefundStatus string `json:"refundStatus,omitempty"`
	ReturnStatus string `json:"returnStatus,omitempty"`

	CancelledBy        string     `json:"cancelledBy,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`

	InvoiceNumber string    `json:"invoiceNumber,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type orderItemView struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Price     int64  `json:"pricePaise"`
	Qty       int    `json:"qty"`
}

type addressView struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
}

func viewOf(o *domain.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemView{
			ProductID: it.ProductID,
			Title:     it.Title,
			Price:     int64(it.Price),
			Qty:       it.Qty,
		})
	}
	v := orderView{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		Status:       string(o.Status),
		Items:        items,
		Subtotal:     int64(o.Subtotal),
		Discount:     int64(o.Discount),
		DiscountCode: o.DiscountCode,
		Tax:          int64(o.Tax),
		ShippingCost: int64(o.ShippingCost),
		Amount:       int64(o.Amount),
		AmountRupees: o.Amount.Rupees(),

		PaymentStatus: string(o.Payment.Status),
		PaidAt:        o.Payment.PaidAt,

		TrackingID:  o.Logistics.TrackingID,
		CourierName: o.Logistics.CourierName,
		ShippedAt:   o.Logistics.ShippedAt,
		DeliveredAt: o.Logistics.DeliveredAt,

		ShippingAddress: addressView{
			Name:    o.ShippingAddress.Name,
			Phone:   o.ShippingAddress.Phone,
			Street:  o.ShippingAddress.Street,
			City:    o.ShippingAddress.City,
			State:   o.ShippingAddress.State,
			Pincode: o.ShippingAddress.Pincode,
			Country: o.ShippingAddress.Country,
		},

		CancelledAt:        o.CancelledAt,
		CancellationReason: o.CancellationReason,
		InvoiceNumber:      o.InvoiceNumber,
		CreatedAt:          o.CreatedAt,
	}
	if o.CancelledBy != "" {
		v.CancelledBy = string(o.CancelledBy)
	}
	if o.RefundStatus != domain.RefundNone {
		v.RefundStatus = string(o.RefundStatus)
	}
	if o.Return.Status != domain.ReturnNone {
		v.ReturnStatus = string(o.Return.Status)
	}
	return v
}
