package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending            PaymentStatus = "pending"
	PaymentPaid               PaymentStatus = "paid"
	PaymentFailed             PaymentStatus = "failed"
	PaymentRefunded           PaymentStatus = "refunded"
	PaymentVerificationFailed PaymentStatus = "verification_failed"
)

type RefundStatus string

const (
	RefundNone       RefundStatus = "none"
	RefundRequested  RefundStatus = "requested"
	RefundProcessing RefundStatus = "processing"
	RefundRefunded   RefundStatus = "refunded"
	RefundFailed     RefundStatus = "failed"
)

type ReturnStatus string

const (
	ReturnNone            ReturnStatus = "none"
	ReturnRequested       ReturnStatus = "requested"
	ReturnApproved        ReturnStatus = "approved"
	ReturnRejected        ReturnStatus = "rejected"
	ReturnPickupScheduled ReturnStatus = "pickup_scheduled"
	ReturnPickedUp        ReturnStatus = "picked_up"
	ReturnCompleted       ReturnStatus = "completed"
)

type LogisticsStatus string

const (
	LogisticsCreated   LogisticsStatus = "created"
	LogisticsShipped   LogisticsStatus = "shipped"
	LogisticsInTransit LogisticsStatus = "in_transit"
	LogisticsDelivered LogisticsStatus = "delivered"
	LogisticsRTO       LogisticsStatus = "rto"
	LogisticsCancelled LogisticsStatus = "cancelled"
)

type Actor string

const (
	ActorUser   Actor = "user"
	ActorSystem Actor = "system"
	ActorAdmin  Actor = "admin"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyShipped    = errors.New("order already shipped")
	ErrAmountMismatch    = errors.New("order amount mismatch")
)

// transitions is the allow-list for the primary order status. Anything
// not listed here is rejected. delivered and cancelled are terminal;
// return/refund sub-workflows attach without reopening the status.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
}

// CanTransitionTo reports whether target is in the allow-list for s.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// OrderItem is a line snapshot captured from the catalog at creation
// time. Prices are never re-read from the catalog afterward.
type OrderItem struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Price     Paise  `json:"price"`
	Qty       int    `json:"qty"`
}

type AttemptStatus string

const (
	AttemptInitiated AttemptStatus = "initiated"
	AttemptSuccess   AttemptStatus = "success"
	AttemptFailed    AttemptStatus = "failed"
)

// PaymentAttempt is one entry of the append-only callback log. The
// log is the source of truth for dispute resolution: never pruned,
// never edited.
type PaymentAttempt struct {
	TxnID       string        `json:"txnid"`
	PaymentID   string        `json:"paymentId,omitempty"`
	AmountPaise Paise         `json:"amountPaise"`
	Status      AttemptStatus `json:"status"`
	RawResponse string        `json:"rawResponse,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type Payment struct {
	Method        string
	Status        PaymentStatus
	TransactionID string // provider txn id, set once
	PaymentID     string // provider payment id, set once
	PaidAt        *time.Time
	RefundedAt    *time.Time
	RefundAmount  Paise
}

type Logistics struct {
	Provider         string
	ShipmentID       string
	TrackingID       string // carrier AWB
	CourierName      string
	Status           LogisticsStatus
	ShippedAt        *time.Time
	DeliveredAt      *time.Time
	DeliveryNotified bool
}

type ReturnRequest struct {
	Requested   bool
	RequestedAt *time.Time
	Reason      string
	Status      ReturnStatus
	AdminNotes  string
	ProcessedAt *time.Time
	ProcessedBy string
	ShipmentID  string
	TrackingID  string
	CourierName string
}

type ShippingAddress struct {
	Name    string
	Phone   string
	Street  string
	City    string
	State   string
	Pincode string
	Country string
}

// Order is the aggregate root. It is created pending/unpaid and then
// mutated exclusively through guarded transitions; it is never hard
// deleted.
type Order struct {
	ID          string
	UserID      string
	OrderNumber string

	Items        []OrderItem
	Subtotal     Paise
	Discount     Paise
	DiscountCode string
	Tax          Paise
	ShippingCost Paise
	Amount       Paise

	Status    Status
	Payment   Payment
	Logistics Logistics

	ShippingAddress ShippingAddress

	CancelledBy        Actor
	CancelledAt        *time.Time
	CancellationReason string
	InventoryRestored  bool

	RefundRequested   bool
	RefundRequestedAt *time.Time
	RefundReason      string
	RefundStatus      RefundStatus

	Return ReturnRequest

	InvoiceNumber string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderNumberFor builds the human-readable order number from the
// opaque id: VT-<year>-<last 6 of id, uppercased>. Generated once at
// creation, immutable afterward.
func OrderNumberFor(id string, at time.Time) string {
	suffix := id
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("VT-%d-%s", at.Year(), strings.ToUpper(suffix))
}

// CalculateTotal recomputes the total from the persisted parts.
func (o *Order) CalculateTotal() Paise {
	var subtotal Paise
	for _, item := range o.Items {
		subtotal += item.Price * Paise(item.Qty)
	}
	return subtotal - o.Discount + o.Tax + o.ShippingCost
}

// ValidateAmount enforces amount == subtotal - discount + tax +
// shippingCost with all components non-negative. Checked before every
// persist.
func (o *Order) ValidateAmount() error {
	if o.Subtotal < 0 || o.Discount < 0 || o.Tax < 0 || o.ShippingCost < 0 || o.Amount < 0 {
		return fmt.Errorf("%w: negative component", ErrAmountMismatch)
	}
	if calc := o.CalculateTotal(); calc != o.Amount {
		return fmt.Errorf("%w: expected %d, got %d", ErrAmountMismatch, calc, o.Amount)
	}
	return nil
}

// CanBeCancelled: only before shipment. A created AWB always blocks
// cancellation regardless of status.
func (o *Order) CanBeCancelled() bool {
	if o.Logistics.TrackingID != "" {
		return false
	}
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

// CanBeRefunded: paid, cancelled, and not expired by the system.
func (o *Order) CanBeRefunded() bool {
	if o.Payment.Status != PaymentPaid {
		return false
	}
	if o.Status != StatusCancelled {
		return false
	}
	return o.CancelledBy != ActorSystem
}

// ReturnWindow is how long after delivery a return may be requested.
const ReturnWindow = 15 * 24 * time.Hour

// CanRequestReturn: delivered, no prior request, within the return
// window of the recorded delivery time.
func (o *Order) CanRequestReturn(now time.Time) bool {
	if o.Status != StatusDelivered {
		return false
	}
	if o.Return.Requested {
		return false
	}
	if o.Logistics.DeliveredAt == nil {
		return false
	}
	return now.Sub(*o.Logistics.DeliveredAt) <= ReturnWindow
}
