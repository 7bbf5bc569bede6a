package usecase

import (
	"context"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

// OrderRepo persists the order aggregate. Every one-shot transition is
// a conditional update (CAS on the current status or latch) and
// reports whether this caller won the update.
type OrderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByTxnID(ctx context.Context, txnid string) (*domain.Order, error)
	GetByTrackingID(ctx context.Context, awb string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, status domain.Status) ([]domain.Order, error)
	CountByUser(ctx context.Context, userID string) (int64, error)

	// Background sweeps.
	ListPendingExpired(ctx context.Context, olderThan time.Time) ([]domain.Order, error)
	ListShippedTracked(ctx context.Context) ([]domain.Order, error)

	// Payment lifecycle.
	SetTransactionID(ctx context.Context, id, txnid string) error
	AppendAttempt(ctx context.Context, id string, a domain.PaymentAttempt) error
	ListAttempts(ctx context.Context, id string) ([]domain.PaymentAttempt, error)
	MarkPaid(ctx context.Context, id, txnid, paymentID string, paidAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, id string) (bool, error)
	MarkVerificationFailed(ctx context.Context, id string) error

	// Status transitions.
	CasStatus(ctx context.Context, id string, from, to domain.Status) (bool, error)
	MarkCancelled(ctx context.Context, id string, from []domain.Status, by domain.Actor, reason string, at time.Time) (bool, error)
	// MarkCancelledUnpaid is the system-cancellation variant: the update
	// also requires that no payment has landed, so a success callback
	// racing the sweep keeps the order.
	MarkCancelledUnpaid(ctx context.Context, id string, by domain.Actor, reason string, at time.Time) (bool, error)
	MarkShipped(ctx context.Context, id string, lg domain.Logistics, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error)
	SetLogisticsStatus(ctx context.Context, id string, status domain.LogisticsStatus) error

	// At-most-once latches.
	MarkInventoryRestored(ctx context.Context, id string) (bool, error)
	MarkDeliveryNotified(ctx context.Context, id string) (bool, error)

	// Refund workflow.
	SetRefundRequested(ctx context.Context, id, reason string, at time.Time) error
	CasRefundStatus(ctx context.Context, id string, from, to domain.RefundStatus) (bool, error)
	MarkRefunded(ctx context.Context, id string, amount domain.Paise, at time.Time) error
	ClearRefundRequest(ctx context.Context, id string) error

	// Return workflow.
	SetReturnRequested(ctx context.Context, id, reason string, at time.Time) (bool, error)
	CasReturnStatus(ctx context.Context, id string, from, to domain.ReturnStatus, notes, by string, at time.Time) (bool, error)
	SetReturnShipment(ctx context.Context, id string, shipmentID, awb, courier string) error
}

// ProductRepo is the slice of the catalog the order core consumes.
// Reserve is a conditional decrement: it only applies while enough
// stock remains, so inventory can never go negative.
type ProductRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Reserve(ctx context.Context, id string, qty int) error
	AdjustInventory(ctx context.Context, id string, delta int) error
}

type DiscountRepo interface {
	GetByCode(ctx context.Context, code string) (*domain.Discount, error)
	IncrementUsage(ctx context.Context, id string) error
	RecordUsage(ctx context.Context, id, userID string) error
	HasUsed(ctx context.Context, id, userID string) (bool, error)
}

type TaxRepo interface {
	GetActive(ctx context.Context) (*domain.TaxConfig, error)
}

// UserRepo is the read-side view of the account store used for token
// verification and notification lookups.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Shipment is the provider's answer to a shipment or return-pickup
// request. TrackingID may be empty when the carrier assigns the AWB
// later.
type Shipment struct {
	ShipmentID  string
	TrackingID  string
	CourierName string
}

type ShippingProvider interface {
	CreateShipment(ctx context.Context, o *domain.Order) (Shipment, error)
	TrackShipment(ctx context.Context, awb string) (string, error)
	CancelShipment(ctx context.Context, shipmentID string) error
	CreateReturnPickup(ctx context.Context, o *domain.Order) (Shipment, error)
}

type RefundResult struct {
	Accepted    bool
	ProviderRef string
}

type RefundProvider interface {
	Refund(ctx context.Context, paymentID string, amount domain.Paise) (RefundResult, error)
}

// Callback is a normalized inbound payment notification. Raw carries
// the provider's full field set for signature recomputation and the
// attempts log.
type Callback struct {
	OrderID     string
	TxnID       string
	PaymentID   string
	AmountPaise domain.Paise
	Success     bool
	Raw         map[string]string
}

// SignatureVerifier recomputes the provider's expected signature from
// the shared secret and the raw payload and compares in constant time.
// One implementation per provider kind.
type SignatureVerifier interface {
	Provider() string
	Verify(raw map[string]string) error
}

// Notifier is the fire-and-forget event sink. Failures are logged and
// never roll back or block the triggering transition.
type Notifier interface {
	Notify(ctx context.Context, event string, o *domain.Order)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
}
