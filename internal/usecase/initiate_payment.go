package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

var (
	ErrAlreadyPaid     = errors.New("order is already paid")
	ErrNotPayable      = errors.New("order is not payable in its current state")
	ErrNotOwner        = errors.New("order belongs to another user")
	ErrGatewayDisabled = errors.New("payment gateway not configured")
)

// PaymentProvider builds the provider-specific redirect data for a
// transaction. Signing happens inside the adapter; the core never
// touches provider secrets.
type PaymentProvider interface {
	Initiate(o *domain.Order, txnid, email string) (map[string]string, error)
}

type InitiatePayment struct {
	orders   OrderRepo
	provider PaymentProvider
	now      func() time.Time
}

func NewInitiatePayment(orders OrderRepo, provider PaymentProvider) *InitiatePayment {
	return &InitiatePayment{orders: orders, provider: provider, now: time.Now}
}

// Execute issues a fresh transaction id for a pending unpaid order and
// returns the signed redirect form fields.
func (uc *InitiatePayment) Execute(ctx context.Context, orderID, userID, email string) (map[string]string, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}
	if o.Payment.Status == domain.PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if o.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: status %q", ErrNotPayable, o.Status)
	}

	txnid := fmt.Sprintf("TXN_%s_%d", o.ID, uc.now().UnixMilli())
	if err := uc.orders.SetTransactionID(ctx, o.ID, txnid); err != nil {
		return nil, err
	}
	o.Payment.TransactionID = txnid

	return uc.provider.Initiate(o, txnid, email)
}
