package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

var ErrOrderNotFound = errors.New("order not found")

// CancelOrder handles user, admin and system cancellations. The
// transition itself is a conditional update covering both the status
// allow-list and the no-AWB guard, so two concurrent cancellations
// resolve to exactly one winner.
type CancelOrder struct {
	orders    OrderRepo
	inventory *Inventory
	notifier  Notifier
	now       func() time.Time
}

func NewCancelOrder(orders OrderRepo, inv *Inventory, notifier Notifier) *CancelOrder {
	return &CancelOrder{orders: orders, inventory: inv, notifier: notifier, now: time.Now}
}

var cancellableFrom = []domain.Status{domain.StatusPending, domain.StatusConfirmed}

// Execute cancels the order on behalf of the given actor. On success
// it restores inventory (once) and, for paid non-system cancellations,
// opens a refund request.
func (uc *CancelOrder) Execute(ctx context.Context, orderID string, by domain.Actor, reason string) (*domain.Order, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.Logistics.TrackingID != "" {
		return nil, domain.ErrAlreadyShipped
	}
	if !o.CanBeCancelled() {
		return nil, fmt.Errorf("%w: cannot cancel %q order", domain.ErrInvalidTransition, o.Status)
	}

	if reason == "" {
		reason = "Cancelled by customer"
	}
	now := uc.now()
	won, err := uc.orders.MarkCancelled(ctx, o.ID, cancellableFrom, by, reason, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent request got there first.
		return nil, fmt.Errorf("%w: order no longer cancellable", domain.ErrInvalidTransition)
	}
	o.Status = domain.StatusCancelled
	o.CancelledBy = by
	o.CancelledAt = &now
	o.CancellationReason = reason

	if err := uc.inventory.Restore(ctx, o); err != nil {
		return nil, err
	}

	// System cancellations (payment failure, expiry) never trigger
	// refunds; paid user/admin cancellations do.
	if o.Payment.Status == domain.PaymentPaid && by != domain.ActorSystem {
		if err := uc.orders.SetRefundRequested(ctx, o.ID, reason, now); err != nil {
			return nil, err
		}
		o.RefundRequested = true
		o.RefundRequestedAt = &now
		o.RefundReason = reason
		o.RefundStatus = domain.RefundRequested
	}

	uc.notifier.Notify(ctx, EventOrderCancelled, o)
	return o, nil
}
