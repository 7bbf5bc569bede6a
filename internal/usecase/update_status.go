package usecase

import (
	"context"
	"fmt"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

// UpdateStatus routes admin-triggered status changes through the
// allow-list. pending -> confirmed is reserved for payment
// reconciliation and always rejected here; shipped, delivered and
// cancelled have their own services with extra guards.
type UpdateStatus struct {
	orders OrderRepo
	ship   *ShipOrder
	track  *TrackingSync
	cancel *CancelOrder
}

func NewUpdateStatus(orders OrderRepo, ship *ShipOrder, track *TrackingSync, cancel *CancelOrder) *UpdateStatus {
	return &UpdateStatus{orders: orders, ship: ship, track: track, cancel: cancel}
}

func (uc *UpdateStatus) Execute(ctx context.Context, orderID string, target domain.Status, reason string) (*domain.Order, error) {
	switch target {
	case domain.StatusConfirmed:
		return nil, fmt.Errorf("%w: confirmation happens only through payment reconciliation", domain.ErrInvalidTransition)
	case domain.StatusShipped:
		return uc.ship.Execute(ctx, orderID)
	case domain.StatusCancelled:
		return uc.cancel.Execute(ctx, orderID, domain.ActorAdmin, reason)
	case domain.StatusDelivered:
		o, err := uc.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, ErrOrderNotFound
		}
		if o.Status != domain.StatusShipped {
			return nil, fmt.Errorf("%w: %q -> %q", domain.ErrInvalidTransition, o.Status, target)
		}
		if _, err := uc.track.Apply(ctx, o, "DELIVERED"); err != nil {
			return nil, err
		}
		return o, nil
	case domain.StatusProcessing:
		o, err := uc.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, ErrOrderNotFound
		}
		won, err := uc.orders.CasStatus(ctx, o.ID, domain.StatusConfirmed, domain.StatusProcessing)
		if err != nil {
			return nil, err
		}
		if !won {
			return nil, fmt.Errorf("%w: %q -> %q", domain.ErrInvalidTransition, o.Status, target)
		}
		o.Status = domain.StatusProcessing
		return o, nil
	default:
		return nil, fmt.Errorf("%w: unknown target %q", domain.ErrInvalidTransition, target)
	}
}
