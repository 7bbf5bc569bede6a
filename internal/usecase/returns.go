package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

var (
	ErrReturnNotAllowed = errors.New("order is not eligible for return")
	ErrReturnState      = errors.New("return request is not in the required state")
)

// ReturnService runs the secondary state machine
// requested -> approved -> pickup_scheduled -> picked_up -> completed
// (or requested -> rejected). Completion restores inventory through
// the shared latch and chains into the refund workflow.
type ReturnService struct {
	orders    OrderRepo
	inventory *Inventory
	shipping  ShippingProvider
	now       func() time.Time
}

func NewReturnService(orders OrderRepo, inv *Inventory, shipping ShippingProvider) *ReturnService {
	return &ReturnService{orders: orders, inventory: inv, shipping: shipping, now: time.Now}
}

// Request opens a return for a delivered order within the 15-day
// window. The requested flag is set by a conditional update, so a
// double submit creates exactly one request.
func (s *ReturnService) Request(ctx context.Context, orderID, userID, reason string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}
	now := s.now()
	if !o.CanRequestReturn(now) {
		return nil, ErrReturnNotAllowed
	}
	won, err := s.orders.SetReturnRequested(ctx, o.ID, reason, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrReturnNotAllowed
	}
	o.Return.Requested = true
	o.Return.RequestedAt = &now
	o.Return.Reason = reason
	o.Return.Status = domain.ReturnRequested
	return o, nil
}

func (s *ReturnService) transition(ctx context.Context, orderID string, from, to domain.ReturnStatus, notes, by string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	now := s.now()
	won, err := s.orders.CasReturnStatus(ctx, o.ID, from, to, notes, by, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: expected %q", ErrReturnState, from)
	}
	o.Return.Status = to
	o.Return.AdminNotes = notes
	o.Return.ProcessedAt = &now
	o.Return.ProcessedBy = by
	return o, nil
}

func (s *ReturnService) Approve(ctx context.Context, orderID, notes, adminID string) (*domain.Order, error) {
	return s.transition(ctx, orderID, domain.ReturnRequested, domain.ReturnApproved, notes, adminID)
}

func (s *ReturnService) Reject(ctx context.Context, orderID, notes, adminID string) (*domain.Order, error) {
	return s.transition(ctx, orderID, domain.ReturnRequested, domain.ReturnRejected, notes, adminID)
}

// SchedulePickup books the reverse shipment with the provider before
// committing the transition. Fail closed on the provider call.
func (s *ReturnService) SchedulePickup(ctx context.Context, orderID, adminID string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.Return.Status != domain.ReturnApproved {
		return nil, fmt.Errorf("%w: expected %q", ErrReturnState, domain.ReturnApproved)
	}

	sh, err := s.shipping.CreateReturnPickup(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("create return pickup: %w", err)
	}
	if err := s.orders.SetReturnShipment(ctx, o.ID, sh.ShipmentID, sh.TrackingID, sh.CourierName); err != nil {
		return nil, err
	}
	o.Return.ShipmentID = sh.ShipmentID
	o.Return.TrackingID = sh.TrackingID
	o.Return.CourierName = sh.CourierName

	return s.transition(ctx, orderID, domain.ReturnApproved, domain.ReturnPickupScheduled, o.Return.AdminNotes, adminID)
}

func (s *ReturnService) MarkPickedUp(ctx context.Context, orderID, adminID string) (*domain.Order, error) {
	return s.transition(ctx, orderID, domain.ReturnPickupScheduled, domain.ReturnPickedUp, "", adminID)
}

// Complete closes the return: stock goes back (once, via the shared
// latch) and a refund request is opened for the paid amount. A retry
// after a storage hiccup re-enters from the completed state, so a
// return can never end up completed with its follow-ups missing.
func (s *ReturnService) Complete(ctx context.Context, orderID, adminID string) (*domain.Order, error) {
	o, err := s.transition(ctx, orderID, domain.ReturnPickedUp, domain.ReturnCompleted, "", adminID)
	if err != nil {
		if !errors.Is(err, ErrReturnState) {
			return nil, err
		}
		// A prior attempt may have committed the transition and then
		// failed the restore or the refund request. The latch keeps the
		// restore single-shot on re-entry.
		stored, gerr := s.orders.GetByID(ctx, orderID)
		if gerr != nil {
			return nil, gerr
		}
		if stored == nil || stored.Return.Status != domain.ReturnCompleted {
			return nil, err
		}
		o = stored
	}
	if err := s.inventory.Restore(ctx, o); err != nil {
		return nil, err
	}
	if o.RefundRequested || o.RefundStatus != "" {
		return o, nil
	}
	now := s.now()
	reason := "Return completed"
	if o.Return.Reason != "" {
		reason = o.Return.Reason
	}
	if err := s.orders.SetRefundRequested(ctx, o.ID, reason, now); err != nil {
		return nil, err
	}
	o.RefundRequested = true
	o.RefundRequestedAt = &now
	o.RefundReason = reason
	o.RefundStatus = domain.RefundRequested
	return o, nil
}
