package usecase

import (
	"context"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
)

// PendingExpiry is how long an unpaid order may sit pending before the
// sweep cancels it.
const PendingExpiry = 15 * time.Minute

// ExpirySweep cancels stale pending+unpaid orders. Every transition is
// a conditional update, so two overlapping sweep runs cannot both
// claim the same order.
type ExpirySweep struct {
	orders    OrderRepo
	inventory *Inventory
	now       func() time.Time
}

func NewExpirySweep(orders OrderRepo, inv *Inventory) *ExpirySweep {
	return &ExpirySweep{orders: orders, inventory: inv, now: time.Now}
}

// Run performs one sweep and returns how many orders were expired.
// System cancellations never open refund requests.
func (s *ExpirySweep) Run(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-PendingExpiry)
	stale, err := s.orders.ListPendingExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	log := logging.FromCtx(ctx)
	expired := 0
	for i := range stale {
		o := &stale[i]
		if o.Status == domain.StatusCancelled {
			continue
		}
		now := s.now()
		won, err := s.orders.MarkCancelledUnpaid(ctx, o.ID, domain.ActorSystem, "Payment window expired", now)
		if err != nil {
			log.Error("expiry cancel failed", "order", o.OrderNumber, "err", err)
			continue
		}
		if !won {
			continue
		}
		o.Status = domain.StatusCancelled
		o.CancelledBy = domain.ActorSystem
		o.CancelledAt = &now

		if _, err := s.orders.MarkPaymentFailed(ctx, o.ID); err != nil {
			log.Error("expiry payment mark failed", "order", o.OrderNumber, "err", err)
		}
		if err := s.inventory.Restore(ctx, o); err != nil {
			log.Error("expiry restore failed", "order", o.OrderNumber, "err", err)
			continue
		}
		log.Info("order auto-expired", "order", o.OrderNumber)
		expired++
	}
	return expired, nil
}
