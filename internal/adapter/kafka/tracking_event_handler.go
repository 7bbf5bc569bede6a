package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/GovindKumar26/petstore-api/internal/adapter/repo"
	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

// TrackingEventHandler applies courier push events (Shiprocket webhook
// relay) to local orders. Events for AWBs we do not know are dropped:
// the topic carries every shipment of the merchant account, not only
// ours.
type TrackingEventHandler struct {
	Orders usecase.OrderRepo
	Sync   *usecase.TrackingSync
	Cache  usecase.OrderCache // optional
}

func NewTrackingEventHandler(orders usecase.OrderRepo, sync *usecase.TrackingSync, cache usecase.OrderCache) *TrackingEventHandler {
	return &TrackingEventHandler{Orders: orders, Sync: sync, Cache: cache}
}

func (h *TrackingEventHandler) Handle(ctx context.Context, ev usecase.TrackingEventMsg) error {
	if ev.AWB == "" || ev.CurrentStatus == "" {
		return nil
	}
	o, err := h.Orders.GetByTrackingID(ctx, ev.AWB)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup awb %s: %w", ev.AWB, err)
	}
	if o == nil {
		return nil
	}

	changed, err := h.Sync.Apply(ctx, o, ev.CurrentStatus)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Out-of-order courier push (e.g. delivered before the
			// shipped write landed). Drop it; the periodic poll
			// converges the order once the state allows it.
			return nil
		}
		return err
	}
	if changed && h.Cache != nil {
		_ = h.Cache.SetStatus(ctx, o.ID, string(o.Status))
	}
	return nil
}
