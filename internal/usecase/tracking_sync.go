package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
)

// TrackingSync converges courier-side shipment state with local order
// state. It feeds from two directions: the periodic poll over shipped
// orders and the courier event stream; both funnel into Apply, which
// is safe to call repeatedly for the same status.
type TrackingSync struct {
	orders   OrderRepo
	shipping ShippingProvider
	notifier Notifier
	now      func() time.Time
}

func NewTrackingSync(orders OrderRepo, shipping ShippingProvider, notifier Notifier) *TrackingSync {
	return &TrackingSync{orders: orders, shipping: shipping, notifier: notifier, now: time.Now}
}

// MapCourierStatus folds the courier's vocabulary into the internal
// logistics status. Unknown values stay "shipped".
func MapCourierStatus(s string) domain.LogisticsStatus {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")) {
	case "PICKED_UP", "IN_TRANSIT", "REACHED_AT_DESTINATION", "OUT_FOR_DELIVERY":
		return domain.LogisticsInTransit
	case "DELIVERED":
		return domain.LogisticsDelivered
	case "RTO_INITIATED", "RTO_DELIVERED":
		return domain.LogisticsRTO
	case "CANCELLED":
		return domain.LogisticsCancelled
	default:
		return domain.LogisticsShipped
	}
}

// SyncOrder polls the provider for one order and applies the result.
func (s *TrackingSync) SyncOrder(ctx context.Context, o *domain.Order) (bool, error) {
	if o.Logistics.TrackingID == "" {
		return false, nil
	}
	courierStatus, err := s.shipping.TrackShipment(ctx, o.Logistics.TrackingID)
	if err != nil {
		return false, err
	}
	return s.Apply(ctx, o, courierStatus)
}

// Apply maps and persists a courier status for the order. Delivery is
// idempotent: deliveredAt is set once by the shipped->delivered CAS
// and the notification fires at most once via the deliveryNotified
// latch. A delivered event for an order that never shipped is rejected
// without touching anything.
func (s *TrackingSync) Apply(ctx context.Context, o *domain.Order, courierStatus string) (bool, error) {
	mapped := MapCourierStatus(courierStatus)

	if mapped != domain.LogisticsDelivered {
		if o.Logistics.Status == mapped {
			return false, nil
		}
		if err := s.orders.SetLogisticsStatus(ctx, o.ID, mapped); err != nil {
			return false, err
		}
		o.Logistics.Status = mapped
		return true, nil
	}

	now := s.now()
	won, err := s.orders.MarkDelivered(ctx, o.ID, now)
	if err != nil {
		return false, err
	}
	if won {
		o.Status = domain.StatusDelivered
		o.Logistics.Status = domain.LogisticsDelivered
		o.Logistics.DeliveredAt = &now
	} else {
		// Losing the CAS is fine only when the order already reached
		// delivered; anything else (never shipped, cancelled) must not
		// burn the notification latch.
		stored, err := s.orders.GetByID(ctx, o.ID)
		if err != nil {
			return false, err
		}
		if stored == nil || stored.Status != domain.StatusDelivered {
			return false, fmt.Errorf("%w: %q -> %q", domain.ErrInvalidTransition, o.Status, domain.StatusDelivered)
		}
		*o = *stored
	}

	notify, err := s.orders.MarkDeliveryNotified(ctx, o.ID)
	if err != nil {
		return won, err
	}
	if notify {
		o.Logistics.DeliveryNotified = true
		s.notifier.Notify(ctx, EventOrderDelivered, o)
	}
	return won, nil
}

// Run is the 30-minute poll body: every shipped order with an AWB gets
// one sync attempt; one failure does not stop the sweep. Safe to run
// concurrently with itself thanks to the CAS discipline in Apply.
func (s *TrackingSync) Run(ctx context.Context) error {
	orders, err := s.orders.ListShippedTracked(ctx)
	if err != nil {
		return err
	}
	log := logging.FromCtx(ctx)
	for i := range orders {
		o := &orders[i]
		if _, err := s.SyncOrder(ctx, o); err != nil {
			log.Error("tracking sync failed", "order", o.OrderNumber, "awb", o.Logistics.TrackingID, "err", err)
		}
	}
	return nil
}
