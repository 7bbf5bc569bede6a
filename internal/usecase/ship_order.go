package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
)

var (
	ErrNotPaid     = errors.New("order is not paid")
	ErrHasShipment = errors.New("order already has a shipment")
)

// ShipOrder creates the provider shipment and commits the transition
// processing -> shipped. Fail closed: the local state only changes
// after the provider call is confirmed.
type ShipOrder struct {
	orders   OrderRepo
	shipping ShippingProvider
	notifier Notifier
	now      func() time.Time
}

func NewShipOrder(orders OrderRepo, shipping ShippingProvider, notifier Notifier) *ShipOrder {
	return &ShipOrder{orders: orders, shipping: shipping, notifier: notifier, now: time.Now}
}

func (uc *ShipOrder) Execute(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.Status != domain.StatusProcessing {
		return nil, fmt.Errorf("%w: cannot ship %q order", domain.ErrInvalidTransition, o.Status)
	}
	if o.Payment.Status != domain.PaymentPaid {
		return nil, ErrNotPaid
	}
	if o.Logistics.TrackingID != "" {
		return nil, ErrHasShipment
	}

	sh, err := uc.shipping.CreateShipment(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("create shipment: %w", err)
	}

	now := uc.now()
	lg := domain.Logistics{
		Provider:    "shiprocket",
		ShipmentID:  sh.ShipmentID,
		TrackingID:  sh.TrackingID,
		CourierName: sh.CourierName,
		Status:      domain.LogisticsShipped,
		ShippedAt:   &now,
	}
	won, err := uc.orders.MarkShipped(ctx, o.ID, lg, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another request shipped it between our read and the commit.
		// Best effort: release the shipment we just created.
		if sh.ShipmentID != "" {
			if cErr := uc.shipping.CancelShipment(ctx, sh.ShipmentID); cErr != nil {
				logging.FromCtx(ctx).Error("orphan shipment cancel failed",
					"order", o.ID, "shipment", sh.ShipmentID, "err", cErr)
			}
		}
		return nil, fmt.Errorf("%w: order no longer shippable", domain.ErrInvalidTransition)
	}

	o.Status = domain.StatusShipped
	o.Logistics = lg
	uc.notifier.Notify(ctx, EventOrderShipped, o)
	return o, nil
}
