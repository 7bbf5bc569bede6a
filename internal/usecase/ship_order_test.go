package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

func processingOrder(id, userID string) *domain.Order {
	o := pendingOrder(id, userID)
	o.Status = domain.StatusProcessing
	o.Payment.Status = domain.PaymentPaid
	o.Payment.TransactionID = "TXN_" + id
	return o
}

func newShipFixture(o *domain.Order) (*ShipOrder, *fakeOrderRepo, *fakeShipping, *recordingNotifier) {
	orders := newFakeOrderRepo()
	orders.put(o)
	shipping := &fakeShipping{shipment: Shipment{ShipmentID: "SH9", TrackingID: "AWB900", CourierName: "Bluedart"}}
	notifier := &recordingNotifier{}
	uc := NewShipOrder(orders, shipping, notifier)
	uc.now = fixedNow(time.Date(2025, 8, 3, 11, 0, 0, 0, time.UTC))
	return uc, orders, shipping, notifier
}

func TestShipOrder(t *testing.T) {
	uc, orders, shipping, notifier := newShipFixture(processingOrder("o1", "u1"))

	o, err := uc.Execute(context.Background(), "o1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if o.Status != domain.StatusShipped {
		t.Fatalf("status = %s", o.Status)
	}
	if o.Logistics.TrackingID != "AWB900" || o.Logistics.Status != domain.LogisticsShipped {
		t.Fatalf("logistics = %+v", o.Logistics)
	}
	if shipping.created != 1 {
		t.Fatalf("shipments created = %d", shipping.created)
	}
	if stored := orders.stored("o1"); stored.Logistics.ShippedAt == nil {
		t.Fatal("shippedAt not persisted")
	}
	if notifier.count(EventOrderShipped) != 1 {
		t.Fatal("shipped event not published")
	}
}

func TestShipOrderGuards(t *testing.T) {
	t.Run("not processing", func(t *testing.T) {
		o := processingOrder("o1", "u1")
		o.Status = domain.StatusConfirmed
		uc, _, shipping, _ := newShipFixture(o)
		if _, err := uc.Execute(context.Background(), "o1"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("err = %v, want ErrInvalidTransition", err)
		}
		if shipping.created != 0 {
			t.Fatal("provider called before the status check")
		}
	})

	t.Run("not paid", func(t *testing.T) {
		o := processingOrder("o1", "u1")
		o.Payment.Status = domain.PaymentPending
		uc, _, _, _ := newShipFixture(o)
		if _, err := uc.Execute(context.Background(), "o1"); !errors.Is(err, ErrNotPaid) {
			t.Fatalf("err = %v, want ErrNotPaid", err)
		}
	})

	t.Run("already has shipment", func(t *testing.T) {
		o := processingOrder("o1", "u1")
		o.Logistics.TrackingID = "AWB111"
		uc, _, _, _ := newShipFixture(o)
		if _, err := uc.Execute(context.Background(), "o1"); !errors.Is(err, ErrHasShipment) {
			t.Fatalf("err = %v, want ErrHasShipment", err)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		uc, orders, shipping, _ := newShipFixture(processingOrder("o1", "u1"))
		shipping.createErr = errors.New("courier api down")
		if _, err := uc.Execute(context.Background(), "o1"); err == nil {
			t.Fatal("provider failure swallowed")
		}
		if stored := orders.stored("o1"); stored.Status != domain.StatusProcessing {
			t.Fatalf("status = %s, must stay processing on provider failure", stored.Status)
		}
	})
}
