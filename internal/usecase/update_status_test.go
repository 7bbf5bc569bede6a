package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

func newUpdateStatusFixture(o *domain.Order) (*UpdateStatus, *fakeOrderRepo) {
	orders := newFakeOrderRepo()
	orders.put(o)
	catalog := newFakeProductRepo(&domain.Product{ID: "p1", Title: "Cat Tree", Price: 50000, Inventory: 3})
	inv := NewInventory(orders, catalog)
	shipping := &fakeShipping{shipment: Shipment{ShipmentID: "SH9", TrackingID: "AWB900", CourierName: "Bluedart"}}
	notifier := &recordingNotifier{}
	now := fixedNow(time.Date(2025, 8, 3, 11, 0, 0, 0, time.UTC))

	ship := NewShipOrder(orders, shipping, notifier)
	ship.now = now
	track := NewTrackingSync(orders, shipping, notifier)
	track.now = now
	cancel := NewCancelOrder(orders, inv, notifier)
	cancel.now = now
	return NewUpdateStatus(orders, ship, track, cancel), orders
}

func TestUpdateStatusConfirmReserved(t *testing.T) {
	uc, _ := newUpdateStatusFixture(pendingOrder("o1", "u1"))
	_, err := uc.Execute(context.Background(), "o1", domain.StatusConfirmed, "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateStatusProcessing(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Status = domain.StatusConfirmed
	o.Payment.Status = domain.PaymentPaid
	uc, orders := newUpdateStatusFixture(o)

	got, err := uc.Execute(context.Background(), "o1", domain.StatusProcessing, "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.Status != domain.StatusProcessing {
		t.Fatalf("status = %s", got.Status)
	}
	if stored := orders.stored("o1"); stored.Status != domain.StatusProcessing {
		t.Fatalf("persisted = %s", stored.Status)
	}

	// Repeating the move fails the CAS.
	if _, err := uc.Execute(context.Background(), "o1", domain.StatusProcessing, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("repeat err = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateStatusShipViaService(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Status = domain.StatusProcessing
	o.Payment.Status = domain.PaymentPaid
	uc, orders := newUpdateStatusFixture(o)

	got, err := uc.Execute(context.Background(), "o1", domain.StatusShipped, "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.Status != domain.StatusShipped || got.Logistics.TrackingID == "" {
		t.Fatalf("state = %s/%q", got.Status, got.Logistics.TrackingID)
	}
	if stored := orders.stored("o1"); stored.Status != domain.StatusShipped {
		t.Fatalf("persisted = %s", stored.Status)
	}
}

func TestUpdateStatusDeliveredViaTracking(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Status = domain.StatusShipped
	o.Payment.Status = domain.PaymentPaid
	o.Logistics = domain.Logistics{TrackingID: "AWB900", Status: domain.LogisticsShipped}
	uc, orders := newUpdateStatusFixture(o)

	if _, err := uc.Execute(context.Background(), "o1", domain.StatusDelivered, ""); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	stored := orders.stored("o1")
	if stored.Status != domain.StatusDelivered || stored.Logistics.DeliveredAt == nil {
		t.Fatalf("state = %s, deliveredAt = %v", stored.Status, stored.Logistics.DeliveredAt)
	}
}

func TestUpdateStatusDeliveredRequiresShipped(t *testing.T) {
	uc, orders := newUpdateStatusFixture(pendingOrder("o1", "u1"))

	_, err := uc.Execute(context.Background(), "o1", domain.StatusDelivered, "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	stored := orders.stored("o1")
	if stored.Status != domain.StatusPending || stored.Logistics.Status == domain.LogisticsDelivered {
		t.Fatalf("state = %s/%s, nothing may move", stored.Status, stored.Logistics.Status)
	}
	if stored.Logistics.DeliveryNotified {
		t.Fatal("notification latch burned")
	}
}

func TestUpdateStatusUnknownTarget(t *testing.T) {
	uc, _ := newUpdateStatusFixture(pendingOrder("o1", "u1"))
	if _, err := uc.Execute(context.Background(), "o1", domain.Status("archived"), ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}
