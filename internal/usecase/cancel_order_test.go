package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

func pendingOrder(id, userID string) *domain.Order {
	return &domain.Order{
		ID:     id,
		UserID: userID,
		Items: []domain.OrderItem{
			{ProductID: "p1", Title: "Cat Tree", Price: 50000, Qty: 2},
		},
		Subtotal:     100000,
		Tax:          18000,
		ShippingCost: 0,
		Amount:       118000,
		Status:       domain.StatusPending,
		Payment:      domain.Payment{Method: "payu", Status: domain.PaymentPending},
		RefundStatus: domain.RefundNone,
		Return:       domain.ReturnRequest{Status: domain.ReturnNone},
		CreatedAt:    time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newCancelFixture(o *domain.Order) (*CancelOrder, *fakeOrderRepo, *fakeProductRepo, *recordingNotifier) {
	orders := newFakeOrderRepo()
	orders.put(o)
	catalog := newFakeProductRepo(&domain.Product{ID: "p1", Title: "Cat Tree", Price: 50000, Inventory: 3})
	notifier := &recordingNotifier{}
	uc := NewCancelOrder(orders, NewInventory(orders, catalog), notifier)
	uc.now = fixedNow(time.Date(2025, 8, 1, 13, 0, 0, 0, time.UTC))
	return uc, orders, catalog, notifier
}

func TestCancelOrderByUser(t *testing.T) {
	uc, orders, catalog, notifier := newCancelFixture(pendingOrder("o1", "u1"))

	o, err := uc.Execute(context.Background(), "o1", domain.ActorUser, "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if o.Status != domain.StatusCancelled || o.CancelledBy != domain.ActorUser {
		t.Fatalf("state = %s by %s", o.Status, o.CancelledBy)
	}
	if o.CancellationReason != "Cancelled by customer" {
		t.Fatalf("reason = %q", o.CancellationReason)
	}
	if got := catalog.stock("p1"); got != 5 {
		t.Fatalf("stock = %d after restore, want 5", got)
	}
	stored := orders.stored("o1")
	if !stored.InventoryRestored {
		t.Fatal("restore latch not persisted")
	}
	if stored.RefundRequested {
		t.Fatal("unpaid cancellation opened a refund request")
	}
	if notifier.count(EventOrderCancelled) != 1 {
		t.Fatal("cancellation event not published")
	}
}

func TestCancelPaidOrderOpensRefund(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Status = domain.StatusConfirmed
	o.Payment.Status = domain.PaymentPaid
	uc, orders, _, _ := newCancelFixture(o)

	got, err := uc.Execute(context.Background(), "o1", domain.ActorUser, "changed my mind")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !got.RefundRequested || got.RefundStatus != domain.RefundRequested {
		t.Fatalf("refund state = %v/%s", got.RefundRequested, got.RefundStatus)
	}
	if stored := orders.stored("o1"); stored.RefundReason != "changed my mind" {
		t.Fatalf("refund reason = %q", stored.RefundReason)
	}
}

func TestCancelPaidBySystemSkipsRefund(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Payment.Status = domain.PaymentPaid
	uc, orders, _, _ := newCancelFixture(o)

	if _, err := uc.Execute(context.Background(), "o1", domain.ActorSystem, "Payment failed"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if orders.stored("o1").RefundRequested {
		t.Fatal("system cancellation must not open a refund request")
	}
}

func TestCancelBlockedByShipment(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Status = domain.StatusConfirmed
	o.Logistics.TrackingID = "AWB777"
	uc, _, _, _ := newCancelFixture(o)

	_, err := uc.Execute(context.Background(), "o1", domain.ActorUser, "")
	if !errors.Is(err, domain.ErrAlreadyShipped) {
		t.Fatalf("err = %v, want ErrAlreadyShipped", err)
	}
}

func TestCancelShippedOrder(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Status = domain.StatusShipped
	uc, _, _, _ := newCancelFixture(o)

	_, err := uc.Execute(context.Background(), "o1", domain.ActorUser, "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelTwiceRestoresOnce(t *testing.T) {
	uc, _, catalog, _ := newCancelFixture(pendingOrder("o1", "u1"))

	if _, err := uc.Execute(context.Background(), "o1", domain.ActorUser, ""); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := uc.Execute(context.Background(), "o1", domain.ActorUser, ""); err == nil {
		t.Fatal("second cancel accepted")
	}
	if got := catalog.stock("p1"); got != 5 {
		t.Fatalf("stock = %d, restore ran more than once", got)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	uc, _, _, _ := newCancelFixture(pendingOrder("o1", "u1"))
	if _, err := uc.Execute(context.Background(), "nope", domain.ActorUser, ""); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}
