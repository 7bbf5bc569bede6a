package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

func newReconcileFixture(o *domain.Order) (*Reconciler, *fakeOrderRepo, *fakeProductRepo, *recordingNotifier) {
	orders := newFakeOrderRepo()
	orders.put(o)
	catalog := newFakeProductRepo(&domain.Product{ID: "p1", Title: "Cat Tree", Price: 50000, Inventory: 3})
	notifier := &recordingNotifier{}
	r := NewReconciler(orders, NewInventory(orders, catalog), newFakeIdemStore(), notifier, &fakeVerifier{name: "payu"})
	r.now = fixedNow(time.Date(2025, 8, 1, 12, 30, 0, 0, time.UTC))
	return r, orders, catalog, notifier
}

func successCallback(o *domain.Order) Callback {
	return Callback{
		OrderID:     o.ID,
		TxnID:       "TXN_o1_1",
		PaymentID:   "PAYID99",
		AmountPaise: o.Amount,
		Success:     true,
		Raw:         map[string]string{"sig": "ok"},
	}
}

func TestReconcileSuccess(t *testing.T) {
	o := pendingOrder("o1", "u1")
	r, orders, _, notifier := newReconcileFixture(o)

	res, err := r.HandleCallback(context.Background(), "payu", successCallback(o))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !res.Applied || res.Duplicate {
		t.Fatalf("result = %+v", res)
	}

	stored := orders.stored("o1")
	if stored.Status != domain.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", stored.Status)
	}
	if stored.Payment.Status != domain.PaymentPaid || stored.Payment.TransactionID != "TXN_o1_1" {
		t.Fatalf("payment = %s/%s", stored.Payment.Status, stored.Payment.TransactionID)
	}
	if notifier.count(EventOrderConfirmed) != 1 {
		t.Fatal("confirmation event not published")
	}

	attempts, _ := orders.ListAttempts(context.Background(), "o1")
	if len(attempts) != 1 || attempts[0].Status != domain.AttemptSuccess {
		t.Fatalf("attempts = %+v", attempts)
	}
}

func TestReconcileDuplicateTxn(t *testing.T) {
	o := pendingOrder("o1", "u1")
	r, _, _, notifier := newReconcileFixture(o)
	cb := successCallback(o)

	if _, err := r.HandleCallback(context.Background(), "payu", cb); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	res, err := r.HandleCallback(context.Background(), "payu", cb)
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}
	if !res.Duplicate || res.Applied {
		t.Fatalf("result = %+v, want duplicate ack", res)
	}
	if notifier.count(EventOrderConfirmed) != 1 {
		t.Fatal("duplicate callback re-published the event")
	}
}

// cancelAfterPaidRepo cancels the order right after the payment is
// recorded, before the caller can confirm it.
type cancelAfterPaidRepo struct {
	*fakeOrderRepo
}

func (r *cancelAfterPaidRepo) MarkPaid(ctx context.Context, id, txnid, paymentID string, paidAt time.Time) (bool, error) {
	won, err := r.fakeOrderRepo.MarkPaid(ctx, id, txnid, paymentID, paidAt)
	if won {
		_, _ = r.fakeOrderRepo.CasStatus(ctx, id, domain.StatusPending, domain.StatusCancelled)
	}
	return won, err
}

func TestReconcileConfirmConflictSurfaces(t *testing.T) {
	o := pendingOrder("o1", "u1")
	inner := newFakeOrderRepo()
	inner.put(o)
	orders := &cancelAfterPaidRepo{fakeOrderRepo: inner}
	catalog := newFakeProductRepo(&domain.Product{ID: "p1", Title: "Cat Tree", Price: 50000, Inventory: 3})
	notifier := &recordingNotifier{}
	r := NewReconciler(orders, NewInventory(orders, catalog), newFakeIdemStore(), notifier, &fakeVerifier{name: "payu"})
	r.now = fixedNow(time.Date(2025, 8, 1, 12, 30, 0, 0, time.UTC))

	res, err := r.HandleCallback(context.Background(), "payu", successCallback(o))
	if !errors.Is(err, ErrPaymentStateConflict) {
		t.Fatalf("err = %v, want ErrPaymentStateConflict", err)
	}
	if res.Applied {
		t.Fatal("conflicted callback reported as applied")
	}
	if notifier.count(EventOrderConfirmed) != 0 {
		t.Fatal("confirmation event published for an unconfirmed order")
	}
	if stored := inner.stored("o1"); stored.Status == domain.StatusConfirmed {
		t.Fatal("order confirmed past the conflict")
	}
}

func TestReconcileForgedSignature(t *testing.T) {
	o := pendingOrder("o1", "u1")
	r, orders, _, notifier := newReconcileFixture(o)

	cb := successCallback(o)
	cb.Raw = map[string]string{"sig": "tampered"}

	_, err := r.HandleCallback(context.Background(), "payu", cb)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}

	stored := orders.stored("o1")
	if stored.Status != domain.StatusPending {
		t.Fatalf("forged callback moved order to %s", stored.Status)
	}
	if stored.Payment.Status != domain.PaymentVerificationFailed {
		t.Fatalf("payment = %s, want verification_failed", stored.Payment.Status)
	}
	if len(notifier.events) != 0 {
		t.Fatal("forged callback published an event")
	}
	attempts, _ := orders.ListAttempts(context.Background(), "o1")
	if len(attempts) != 1 || attempts[0].Status != domain.AttemptFailed {
		t.Fatalf("attempts = %+v", attempts)
	}
}

func TestReconcileAmountMismatch(t *testing.T) {
	o := pendingOrder("o1", "u1")
	r, orders, _, _ := newReconcileFixture(o)

	cb := successCallback(o)
	cb.AmountPaise = o.Amount - 100

	_, err := r.HandleCallback(context.Background(), "payu", cb)
	if !errors.Is(err, ErrCallbackAmountMismatch) {
		t.Fatalf("err = %v, want ErrCallbackAmountMismatch", err)
	}
	stored := orders.stored("o1")
	if stored.Status != domain.StatusPending || stored.Payment.Status != domain.PaymentPending {
		t.Fatalf("mismatched amount changed state to %s/%s", stored.Status, stored.Payment.Status)
	}
}

func TestReconcileFailureCancels(t *testing.T) {
	o := pendingOrder("o1", "u1")
	r, orders, catalog, notifier := newReconcileFixture(o)

	cb := successCallback(o)
	cb.Success = false

	res, err := r.HandleCallback(context.Background(), "payu", cb)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !res.Applied {
		t.Fatalf("result = %+v", res)
	}

	stored := orders.stored("o1")
	if stored.Status != domain.StatusCancelled || stored.CancelledBy != domain.ActorSystem {
		t.Fatalf("state = %s by %s", stored.Status, stored.CancelledBy)
	}
	if stored.Payment.Status != domain.PaymentFailed {
		t.Fatalf("payment = %s", stored.Payment.Status)
	}
	if got := catalog.stock("p1"); got != 5 {
		t.Fatalf("stock = %d after restore, want 5", got)
	}
	if notifier.count(EventOrderCancelled) != 1 {
		t.Fatal("cancellation event not published")
	}
}

func TestReconcileLateFailureAfterPaid(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Status = domain.StatusConfirmed
	o.Payment.Status = domain.PaymentPaid
	r, orders, _, _ := newReconcileFixture(o)

	cb := successCallback(o)
	cb.Success = false

	res, err := r.HandleCallback(context.Background(), "payu", cb)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !res.Duplicate {
		t.Fatalf("result = %+v, want duplicate ack", res)
	}
	if stored := orders.stored("o1"); stored.Payment.Status != domain.PaymentPaid {
		t.Fatalf("late failure overrode payment to %s", stored.Payment.Status)
	}
}

func TestReconcileSuccessOnCancelledOrder(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Status = domain.StatusCancelled
	o.CancelledBy = domain.ActorSystem
	r, _, _, _ := newReconcileFixture(o)

	_, err := r.HandleCallback(context.Background(), "payu", successCallback(o))
	if !errors.Is(err, ErrOrderAlreadyCancelled) {
		t.Fatalf("err = %v, want ErrOrderAlreadyCancelled", err)
	}
}

func TestReconcileUnknownProvider(t *testing.T) {
	o := pendingOrder("o1", "u1")
	r, _, _, _ := newReconcileFixture(o)

	_, err := r.HandleCallback(context.Background(), "stripe", successCallback(o))
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("err = %v, want ErrUnknownProvider", err)
	}
}

func TestReconcileResolvesByTxnID(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.Payment.TransactionID = "TXN_o1_1"
	r, orders, _, _ := newReconcileFixture(o)

	cb := successCallback(o)
	cb.OrderID = ""

	if _, err := r.HandleCallback(context.Background(), "payu", cb); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if stored := orders.stored("o1"); stored.Payment.Status != domain.PaymentPaid {
		t.Fatalf("payment = %s", stored.Payment.Status)
	}
}
