package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
)

var (
	ErrSignatureInvalid       = errors.New("callback signature verification failed")
	ErrCallbackAmountMismatch = errors.New("callback amount does not match order")
	ErrOrderAlreadyCancelled  = errors.New("order was already cancelled")
	ErrPaymentStateConflict   = errors.New("payment recorded but order is no longer pending")
	ErrUnknownProvider        = errors.New("unknown payment provider")
)

// ReconcileResult tells the boundary what happened so it can pick the
// right redirect. Duplicate means the callback was acknowledged
// without reapplying side effects.
type ReconcileResult struct {
	Order     *domain.Order
	Applied   bool
	Duplicate bool
}

// Reconciler converges inbound provider callbacks with local order
// state: verify, cross-check, log, then transition, all idempotently.
type Reconciler struct {
	orders    OrderRepo
	inventory *Inventory
	verifiers map[string]SignatureVerifier
	idem      IdempotencyStore
	notifier  Notifier
	now       func() time.Time
}

func NewReconciler(orders OrderRepo, inv *Inventory, idem IdempotencyStore, notifier Notifier, verifiers ...SignatureVerifier) *Reconciler {
	m := make(map[string]SignatureVerifier, len(verifiers))
	for _, v := range verifiers {
		m[v.Provider()] = v
	}
	return &Reconciler{
		orders:    orders,
		inventory: inv,
		verifiers: m,
		idem:      idem,
		notifier:  notifier,
		now:       time.Now,
	}
}

func (r *Reconciler) appendAttempt(ctx context.Context, orderID string, cb Callback, status domain.AttemptStatus) {
	raw, _ := json.Marshal(cb.Raw)
	err := r.orders.AppendAttempt(ctx, orderID, domain.PaymentAttempt{
		TxnID:       cb.TxnID,
		PaymentID:   cb.PaymentID,
		AmountPaise: cb.AmountPaise,
		Status:      status,
		RawResponse: string(raw),
		CreatedAt:   r.now(),
	})
	if err != nil {
		logging.FromCtx(ctx).Error("append payment attempt failed", "order", orderID, "txnid", cb.TxnID, "err", err)
	}
}

// HandleCallback processes one inbound notification from the named
// provider. Every callback is appended to the attempts log. A forged
// signature marks the payment verification_failed without touching the
// order status; a tampered amount is rejected with no state change at
// all; duplicates are acknowledged without side effects.
func (r *Reconciler) HandleCallback(ctx context.Context, provider string, cb Callback) (ReconcileResult, error) {
	verifier, ok := r.verifiers[provider]
	if !ok {
		return ReconcileResult{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	o, err := r.resolveOrder(ctx, cb)
	if err != nil {
		return ReconcileResult{}, err
	}

	if err := verifier.Verify(cb.Raw); err != nil {
		if markErr := r.orders.MarkVerificationFailed(ctx, o.ID); markErr != nil {
			logging.FromCtx(ctx).Error("mark verification_failed", "order", o.ID, "err", markErr)
		}
		r.appendAttempt(ctx, o.ID, cb, domain.AttemptFailed)
		logging.FromCtx(ctx).Warn("forged payment callback rejected",
			"order", o.ID, "txnid", cb.TxnID, "provider", provider)
		return ReconcileResult{Order: o}, ErrSignatureInvalid
	}

	if cb.Success {
		return r.applySuccess(ctx, o, cb)
	}
	return r.applyFailure(ctx, o, cb)
}

func (r *Reconciler) resolveOrder(ctx context.Context, cb Callback) (*domain.Order, error) {
	if cb.OrderID != "" {
		o, err := r.orders.GetByID(ctx, cb.OrderID)
		if err != nil {
			return nil, err
		}
		if o != nil {
			return o, nil
		}
	}
	if cb.TxnID != "" {
		o, err := r.orders.GetByTxnID(ctx, cb.TxnID)
		if err != nil {
			return nil, err
		}
		if o != nil {
			return o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (r *Reconciler) applySuccess(ctx context.Context, o *domain.Order, cb Callback) (ReconcileResult, error) {
	if o.Status == domain.StatusCancelled {
		r.appendAttempt(ctx, o.ID, cb, domain.AttemptFailed)
		return ReconcileResult{Order: o}, ErrOrderAlreadyCancelled
	}

	// A success callback whose amount disagrees with the stored total
	// is a tampered or misrouted notification, not a payment.
	if cb.AmountPaise != o.Amount {
		r.appendAttempt(ctx, o.ID, cb, domain.AttemptFailed)
		logging.FromCtx(ctx).Warn("payment amount mismatch",
			"order", o.ID, "expected", int64(o.Amount), "got", int64(cb.AmountPaise))
		return ReconcileResult{Order: o}, ErrCallbackAmountMismatch
	}

	r.appendAttempt(ctx, o.ID, cb, domain.AttemptSuccess)

	if locked, err := r.idem.TryLock(ctx, "payment-callback", cb.TxnID); err == nil && !locked {
		// Same txnid already being (or been) processed.
		return ReconcileResult{Order: o, Duplicate: true}, nil
	}

	now := r.now()
	won, err := r.orders.MarkPaid(ctx, o.ID, cb.TxnID, cb.PaymentID, now)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !won {
		// Already paid: inventory already adjusted, emails already
		// sent. Acknowledge and stop.
		return ReconcileResult{Order: o, Duplicate: true}, nil
	}
	o.Payment.Status = domain.PaymentPaid
	o.Payment.PaidAt = &now
	if o.Payment.TransactionID == "" {
		o.Payment.TransactionID = cb.TxnID
		o.Payment.PaymentID = cb.PaymentID
	}

	won, err = r.orders.CasStatus(ctx, o.ID, domain.StatusPending, domain.StatusConfirmed)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !won {
		// The payment landed but the order left pending underneath us,
		// e.g. a concurrent cancellation. Do not claim a confirmation
		// that never happened; this needs an operator.
		if stored, gerr := r.orders.GetByID(ctx, o.ID); gerr == nil && stored != nil {
			o = stored
		}
		logging.FromCtx(ctx).Error("payment recorded on non-pending order",
			"order", o.ID, "status", string(o.Status), "txnid", cb.TxnID)
		return ReconcileResult{Order: o}, ErrPaymentStateConflict
	}
	o.Status = domain.StatusConfirmed

	r.notifier.Notify(ctx, EventOrderConfirmed, o)
	return ReconcileResult{Order: o, Applied: true}, nil
}

func (r *Reconciler) applyFailure(ctx context.Context, o *domain.Order, cb Callback) (ReconcileResult, error) {
	r.appendAttempt(ctx, o.ID, cb, domain.AttemptFailed)

	if o.Payment.Status == domain.PaymentPaid {
		// A late failure callback never overrides a recorded payment.
		return ReconcileResult{Order: o, Duplicate: true}, nil
	}

	if _, err := r.orders.MarkPaymentFailed(ctx, o.ID); err != nil {
		return ReconcileResult{}, err
	}
	o.Payment.Status = domain.PaymentFailed

	now := r.now()
	won, err := r.orders.MarkCancelledUnpaid(ctx, o.ID, domain.ActorSystem, "Payment failed", now)
	if err != nil {
		return ReconcileResult{}, err
	}
	if won {
		o.Status = domain.StatusCancelled
		o.CancelledBy = domain.ActorSystem
		o.CancelledAt = &now
		o.CancellationReason = "Payment failed"
		if err := r.inventory.Restore(ctx, o); err != nil {
			return ReconcileResult{}, err
		}
		r.notifier.Notify(ctx, EventOrderCancelled, o)
	}
	return ReconcileResult{Order: o, Applied: won}, nil
}
