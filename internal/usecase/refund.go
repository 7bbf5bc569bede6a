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
	ErrNoRefundRequest  = errors.New("no open refund request")
	ErrRefundNotPaid    = errors.New("refund requires a paid order")
	ErrRefundInFlight   = errors.New("refund already processing")
	ErrNoTransactionRef = errors.New("no provider payment reference on order")
)

// RefundService drives the requested -> processing -> refunded
// workflow. On provider rejection the state rolls back to requested so
// the admin can retry; it is never left stuck in processing.
type RefundService struct {
	orders   OrderRepo
	provider RefundProvider
	notifier Notifier
	now      func() time.Time
}

func NewRefundService(orders OrderRepo, provider RefundProvider, notifier Notifier) *RefundService {
	return &RefundService{orders: orders, provider: provider, notifier: notifier, now: time.Now}
}

// paymentRef resolves the provider payment id: the set-once field
// first, otherwise the most recent successful attempt.
func (s *RefundService) paymentRef(ctx context.Context, o *domain.Order) (string, error) {
	if o.Payment.PaymentID != "" {
		return o.Payment.PaymentID, nil
	}
	attempts, err := s.orders.ListAttempts(ctx, o.ID)
	if err != nil {
		return "", err
	}
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Status == domain.AttemptSuccess && attempts[i].PaymentID != "" {
			return attempts[i].PaymentID, nil
		}
	}
	return "", ErrNoTransactionRef
}

// Approve moves the request into processing, invokes the provider and
// finalizes. A provider rejection or transport error rolls the status
// back to requested before the error is surfaced.
func (s *RefundService) Approve(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.RefundStatus != domain.RefundRequested {
		if o.RefundStatus == domain.RefundProcessing {
			return nil, ErrRefundInFlight
		}
		return nil, ErrNoRefundRequest
	}
	if o.Payment.Status != domain.PaymentPaid {
		return nil, ErrRefundNotPaid
	}
	ref, err := s.paymentRef(ctx, o)
	if err != nil {
		return nil, err
	}

	won, err := s.orders.CasRefundStatus(ctx, o.ID, domain.RefundRequested, domain.RefundProcessing)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrRefundInFlight
	}
	o.RefundStatus = domain.RefundProcessing

	res, provErr := s.provider.Refund(ctx, ref, o.Amount)
	if provErr != nil || !res.Accepted {
		// Roll back so the request stays retryable.
		if _, rbErr := s.orders.CasRefundStatus(ctx, o.ID, domain.RefundProcessing, domain.RefundRequested); rbErr != nil {
			logging.FromCtx(ctx).Error("refund status rollback failed", "order", o.ID, "err", rbErr)
		}
		o.RefundStatus = domain.RefundRequested
		if provErr != nil {
			return nil, fmt.Errorf("refund provider: %w", provErr)
		}
		return nil, fmt.Errorf("refund provider rejected payment %s", ref)
	}

	now := s.now()
	if _, err := s.orders.CasRefundStatus(ctx, o.ID, domain.RefundProcessing, domain.RefundRefunded); err != nil {
		return nil, err
	}
	if err := s.orders.MarkRefunded(ctx, o.ID, o.Amount, now); err != nil {
		return nil, err
	}
	o.RefundStatus = domain.RefundRefunded
	o.Payment.Status = domain.PaymentRefunded
	o.Payment.RefundAmount = o.Amount
	o.Payment.RefundedAt = &now

	// Synthetic entry so the attempts log tells the whole money story.
	raw := fmt.Sprintf(`{"providerRef":%q}`, res.ProviderRef)
	if err := s.orders.AppendAttempt(ctx, o.ID, domain.PaymentAttempt{
		TxnID:       o.Payment.TransactionID,
		PaymentID:   ref,
		AmountPaise: -o.Amount,
		Status:      domain.AttemptSuccess,
		RawResponse: raw,
		CreatedAt:   now,
	}); err != nil {
		logging.FromCtx(ctx).Error("append refund attempt failed", "order", o.ID, "err", err)
	}

	s.notifier.Notify(ctx, EventRefundProcessed, o)
	return o, nil
}

// Reject closes the request terminally. A new user action has to open
// a fresh request; rejection never reopens.
func (s *RefundService) Reject(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.RefundStatus != domain.RefundRequested {
		return nil, ErrNoRefundRequest
	}
	won, err := s.orders.CasRefundStatus(ctx, o.ID, domain.RefundRequested, domain.RefundFailed)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrNoRefundRequest
	}
	if err := s.orders.ClearRefundRequest(ctx, o.ID); err != nil {
		return nil, err
	}
	o.RefundStatus = domain.RefundFailed
	o.RefundRequested = false
	return o, nil
}
