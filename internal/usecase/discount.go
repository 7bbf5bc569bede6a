package usecase

import (
	"context"
	"strings"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
)

// DiscountEngine validates a code against the activity window, usage
// cap, first-order eligibility and minimum order value, in that order,
// and computes the capped amount.
type DiscountEngine struct {
	discounts DiscountRepo
	orders    OrderRepo
	now       func() time.Time
}

func NewDiscountEngine(discounts DiscountRepo, orders OrderRepo) *DiscountEngine {
	return &DiscountEngine{discounts: discounts, orders: orders, now: time.Now}
}

// Validate returns the discount when every check passes; otherwise the
// first failing check's sentinel error.
func (e *DiscountEngine) Validate(ctx context.Context, code string, subtotal domain.Paise, userID string) (*domain.Discount, error) {
	d, err := e.discounts.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domain.ErrDiscountNotFound
	}
	if !d.Active {
		return nil, domain.ErrDiscountInactive
	}
	now := e.now()
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return nil, domain.ErrDiscountNotStarted
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return nil, domain.ErrDiscountExpired
	}
	if d.UsageLimit > 0 && d.UsedCount >= d.UsageLimit {
		return nil, domain.ErrDiscountUsedUp
	}
	if d.FirstTimeOnly {
		n, err := e.orders.CountByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, domain.ErrDiscountFirstOnly
		}
	}
	if d.MinOrderValue > 0 && subtotal < d.MinOrderValue {
		return nil, domain.ErrDiscountMinOrder
	}
	return d, nil
}

// CommitUsage bumps the usage counter and records the user, decoupled
// from the order write. Best effort: a later failure of the order can
// leave the counter one high, which over-redeems a capped promotion by
// at most the race width, never money.
func (e *DiscountEngine) CommitUsage(ctx context.Context, d *domain.Discount, userID string) {
	if err := e.discounts.IncrementUsage(ctx, d.ID); err != nil {
		logging.FromCtx(ctx).Warn("discount usage increment failed", "code", d.Code, "err", err)
	}
	if err := e.discounts.RecordUsage(ctx, d.ID, userID); err != nil {
		logging.FromCtx(ctx).Warn("discount usage record failed", "code", d.Code, "err", err)
	}
}
