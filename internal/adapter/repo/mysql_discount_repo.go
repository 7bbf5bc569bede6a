package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

type MySQLDiscountRepo struct{ db *sql.DB }

func NewMySQLDiscountRepo(db *sql.DB) *MySQLDiscountRepo { return &MySQLDiscountRepo{db: db} }

func (r *MySQLDiscountRepo) GetByCode(ctx context.Context, code string) (*domain.Discount, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, code, type, value, active, starts_at, ends_at, usage_limit, used_count,
       description, min_order_value, max_discount_amount, first_time_only
FROM discounts WHERE code=?`, code)
	var (
		d                domain.Discount
		startsAt, endsAt sql.NullTime
	)
	err := row.Scan(&d.ID, &d.Code, &d.Type, &d.Value, &d.Active, &startsAt, &endsAt,
		&d.UsageLimit, &d.UsedCount, &d.Description, &d.MinOrderValue, &d.MaxDiscountAmount, &d.FirstTimeOnly)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if startsAt.Valid {
		d.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		d.EndsAt = &endsAt.Time
	}
	return &d, nil
}

// IncrementUsage is a single atomic increment, deliberately outside
// any order transaction. Usage-cap races over-redeem slightly; they
// never corrupt money.
func (r *MySQLDiscountRepo) IncrementUsage(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE discounts SET used_count = used_count + 1, updated_at=NOW() WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *MySQLDiscountRepo) RecordUsage(ctx context.Context, id, userID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT IGNORE INTO discount_usages (discount_id, user_id, created_at) VALUES (?,?,NOW())`, id, userID)
	return err
}

func (r *MySQLDiscountRepo) HasUsed(ctx context.Context, id, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM discount_usages WHERE discount_id=? AND user_id=?`, id, userID).Scan(&n)
	return n > 0, err
}

var _ usecase.DiscountRepo = (*MySQLDiscountRepo)(nil)
