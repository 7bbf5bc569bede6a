package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

type MySQLProductRepo struct{ db *sql.DB }

func NewMySQLProductRepo(db *sql.DB) *MySQLProductRepo { return &MySQLProductRepo{db: db} }

func (r *MySQLProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, slug, price, inventory FROM products WHERE id=?`, id)
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Price, &p.Inventory); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Reserve is the authoritative stock decrement: a single conditional
// update, so concurrent orders on the last units serialize at the row
// and the count can never go negative.
func (r *MySQLProductRepo) Reserve(ctx context.Context, id string, qty int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE products SET inventory = inventory - ?, updated_at=NOW()
WHERE id=? AND inventory >= ?`, qty, id, qty)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

// AdjustInventory is a plain atomic increment, used for restoration.
func (r *MySQLProductRepo) AdjustInventory(ctx context.Context, id string, delta int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE products SET inventory = inventory + ?, updated_at=NOW() WHERE id=?`, delta, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

var _ usecase.ProductRepo = (*MySQLProductRepo)(nil)
