package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

type MySQLTaxRepo struct{ db *sql.DB }

func NewMySQLTaxRepo(db *sql.DB) *MySQLTaxRepo { return &MySQLTaxRepo{db: db} }

// GetActive returns the single active tax row, or nil when taxation is
// not configured (orders are then priced without tax).
func (r *MySQLTaxRepo) GetActive(ctx context.Context) (*domain.TaxConfig, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, rate_bp, inclusive FROM tax_config WHERE is_active=1 LIMIT 1`)
	var t domain.TaxConfig
	if err := row.Scan(&t.ID, &t.Name, &t.RateBP, &t.Inclusive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

var _ usecase.TaxRepo = (*MySQLTaxRepo)(nil)
