package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ariefcatur/cafe-pos/internal/orders"
)

// TaxPolicy reads the settings row, creating it from the store defaults
// when it does not exist yet.
func (s *Store) TaxPolicy(ctx context.Context) (orders.TaxPolicy, error) {
	var (
		bp       int64
		included bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tax_rate_bp, tax_included FROM settings WHERE id = 1`).Scan(&bp, &included)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO settings (id, tax_rate_bp, tax_included, updated_at) VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			orders.BasisPoints(s.defaults.Rate), s.defaults.IncludedInPrice, toUnix(s.now()))
		if err != nil {
			return orders.TaxPolicy{}, err
		}
		return s.defaults, nil
	}
	if err != nil {
		return orders.TaxPolicy{}, err
	}
	return orders.TaxPolicy{Rate: orders.FromBasisPoints(bp), IncludedInPrice: included}, nil
}

// SetTaxPolicy replaces the tax settings.
func (s *Store) SetTaxPolicy(ctx context.Context, p orders.TaxPolicy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, tax_rate_bp, tax_included, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    tax_rate_bp = excluded.tax_rate_bp,
		    tax_included = excluded.tax_included,
		    updated_at = excluded.updated_at`,
		orders.BasisPoints(p.Rate), p.IncludedInPrice, toUnix(s.now()))
	return err
}
