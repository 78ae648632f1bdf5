package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/jackc/pgx/v5"
)

// TaxPolicy reads the settings row; the first read on an empty table stores
// and returns the defaults.
func (s *Store) TaxPolicy(ctx context.Context) (orders.TaxPolicy, error) {
	var (
		bp       int64
		included bool
	)
	err := s.DB.QueryRow(ctx,
		`SELECT tax_rate_bp, tax_included FROM settings WHERE id = 1`).Scan(&bp, &included)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = s.DB.Exec(ctx, `
			INSERT INTO settings (id, tax_rate_bp, tax_included) VALUES (1, $1, $2)
			ON CONFLICT (id) DO NOTHING`,
			orders.BasisPoints(s.Defaults.Rate), s.Defaults.IncludedInPrice)
		if err != nil {
			return orders.TaxPolicy{}, err
		}
		return s.Defaults, nil
	}
	if err != nil {
		return orders.TaxPolicy{}, err
	}
	return orders.TaxPolicy{Rate: orders.FromBasisPoints(bp), IncludedInPrice: included}, nil
}

func (s *Store) SetTaxPolicy(ctx context.Context, p orders.TaxPolicy) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO settings (id, tax_rate_bp, tax_included) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
		    tax_rate_bp = EXCLUDED.tax_rate_bp,
		    tax_included = EXCLUDED.tax_included,
		    updated_at = now()`,
		orders.BasisPoints(p.Rate), p.IncludedInPrice)
	return err
}
