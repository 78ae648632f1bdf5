package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/jackc/pgx/v5"
)

const productColumns = `id, name, price_cents, image_url, is_available, stock_count,
	low_stock_threshold, options, created_at, updated_at`

func scanProduct(row pgx.Row) (*orders.Product, error) {
	var (
		p       orders.Product
		price   int64
		options []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.ImageURL, &p.IsAvailable, &p.StockCount,
		&p.LowStockThreshold, &options, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(options, &p.Options); err != nil {
		return nil, fmt.Errorf("decode options of product %s: %w", p.ID, err)
	}
	p.Price = orders.FromCents(price)
	return &p, nil
}

func getProduct(ctx context.Context, q querier, id string) (*orders.Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "product %s not found", id)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*orders.Product, error) {
	return getProduct(ctx, s.DB, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) UpsertProduct(ctx context.Context, p orders.Product) error {
	if p.Options == nil {
		p.Options = []orders.OptionGroup{}
	}
	options, err := json.Marshal(p.Options)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO products (id, name, price_cents, image_url, is_available, stock_count,
		                      low_stock_threshold, options)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
		    name = EXCLUDED.name,
		    price_cents = EXCLUDED.price_cents,
		    image_url = EXCLUDED.image_url,
		    is_available = EXCLUDED.is_available,
		    stock_count = EXCLUDED.stock_count,
		    low_stock_threshold = EXCLUDED.low_stock_threshold,
		    options = EXCLUDED.options,
		    updated_at = now()`,
		p.ID, p.Name, orders.Cents(p.Price), p.ImageURL, p.IsAvailable, p.StockCount,
		p.LowStockThreshold, options)
	return err
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*orders.Product, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := adjustStock(ctx, tx, id, delta); err != nil {
		return nil, err
	}
	p, err := getProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return p, tx.Commit(ctx)
}

// adjustStock is a single conditional UPDATE (decrement-if-sufficient), so
// concurrent orders can never drive stock below zero.
func adjustStock(ctx context.Context, q querier, id string, delta int) error {
	tag, err := q.Exec(ctx, `
		UPDATE products
		SET stock_count = stock_count + $2, updated_at = now()
		WHERE id = $1 AND stock_count + $2 >= 0`, id, delta)
	if err != nil {
		return fmt.Errorf("adjust stock of %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var stock int
	if err := q.QueryRow(ctx, `SELECT stock_count FROM products WHERE id = $1`, id).Scan(&stock); err != nil {
		return notFound(err, "product %s not found", id)
	}
	return orders.Errorf(orders.KindInsufficientStock, "insufficient stock for product %s: %d available", id, stock)
}
