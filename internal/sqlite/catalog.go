package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/cafe-pos/internal/orders"
)

const productColumns = `id, name, price_cents, image_url, is_available, stock_count,
	low_stock_threshold, options, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (*orders.Product, error) {
	var (
		p                orders.Product
		price            int64
		options          string
		created, updated int64
	)
	if err := sc.Scan(&p.ID, &p.Name, &price, &p.ImageURL, &p.IsAvailable, &p.StockCount,
		&p.LowStockThreshold, &options, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(options), &p.Options); err != nil {
		return nil, fmt.Errorf("decode options of product %s: %w", p.ID, err)
	}
	p.Price = orders.FromCents(price)
	p.CreatedAt = fromUnix(created)
	p.UpdatedAt = fromUnix(updated)
	return &p, nil
}

func getProduct(ctx context.Context, q querier, id string) (*orders.Product, error) {
	row := q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, notFound(err, "product %s not found", id)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*orders.Product, error) {
	return getProduct(ctx, s.db, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
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

// UpsertProduct inserts or replaces a catalog entry, stock included.
func (s *Store) UpsertProduct(ctx context.Context, p orders.Product) error {
	options, err := json.Marshal(p.Options)
	if err != nil {
		return err
	}
	if p.Options == nil {
		options = []byte("[]")
	}
	now := toUnix(s.now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name,
		    price_cents = excluded.price_cents,
		    image_url = excluded.image_url,
		    is_available = excluded.is_available,
		    stock_count = excluded.stock_count,
		    low_stock_threshold = excluded.low_stock_threshold,
		    options = excluded.options,
		    updated_at = excluded.updated_at`,
		p.ID, p.Name, orders.Cents(p.Price), p.ImageURL, p.IsAvailable, p.StockCount,
		p.LowStockThreshold, string(options), now, now)
	return err
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*orders.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.adjustStock(ctx, tx, id, delta); err != nil {
		return nil, err
	}
	p, err := getProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return p, tx.Commit()
}

// adjustStock is a conditional update: a decrement that would take stock
// below zero matches no row.
func (s *Store) adjustStock(ctx context.Context, q querier, id string, delta int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE products
		SET stock_count = stock_count + ?, updated_at = ?
		WHERE id = ? AND stock_count + ? >= 0`,
		delta, toUnix(s.now()), id, delta)
	if err != nil {
		return fmt.Errorf("adjust stock of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var stock int
	err = q.QueryRowContext(ctx, `SELECT stock_count FROM products WHERE id = ?`, id).Scan(&stock)
	if err != nil {
		return notFound(err, "product %s not found", id)
	}
	return orders.Errorf(orders.KindInsufficientStock, "insufficient stock for product %s: %d available", id, stock)
}
