package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/cafe-pos/internal/orders"
)

const topProductsLimit = 10

func (s *Store) SalesReport(ctx context.Context, from, to *time.Time) (*orders.SalesReport, error) {
	const cond = `o.status = $1
		AND ($2::timestamptz IS NULL OR o.created_at >= $2)
		AND ($3::timestamptz IS NULL OR o.created_at <= $3)`
	args := []any{string(orders.StatusCompleted), from, to}

	var revenue int64
	r := &orders.SalesReport{}
	err := s.DB.QueryRow(ctx,
		`SELECT COALESCE(SUM(o.total_cents), 0)::bigint, COUNT(*) FROM orders o WHERE `+cond, args...).
		Scan(&revenue, &r.OrderCount)
	if err != nil {
		return nil, err
	}
	r.TotalRevenue = orders.FromCents(revenue)

	rows, err := s.DB.Query(ctx, `
		SELECT i.product_name, SUM(i.quantity)::bigint, SUM(i.item_total_cents)::bigint
		FROM order_items i JOIN orders o ON o.id = i.order_id
		WHERE `+cond+`
		GROUP BY i.product_name
		ORDER BY SUM(i.quantity) DESC, i.product_name
		LIMIT $4`, append(args, topProductsLimit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	r.TopProducts = []orders.TopProduct{}
	for rows.Next() {
		var (
			tp    orders.TopProduct
			total int64
		)
		if err := rows.Scan(&tp.ProductName, &tp.TotalQuantity, &total); err != nil {
			return nil, err
		}
		tp.TotalRevenue = orders.FromCents(total)
		r.TopProducts = append(r.TopProducts, tp)
	}
	return r, rows.Err()
}
