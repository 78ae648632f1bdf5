package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/cafe-pos/internal/orders"
)

const topProductsLimit = 10

func (s *Store) SalesReport(ctx context.Context, from, to *time.Time) (*orders.SalesReport, error) {
	where := []string{"o.status = ?"}
	args := []any{string(orders.StatusCompleted)}
	if from != nil {
		where = append(where, "o.created_at >= ?")
		args = append(args, toUnix(*from))
	}
	if to != nil {
		where = append(where, "o.created_at <= ?")
		args = append(args, toUnix(*to))
	}
	cond := strings.Join(where, " AND ")

	var revenue int64
	r := &orders.SalesReport{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(o.total_cents), 0), COUNT(*) FROM orders o WHERE `+cond, args...).
		Scan(&revenue, &r.OrderCount)
	if err != nil {
		return nil, err
	}
	r.TotalRevenue = orders.FromCents(revenue)

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.product_name, SUM(i.quantity), SUM(i.item_total_cents)
		FROM order_items i JOIN orders o ON o.id = i.order_id
		WHERE `+cond+`
		GROUP BY i.product_name
		ORDER BY SUM(i.quantity) DESC, i.product_name
		LIMIT ?`, append(args, topProductsLimit)...)
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
