package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/cafe-pos/internal/orders"
)

const orderColumns = `id, order_number, subtotal_cents, tax_cents, discount_cents, total_cents,
	payment_method, cash_received_cents, change_given_cents, status, order_type,
	customer_name, table_number, created_by, created_at, updated_at, completed_at`

const itemColumns = `order_id, line_no, product_id, product_name, product_price_cents,
	product_image_url, quantity, customization_notes, selected_options,
	base_price_cents, options_total_cents, item_price_cents, item_total_cents`

// nextSequence bumps the per-day counter. The seed value covers days whose
// orders predate the counter row.
func nextSequence(ctx context.Context, q querier, day string) (int, error) {
	var latest string
	err := q.QueryRowContext(ctx,
		`SELECT order_number FROM orders WHERE order_number LIKE ? ORDER BY order_number DESC LIMIT 1`,
		orders.OrderNumberPrefix(day)+"%").Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	var seq int
	err = q.QueryRowContext(ctx, `
		INSERT INTO order_counters (day, last_seq) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET last_seq = MAX(order_counters.last_seq + 1, excluded.last_seq)
		RETURNING last_seq`,
		day, orders.NextSequence(latest)).Scan(&seq)
	return seq, err
}

func (s *Store) CreateOrder(ctx context.Context, o *orders.Order, day string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	seq, err := nextSequence(ctx, tx, day)
	if err != nil {
		return fmt.Errorf("next order sequence: %w", err)
	}
	number, err := orders.FormatOrderNumber(day, seq)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, number, orders.Cents(o.Subtotal), orders.Cents(o.Tax), orders.Cents(o.Discount),
		orders.Cents(o.Total), string(o.PaymentMethod), orders.Cents(o.CashReceived),
		orders.Cents(o.ChangeGiven), string(o.Status), string(o.OrderType), o.CustomerName,
		o.TableNumber, o.CreatedBy, toUnix(o.CreatedAt), toUnix(o.UpdatedAt), nullTime(o.CompletedAt))
	if isUniqueViolation(err) && strings.Contains(err.Error(), "order_number") {
		return orders.ErrDuplicateOrderNumber
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		opts, err := json.Marshal(it.SelectedOptions)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO order_items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, i+1, it.ProductID, it.ProductSnapshot.Name, orders.Cents(it.ProductSnapshot.Price),
			it.ProductSnapshot.ImageURL, it.Quantity, it.CustomizationNotes, string(opts),
			orders.Cents(it.BasePrice), orders.Cents(it.OptionsTotal), orders.Cents(it.ItemPrice),
			orders.Cents(it.ItemTotal))
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i+1, err)
		}
	}

	for _, r := range o.Reservations() {
		if err := s.adjustStock(ctx, tx, r.ProductID, r.Delta); err != nil {
			return err
		}
	}

	if err := logStatus(ctx, tx, o.ID, o.Status, o.CreatedBy, toUnix(o.CreatedAt)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	o.OrderNumber = number
	return nil
}

func logStatus(ctx context.Context, q querier, orderID string, st orders.Status, actor string, at int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO order_status_log (order_id, status, changed_by, changed_at) VALUES (?, ?, ?, ?)`,
		orderID, string(st), actor, at)
	if err != nil {
		return fmt.Errorf("log status: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func scanOrder(sc scanner) (*orders.Order, error) {
	var (
		o                                            orders.Order
		subtotal, tax, discount, total, cash, change int64
		payment, status, orderType                   string
		created, updated                             int64
		completed                                    sql.NullInt64
	)
	if err := sc.Scan(&o.ID, &o.OrderNumber, &subtotal, &tax, &discount, &total, &payment,
		&cash, &change, &status, &orderType, &o.CustomerName, &o.TableNumber, &o.CreatedBy,
		&created, &updated, &completed); err != nil {
		return nil, err
	}
	o.Subtotal = orders.FromCents(subtotal)
	o.Tax = orders.FromCents(tax)
	o.Discount = orders.FromCents(discount)
	o.Total = orders.FromCents(total)
	o.CashReceived = orders.FromCents(cash)
	o.ChangeGiven = orders.FromCents(change)
	o.PaymentMethod = orders.PaymentMethod(payment)
	o.Status = orders.Status(status)
	o.OrderType = orders.OrderType(orderType)
	o.CreatedAt = fromUnix(created)
	o.UpdatedAt = fromUnix(updated)
	if completed.Valid {
		t := fromUnix(completed.Int64)
		o.CompletedAt = &t
	}
	return &o, nil
}

func scanItem(sc scanner) (string, orders.LineItem, error) {
	var (
		orderID                                         string
		line                                            int
		it                                              orders.LineItem
		opts                                            string
		snapPrice, base, optTotal, itemPrice, itemTotal int64
	)
	if err := sc.Scan(&orderID, &line, &it.ProductID, &it.ProductSnapshot.Name, &snapPrice,
		&it.ProductSnapshot.ImageURL, &it.Quantity, &it.CustomizationNotes, &opts,
		&base, &optTotal, &itemPrice, &itemTotal); err != nil {
		return "", it, err
	}
	if err := json.Unmarshal([]byte(opts), &it.SelectedOptions); err != nil {
		return "", it, fmt.Errorf("decode selected options of order %s line %d: %w", orderID, line, err)
	}
	it.ProductSnapshot.Price = orders.FromCents(snapPrice)
	it.BasePrice = orders.FromCents(base)
	it.OptionsTotal = orders.FromCents(optTotal)
	it.ItemPrice = orders.FromCents(itemPrice)
	it.ItemTotal = orders.FromCents(itemTotal)
	return orderID, it, nil
}

// loadItems fills Items for every order in the slice.
func loadItems(ctx context.Context, q querier, list []*orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*orders.Order, len(list))
	args := make([]any, 0, len(list))
	for _, o := range list {
		byID[o.ID] = o
		o.Items = []orders.LineItem{}
		args = append(args, o.ID)
	}

	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM order_items
		WHERE order_id IN (`+placeholders(len(args))+`) ORDER BY order_id, line_no`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		id, it, err := scanItem(rows)
		if err != nil {
			return err
		}
		byID[id].Items = append(byID[id].Items, it)
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q querier, id string) (*orders.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "order %s not found", id)
	}
	if err := loadItems(ctx, q, []*orders.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	return getOrder(ctx, s.db, id)
}

func (s *Store) ListOrders(ctx context.Context, f orders.ListFilter) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.PaymentMethod != "" {
		where = append(where, "payment_method = ?")
		args = append(args, string(f.PaymentMethod))
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, toUnix(*f.From))
	}
	if f.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, toUnix(*f.To))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, order_number DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var list []*orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadItems(ctx, s.db, list); err != nil {
		return nil, err
	}
	out := make([]orders.Order, 0, len(list))
	for _, o := range list {
		out = append(out, *o)
	}
	return out, nil
}

// UpdateStatus runs inside one transaction on the store's single connection,
// which serializes concurrent transitions of the same order.
func (s *Store) UpdateStatus(ctx context.Context, id, actor string, fn orders.TransitionFunc) (*orders.Order, []string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	o, err := getOrder(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	adjustments, err := fn(o)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		string(o.Status), toUnix(o.UpdatedAt), nullTime(o.CompletedAt), o.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("update order status: %w", err)
	}

	var skipped []string
	for _, a := range adjustments {
		err := s.adjustStock(ctx, tx, a.ProductID, a.Delta)
		if errors.Is(err, orders.ErrNotFound) {
			skipped = append(skipped, a.ProductID)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
	}

	if err := logStatus(ctx, tx, o.ID, o.Status, actor, toUnix(o.UpdatedAt)); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return o, skipped, nil
}

func (s *Store) StatusHistory(ctx context.Context, id string) ([]orders.StatusChange, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, notFound(err, "order %s not found", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, changed_by, changed_at FROM order_status_log WHERE order_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.StatusChange{}
	for rows.Next() {
		var (
			c      orders.StatusChange
			status string
			at     int64
		)
		if err := rows.Scan(&status, &c.ChangedBy, &at); err != nil {
			return nil, err
		}
		c.Status = orders.Status(status)
		c.ChangedAt = fromUnix(at)
		out = append(out, c)
	}
	return out, rows.Err()
}
