package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, order_number, subtotal_cents, tax_cents, discount_cents, total_cents,
	payment_method, cash_received_cents, change_given_cents, status, order_type,
	customer_name, table_number, created_by, created_at, updated_at, completed_at`

const itemColumns = `order_id, line_no, product_id, product_name, product_price_cents,
	product_image_url, quantity, customization_notes, selected_options,
	base_price_cents, options_total_cents, item_price_cents, item_total_cents`

// nextSequence bumps the per-day counter row. The row lock it takes is held
// until commit, so order numbers for one day are handed out one at a time.
func nextSequence(ctx context.Context, q querier, day string) (int, error) {
	var latest string
	err := q.QueryRow(ctx,
		`SELECT order_number FROM orders WHERE order_number LIKE $1 ORDER BY order_number DESC LIMIT 1`,
		orders.OrderNumberPrefix(day)+"%").Scan(&latest)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var seq int
	err = q.QueryRow(ctx, `
		INSERT INTO order_counters (day, last_seq) VALUES ($1, $2)
		ON CONFLICT (day) DO UPDATE SET last_seq = GREATEST(order_counters.last_seq + 1, EXCLUDED.last_seq)
		RETURNING last_seq`,
		day, orders.NextSequence(latest)).Scan(&seq)
	return seq, err
}

// CreateOrder: counter, order row, items, stock decrements and the first
// status log entry all commit together or not at all.
func (s *Store) CreateOrder(ctx context.Context, o *orders.Order, day string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	seq, err := nextSequence(ctx, tx, day)
	if err != nil {
		return fmt.Errorf("next order sequence: %w", err)
	}
	number, err := orders.FormatOrderNumber(day, seq)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, number, orders.Cents(o.Subtotal), orders.Cents(o.Tax), orders.Cents(o.Discount),
		orders.Cents(o.Total), string(o.PaymentMethod), orders.Cents(o.CashReceived),
		orders.Cents(o.ChangeGiven), string(o.Status), string(o.OrderType), o.CustomerName,
		o.TableNumber, o.CreatedBy, o.CreatedAt, o.UpdatedAt, o.CompletedAt)
	if isUniqueViolation(err, "orders_order_number_key") {
		return orders.ErrDuplicateOrderNumber
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		opts, err := json.Marshal(it.SelectedOptions)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO order_items (`+itemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			o.ID, i+1, it.ProductID, it.ProductSnapshot.Name, orders.Cents(it.ProductSnapshot.Price),
			it.ProductSnapshot.ImageURL, it.Quantity, it.CustomizationNotes, opts,
			orders.Cents(it.BasePrice), orders.Cents(it.OptionsTotal), orders.Cents(it.ItemPrice),
			orders.Cents(it.ItemTotal))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	for _, r := range o.Reservations() {
		if err := adjustStock(ctx, tx, r.ProductID, r.Delta); err != nil {
			return err
		}
	}

	if err := logStatus(ctx, tx, o.ID, o.Status, o.CreatedBy, o.CreatedAt); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	o.OrderNumber = number
	return nil
}

func logStatus(ctx context.Context, q querier, orderID string, st orders.Status, actor string, at time.Time) error {
	_, err := q.Exec(ctx,
		`INSERT INTO order_status_log (order_id, status, changed_by, changed_at) VALUES ($1, $2, $3, $4)`,
		orderID, string(st), actor, at)
	if err != nil {
		return fmt.Errorf("log status: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o                                            orders.Order
		subtotal, tax, discount, total, cash, change int64
		payment, status, orderType                   string
	)
	if err := row.Scan(&o.ID, &o.OrderNumber, &subtotal, &tax, &discount, &total, &payment,
		&cash, &change, &status, &orderType, &o.CustomerName, &o.TableNumber, &o.CreatedBy,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt); err != nil {
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
	return &o, nil
}

func loadItems(ctx context.Context, q querier, list []*orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*orders.Order, len(list))
	ids := make([]string, 0, len(list))
	for _, o := range list {
		byID[o.ID] = o
		o.Items = []orders.LineItem{}
		ids = append(ids, o.ID)
	}

	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM order_items
		WHERE order_id = ANY($1) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID                                         string
			line                                            int
			it                                              orders.LineItem
			opts                                            []byte
			snapPrice, base, optTotal, itemPrice, itemTotal int64
		)
		if err := rows.Scan(&orderID, &line, &it.ProductID, &it.ProductSnapshot.Name, &snapPrice,
			&it.ProductSnapshot.ImageURL, &it.Quantity, &it.CustomizationNotes, &opts,
			&base, &optTotal, &itemPrice, &itemTotal); err != nil {
			return err
		}
		if err := json.Unmarshal(opts, &it.SelectedOptions); err != nil {
			return fmt.Errorf("decode selected options of order %s line %d: %w", orderID, line, err)
		}
		it.ProductSnapshot.Price = orders.FromCents(snapPrice)
		it.BasePrice = orders.FromCents(base)
		it.OptionsTotal = orders.FromCents(optTotal)
		it.ItemPrice = orders.FromCents(itemPrice)
		it.ItemTotal = orders.FromCents(itemTotal)
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q querier, id string, forUpdate bool) (*orders.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, notFound(err, "order %s not found", id)
	}
	if err := loadItems(ctx, q, []*orders.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	return getOrder(ctx, s.DB, id, false)
}

func (s *Store) ListOrders(ctx context.Context, f orders.ListFilter) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.PaymentMethod != "" {
		add("payment_method = $%d", string(f.PaymentMethod))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, order_number DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.DB.Query(ctx, query, args...)
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

	if err := loadItems(ctx, s.DB, list); err != nil {
		return nil, err
	}
	out := make([]orders.Order, 0, len(list))
	for _, o := range list {
		out = append(out, *o)
	}
	return out, nil
}

// UpdateStatus holds the order row lock (SELECT ... FOR UPDATE) across the
// transition, the stock restoration and the log write.
func (s *Store) UpdateStatus(ctx context.Context, id, actor string, fn orders.TransitionFunc) (*orders.Order, []string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := getOrder(ctx, tx, id, true)
	if err != nil {
		return nil, nil, err
	}
	adjustments, err := fn(o)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = $3, completed_at = $4 WHERE id = $1`,
		o.ID, string(o.Status), o.UpdatedAt, o.CompletedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("update order status: %w", err)
	}

	var skipped []string
	orders.SortAdjustments(adjustments)
	for _, a := range adjustments {
		err := adjustStock(ctx, tx, a.ProductID, a.Delta)
		if errors.Is(err, orders.ErrNotFound) {
			skipped = append(skipped, a.ProductID)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
	}

	if err := logStatus(ctx, tx, o.ID, o.Status, actor, o.UpdatedAt); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return o, skipped, nil
}

func (s *Store) StatusHistory(ctx context.Context, id string) ([]orders.StatusChange, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, orders.Errorf(orders.KindNotFound, "order %s not found", id)
	}

	rows, err := s.DB.Query(ctx,
		`SELECT status, changed_by, changed_at FROM order_status_log WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.StatusChange{}
	for rows.Next() {
		var (
			c      orders.StatusChange
			status string
		)
		if err := rows.Scan(&status, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, err
		}
		c.Status = orders.Status(status)
		out = append(out, c)
	}
	return out, rows.Err()
}
