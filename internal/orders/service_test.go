package orders

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

func setupService(t *testing.T, ps ...Product) (*Service, *memStore, *recordingNotifier) {
	t.Helper()
	if len(ps) == 0 {
		ps = []Product{latte()}
	}
	store := newMemStore(ps...)
	n := &recordingNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, staticSettings(sevenPercent), n, log,
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
	)
	return svc, store, n
}

func largeLatte(qty int) CreateOrderInput {
	return CreateOrderInput{
		Items: []ItemInput{{
			ProductID:       "p-latte",
			Quantity:        qty,
			SelectedOptions: []SelectedOptionInput{sel("Size", "Large")},
		}},
		OrderType:     OrderDineIn,
		PaymentMethod: PaymentQRCode,
		TableNumber:   "4",
		CreatedBy:     "u-cashier",
	}
}

func TestCreateOrder(t *testing.T) {
	svc, store, n := setupService(t)

	in := largeLatte(2)
	in.PaymentMethod = PaymentCash
	in.CashReceived = ptr(dec("300"))

	o, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "ORD-20261019-0001", o.OrderNumber)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "u-cashier", o.CreatedBy)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.True(t, dec("256.8").Equal(o.Total))
	assert.True(t, dec("43.2").Equal(o.ChangeGiven))
	assert.Nil(t, o.CompletedAt)
	assert.Equal(t, 8, store.stock("p-latte"))
	assert.Equal(t, []string{EventNewOrder, EventProductStockChanged}, n.names())

	payload, ok := n.events[0].payload.(NewOrderPayload)
	require.True(t, ok)
	assert.Equal(t, o.OrderNumber, payload.OrderNumber)
	assert.Equal(t, "Latte", payload.Items[0].ProductName)
	assert.Equal(t, []string{"p-latte"}, n.events[1].payload.(StockChangedPayload).Products)

	o2, err := svc.CreateOrder(context.Background(), largeLatte(1))
	require.NoError(t, err)
	assert.Equal(t, "ORD-20261019-0002", o2.OrderNumber)
	assert.True(t, o2.CashReceived.IsZero())
	assert.Equal(t, 7, store.stock("p-latte"))
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, _ := setupService(t)

	tests := []struct {
		name string
		mut  func(*CreateOrderInput)
	}{
		{"no items", func(in *CreateOrderInput) { in.Items = nil }},
		{"no order type", func(in *CreateOrderInput) { in.OrderType = "" }},
		{"bad order type", func(in *CreateOrderInput) { in.OrderType = "Delivery" }},
		{"no payment method", func(in *CreateOrderInput) { in.PaymentMethod = "" }},
		{"bad payment method", func(in *CreateOrderInput) { in.PaymentMethod = "Card" }},
		{"zero quantity", func(in *CreateOrderInput) { in.Items[0].Quantity = 0 }},
		{"missing product id", func(in *CreateOrderInput) { in.Items[0].ProductID = "" }},
		{"negative discount", func(in *CreateOrderInput) { in.Discount = dec("-1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := largeLatte(1)
			tt.mut(&in)
			_, err := svc.CreateOrder(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateOrderFailuresMutateNothing(t *testing.T) {
	tests := []struct {
		name string
		in   CreateOrderInput
		want error
	}{
		{"insufficient stock", largeLatte(11), ErrInsufficientStock},
		{"invalid option", func() CreateOrderInput {
			in := largeLatte(1)
			in.Items[0].SelectedOptions = []SelectedOptionInput{sel("Size", "Venti")}
			return in
		}(), ErrInvalidOption},
		{"missing required option", func() CreateOrderInput {
			in := largeLatte(1)
			in.Items[0].SelectedOptions = nil
			return in
		}(), ErrMissingRequiredOption},
		{"cash short", func() CreateOrderInput {
			in := largeLatte(2)
			in.PaymentMethod = PaymentCash
			in.CashReceived = ptr(dec("200"))
			return in
		}(), ErrInsufficientPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, n := setupService(t)
			_, err := svc.CreateOrder(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 10, store.stock("p-latte"))
			assert.Zero(t, store.creates)
			assert.Empty(t, n.names())
		})
	}
}

func TestCreateOrderRetriesDuplicateNumberOnce(t *testing.T) {
	svc, store, _ := setupService(t)
	store.dupes = 1

	o, err := svc.CreateOrder(context.Background(), largeLatte(1))
	require.NoError(t, err)
	assert.Equal(t, 2, store.creates)
	assert.Equal(t, "ORD-20261019-0002", o.OrderNumber)

	store.dupes = 2
	_, err = svc.CreateOrder(context.Background(), largeLatte(1))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 9, store.stock("p-latte"))
}

func TestCreateOrderConcurrentNeverOversells(t *testing.T) {
	svc, store, _ := setupService(t)

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(context.Background(), largeLatte(1))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientStock)
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 0, store.stock("p-latte"))

	seen := map[string]bool{}
	for _, o := range store.orders {
		assert.False(t, seen[o.OrderNumber], o.OrderNumber)
		seen[o.OrderNumber] = true
	}
}

func TestUpdateOrderStatusLifecycle(t *testing.T) {
	svc, _, n := setupService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, largeLatte(1))
	require.NoError(t, err)

	o, err = svc.UpdateOrderStatus(ctx, o.ID, "In Progress", "u-barista")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, o.Status)

	o, err = svc.UpdateOrderStatus(ctx, o.ID, "Completed", "u-barista")
	require.NoError(t, err)
	require.NotNil(t, o.CompletedAt)
	assert.Equal(t, fixedNow, *o.CompletedAt)

	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.CompletedAt, got.CompletedAt)

	_, err = svc.UpdateOrderStatus(ctx, o.ID, "Completed", "u-barista")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	hist, err := svc.StatusHistory(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, StatusPending, hist[0].Status)
	assert.Equal(t, "u-barista", hist[2].ChangedBy)

	assert.Equal(t, []string{
		EventNewOrder, EventProductStockChanged,
		EventOrderStatusUpdated, EventOrderStatusUpdated,
	}, n.names())
}

func TestServiceClockKeepsMicroseconds(t *testing.T) {
	store := newMemStore(latte())
	at := time.Date(2026, 10, 19, 8, 30, 0, 123456789, time.UTC)
	svc := NewService(store, staticSettings(sevenPercent), &recordingNotifier{}, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return at }), WithLocation(time.UTC))
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, largeLatte(1))
	require.NoError(t, err)
	assert.Equal(t, 123456000, o.CreatedAt.Nanosecond())

	_, err = svc.UpdateOrderStatus(ctx, o.ID, "In Progress", "u-barista")
	require.NoError(t, err)
	done, err := svc.UpdateOrderStatus(ctx, o.ID, "Completed", "u-barista")
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, 123456000, done.CompletedAt.Nanosecond())
	assert.Equal(t, 123456000, done.UpdatedAt.Nanosecond())
}

func TestUpdateOrderStatusCancelRestoresStockOnce(t *testing.T) {
	svc, store, n := setupService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, largeLatte(3))
	require.NoError(t, err)
	require.Equal(t, 7, store.stock("p-latte"))

	o, err = svc.UpdateOrderStatus(ctx, o.ID, "Cancelled", "u-manager")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, 10, store.stock("p-latte"))
	assert.Equal(t, EventProductStockChanged, n.names()[len(n.names())-1])

	_, err = svc.UpdateOrderStatus(ctx, o.ID, "Cancelled", "u-manager")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 10, store.stock("p-latte"))
}

func TestUpdateOrderStatusCancelWithDeletedProduct(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, largeLatte(1))
	require.NoError(t, err)

	store.mu.Lock()
	delete(store.products, "p-latte")
	store.mu.Unlock()

	o, err = svc.UpdateOrderStatus(ctx, o.ID, "Cancelled", "u-manager")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
}

func TestUpdateOrderStatusErrors(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, largeLatte(1))
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(ctx, o.ID, "Ready", "u")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateOrderStatus(ctx, "missing", "Completed", "u")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateOrderStatus(ctx, o.ID, "Completed", "u")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 9, store.stock("p-latte"))
}

func TestSalesReportAverages(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	for _, qty := range []int{1, 2} {
		o, err := svc.CreateOrder(ctx, largeLatte(qty))
		require.NoError(t, err)
		_, err = svc.UpdateOrderStatus(ctx, o.ID, "In Progress", "b")
		require.NoError(t, err)
		_, err = svc.UpdateOrderStatus(ctx, o.ID, "Completed", "b")
		require.NoError(t, err)
	}

	r, err := svc.SalesReport(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r.OrderCount)
	// 128.40 + 256.80
	assert.True(t, dec("385.2").Equal(r.TotalRevenue))
	assert.True(t, dec("192.6").Equal(r.AverageOrderValue))
	assert.NotNil(t, r.TopProducts)

	from := fixedNow
	to := fixedNow.Add(-time.Hour)
	_, err = svc.SalesReport(ctx, &from, &to)
	assert.ErrorIs(t, err, ErrValidation)

	empty, _, _ := setupService(t)
	r, err = empty.SalesReport(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, r.AverageOrderValue.Equal(decimal.Zero))
}
