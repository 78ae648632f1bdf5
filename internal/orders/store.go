package orders

import (
	"context"
	"time"
)

type CatalogReader interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}

type Catalog interface {
	CatalogReader
	ListProducts(ctx context.Context) ([]Product, error)
	// AdjustStock adds delta (which may be negative) to the product's stock.
	// Stock never drops below zero: an oversized decrement is ErrInsufficientStock.
	AdjustStock(ctx context.Context, id string, delta int) (*Product, error)
}

// TransitionFunc mutates a locked order and returns the stock adjustments to
// apply alongside the status write.
type TransitionFunc func(o *Order) ([]StockAdjustment, error)

type Store interface {
	Catalog

	// CreateOrder assigns the next order number for day, inserts the order and
	// reserves stock for every line in a single transaction. A failed
	// conditional decrement aborts everything with ErrInsufficientStock.
	CreateOrder(ctx context.Context, o *Order, day string) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, error)

	// UpdateStatus locks the order, runs fn and persists the result together
	// with the returned adjustments and a status log entry. Adjustments whose
	// product no longer exists are skipped; their ids are returned.
	UpdateStatus(ctx context.Context, id, actor string, fn TransitionFunc) (*Order, []string, error)
	StatusHistory(ctx context.Context, id string) ([]StatusChange, error)

	// SalesReport aggregates Completed orders created in [from, to]. Either
	// bound may be nil. AverageOrderValue and DateRange are left to the caller.
	SalesReport(ctx context.Context, from, to *time.Time) (*SalesReport, error)
}

type SettingsSource interface {
	TaxPolicy(ctx context.Context) (TaxPolicy, error)
}

// Notifier is fire-and-forget: implementations log delivery problems.
type Notifier interface {
	Publish(ctx context.Context, event string, payload any)
}
