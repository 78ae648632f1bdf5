package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	store    Store
	settings SettingsSource
	notifier Notifier
	pricer   *Pricer
	log      *slog.Logger
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Service)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the zone order-number dates are computed in.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func NewService(store Store, settings SettingsSource, notifier Notifier, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		settings: settings,
		notifier: notifier,
		pricer:   NewPricer(store),
		log:      log,
		now:      time.Now,
		loc:      time.Local,
	}
	for _, o := range opts {
		o(s)
	}
	// Postgres keeps microseconds; returned orders and events must match what
	// a later read gives back.
	clock := s.now
	s.now = func() time.Time { return clock().Truncate(time.Microsecond) }
	return s
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	tax, err := s.settings.TaxPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tax policy: %w", err)
	}
	quote, err := s.pricer.Price(ctx, in.Items, tax)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:            uuid.NewString(),
		Items:         quote.Items,
		Subtotal:      quote.Subtotal,
		Tax:           quote.Tax,
		Discount:      in.Discount,
		Total:         quote.Total,
		PaymentMethod: in.PaymentMethod,
		CashReceived:  decimal.Zero,
		ChangeGiven:   decimal.Zero,
		Status:        StatusPending,
		OrderType:     in.OrderType,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		TableNumber:   strings.TrimSpace(in.TableNumber),
		CreatedBy:     in.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.PaymentMethod == PaymentCash {
		o.CashReceived, o.ChangeGiven, err = SettleCash(o.Total, in.CashReceived, in.ChangeGiven)
		if err != nil {
			return nil, err
		}
	}

	day := DayKey(now.In(s.loc))
	err = s.store.CreateOrder(ctx, o, day)
	if errors.Is(err, ErrDuplicateOrderNumber) {
		s.log.Warn("order number collision, retrying", "day", day, "order_number", o.OrderNumber)
		o.OrderNumber = ""
		err = s.store.CreateOrder(ctx, o, day)
		if errors.Is(err, ErrDuplicateOrderNumber) {
			return nil, Errorf(KindConflict, "could not assign a unique order number for %s", day)
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("order created", "order_id", o.ID, "order_number", o.OrderNumber, "total", o.Total.String())
	s.notifier.Publish(ctx, EventNewOrder, newOrderPayload(o))
	s.notifier.Publish(ctx, EventProductStockChanged, StockChangedPayload{OrderID: o.ID, Products: o.ProductIDs()})
	return o, nil
}

func validateCreate(in CreateOrderInput) error {
	switch {
	case len(in.Items) == 0:
		return Errorf(KindValidation, "order must contain at least one item")
	case in.OrderType == "":
		return Errorf(KindValidation, "orderType is required")
	case !in.OrderType.Valid():
		return Errorf(KindValidation, "invalid orderType %q", in.OrderType)
	case in.PaymentMethod == "":
		return Errorf(KindValidation, "paymentMethod is required")
	case !in.PaymentMethod.Valid():
		return Errorf(KindValidation, "invalid paymentMethod %q", in.PaymentMethod)
	case in.Discount.IsNegative():
		return Errorf(KindValidation, "discount cannot be negative")
	case in.ChangeGiven != nil && in.ChangeGiven.IsNegative():
		return Errorf(KindValidation, "changeGiven cannot be negative")
	}
	for i, it := range in.Items {
		if it.ProductID == "" {
			return Errorf(KindValidation, "item %d: productId is required", i+1)
		}
		if it.Quantity < 1 {
			return Errorf(KindValidation, "item %d: quantity must be at least 1", i+1)
		}
	}
	return nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id, status, actor string) (*Order, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	var from Status
	o, skipped, err := s.store.UpdateStatus(ctx, id, actor, func(o *Order) ([]StockAdjustment, error) {
		from = o.Status
		return o.Transition(to, s.now())
	})
	if err != nil {
		return nil, err
	}
	for _, pid := range skipped {
		s.log.Warn("stock not restored, product no longer exists", "order_id", o.ID, "product_id", pid)
	}

	s.log.Info("order status changed", "order_id", o.ID, "order_number", o.OrderNumber, "from", from, "to", o.Status)
	s.notifier.Publish(ctx, EventOrderStatusUpdated, statusUpdatedPayload(o))
	if o.Status == StatusCancelled {
		s.notifier.Publish(ctx, EventProductStockChanged, StockChangedPayload{OrderID: o.ID, Products: o.ProductIDs()})
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, Errorf(KindInvalidStatus, "invalid status %q", f.Status)
	}
	if f.PaymentMethod != "" && !f.PaymentMethod.Valid() {
		return nil, Errorf(KindValidation, "invalid paymentMethod %q", f.PaymentMethod)
	}
	return s.store.ListOrders(ctx, f)
}

func (s *Service) StatusHistory(ctx context.Context, id string) ([]StatusChange, error) {
	return s.store.StatusHistory(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) SalesReport(ctx context.Context, from, to *time.Time) (*SalesReport, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, Errorf(KindValidation, "endDate is before startDate")
	}
	r, err := s.store.SalesReport(ctx, from, to)
	if err != nil {
		return nil, err
	}
	r.AverageOrderValue = decimal.Zero
	if r.OrderCount > 0 {
		r.AverageOrderValue = r.TotalRevenue.Div(decimal.NewFromInt(int64(r.OrderCount))).Round(MoneyPlaces)
	}
	if r.TopProducts == nil {
		r.TopProducts = []TopProduct{}
	}
	r.DateRange = DateRange{StartDate: from, EndDate: to}
	return r, nil
}
