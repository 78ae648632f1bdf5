package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memStore struct {
	mu       sync.Mutex
	products map[string]*Product
	orders   map[string]*Order
	counters map[string]int
	history  map[string][]StatusChange
	dupes    int // CreateOrder calls left that fail with ErrDuplicateOrderNumber
	creates  int
}

func newMemStore(ps ...Product) *memStore {
	m := &memStore{
		products: map[string]*Product{},
		orders:   map[string]*Order{},
		counters: map[string]int{},
		history:  map[string][]StatusChange{},
	}
	for i := range ps {
		p := ps[i]
		m.products[p.ID] = &p
	}
	return m
}

func (m *memStore) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].StockCount
}

func (m *memStore) GetProduct(_ context.Context, id string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProducts(context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) AdjustStock(_ context.Context, id string, delta int) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.StockCount+delta < 0 {
		return nil, ErrInsufficientStock
	}
	p.StockCount += delta
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateOrder(_ context.Context, o *Order, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.counters[day]++
	num, err := FormatOrderNumber(day, m.counters[day])
	if err != nil {
		return err
	}
	if m.dupes > 0 {
		m.dupes--
		return ErrDuplicateOrderNumber
	}
	for _, r := range o.Reservations() {
		p, ok := m.products[r.ProductID]
		if !ok {
			return Errorf(KindNotFound, "product %s not found", r.ProductID)
		}
		if p.StockCount+r.Delta < 0 {
			return Errorf(KindInsufficientStock, "insufficient stock for %s", p.Name)
		}
	}
	for _, r := range o.Reservations() {
		m.products[r.ProductID].StockCount += r.Delta
	}
	o.OrderNumber = num
	cp := *o
	m.orders[o.ID] = &cp
	m.history[o.ID] = append(m.history[o.ID], StatusChange{Status: o.Status, ChangedBy: o.CreatedBy, ChangedAt: o.CreatedAt})
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrders(_ context.Context, f ListFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id, actor string, fn TransitionFunc) (*Order, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	o := *stored
	adj, err := fn(&o)
	if err != nil {
		return nil, nil, err
	}
	var skipped []string
	for _, a := range adj {
		p, ok := m.products[a.ProductID]
		if !ok {
			skipped = append(skipped, a.ProductID)
			continue
		}
		p.StockCount += a.Delta
	}
	m.orders[id] = &o
	m.history[id] = append(m.history[id], StatusChange{Status: o.Status, ChangedBy: actor, ChangedAt: o.UpdatedAt})
	cp := o
	return &cp, skipped, nil
}

func (m *memStore) StatusHistory(_ context.Context, id string) ([]StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return nil, ErrNotFound
	}
	return append([]StatusChange(nil), m.history[id]...), nil
}

func (m *memStore) SalesReport(_ context.Context, from, to *time.Time) (*SalesReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &SalesReport{}
	for _, o := range m.orders {
		if o.Status != StatusCompleted {
			continue
		}
		r.OrderCount++
		r.TotalRevenue = r.TotalRevenue.Add(o.Total)
	}
	return r, nil
}

type staticSettings TaxPolicy

func (s staticSettings) TaxPolicy(context.Context) (TaxPolicy, error) { return TaxPolicy(s), nil }

type published struct {
	event   string
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(_ context.Context, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{event, payload})
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.event)
	}
	return out
}
