package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/ariefcatur/cafe-pos/internal/redisx"
	"github.com/go-chi/chi/v5"
)

// OrderCache is the optional Redis side of the handler: idempotency keys
// and the order status cache.
type OrderCache interface {
	LookupOrder(ctx context.Context, key string) (string, bool, error)
	RememberOrder(ctx context.Context, key, orderID string) error
	CacheStatus(ctx context.Context, e redisx.StatusEntry) error
	CachedStatus(ctx context.Context, orderID string) (redisx.StatusEntry, bool, error)
	DropStatus(ctx context.Context, orderID string) error
}

type OrdersHandler struct {
	Service *orders.Service
	Cache   OrderCache // nil disables idempotency keys and the status cache
	Log     *slog.Logger
	// Location interprets startDate/endDate query parameters.
	Location *time.Location
}

const dateLayout = "2006-01-02"

func (h *OrdersHandler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Use(auth)
		r.Get("/products", h.listProducts)
		r.Route("/orders", func(r chi.Router) {
			r.With(RequireRole(RoleCashier, RoleManager)).Post("/", h.createOrder)
			r.Get("/", h.listOrders)
			r.With(RequireRole(RoleManager)).Get("/reports/sales", h.salesReport)
			r.Get("/{id}", h.getOrder)
			r.Get("/{id}/status", h.getStatus)
			r.Get("/{id}/history", h.history)
			r.With(RequireRole(RoleBarista, RoleManager)).Put("/{id}/status", h.updateStatus)
		})
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Service.ListProducts(ctx)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, string(orders.KindValidation), "invalid json")
		return
	}
	actor, _ := ActorFrom(r.Context())
	in.CreatedBy = actor.ID

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	idemKey := r.Header.Get("Idempotency-Key")
	if h.Cache != nil && idemKey != "" {
		id, ok, err := h.Cache.LookupOrder(ctx, idemKey)
		if err != nil {
			h.Log.Warn("idempotency lookup failed", "key", idemKey, "error", err)
		}
		if ok {
			o, err := h.Service.GetOrder(ctx, id)
			if err == nil {
				w.Header().Set("Idempotent-Replay", "true")
				writeJSON(w, http.StatusOK, o)
				return
			}
			h.Log.Warn("idempotent order not loadable", "key", idemKey, "order_id", id, "error", err)
		}
	}

	o, err := h.Service.CreateOrder(ctx, in)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}

	if h.Cache != nil {
		if idemKey != "" {
			if err := h.Cache.RememberOrder(ctx, idemKey, o.ID); err != nil {
				h.Log.Warn("remember idempotency key", "key", idemKey, "error", err)
			}
		}
		h.cacheStatus(ctx, o)
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.ListFilter{
		Status:        orders.Status(q.Get("status")),
		PaymentMethod: orders.PaymentMethod(q.Get("paymentMethod")),
	}
	var err error
	if f.From, f.To, err = h.dateRange(r); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	if s := q.Get("limit"); s != "" {
		if f.Limit, err = strconv.Atoi(s); err != nil || f.Limit < 0 {
			writeError(w, http.StatusBadRequest, string(orders.KindValidation), "limit must be a non-negative integer")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Service.ListOrders(ctx, f)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Cache != nil {
		if e, ok, err := h.Cache.CachedStatus(ctx, orderID); err == nil && ok {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}

	// 2) store
	o, err := h.Service.GetOrder(ctx, orderID)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	if h.Cache != nil {
		h.cacheStatus(ctx, o)
	}
	writeJSON(w, http.StatusOK, statusEntry(o))
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	hist, err := h.Service.StatusHistory(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(orders.KindValidation), "invalid json")
		return
	}
	actor, _ := ActorFrom(r.Context())
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.UpdateOrderStatus(ctx, orderID, req.Status, actor.ID)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.DropStatus(ctx, orderID); err != nil {
			h.Log.Warn("drop cached status", "order_id", orderID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) salesReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rep, err := h.Service.SalesReport(ctx, from, to)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// dateRange reads startDate/endDate (YYYY-MM-DD). The end date covers its
// whole day.
func (h *OrdersHandler) dateRange(r *http.Request) (from, to *time.Time, err error) {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	q := r.URL.Query()
	if s := q.Get("startDate"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return nil, nil, orders.Errorf(orders.KindValidation, "startDate must be YYYY-MM-DD")
		}
		from = &t
	}
	if s := q.Get("endDate"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return nil, nil, orders.Errorf(orders.KindValidation, "endDate must be YYYY-MM-DD")
		}
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
		to = &t
	}
	return from, to, nil
}

func statusEntry(o *orders.Order) redisx.StatusEntry {
	return redisx.StatusEntry{OrderID: o.ID, OrderNumber: o.OrderNumber, Status: o.Status, UpdatedAt: o.UpdatedAt}
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if err := h.Cache.CacheStatus(ctx, statusEntry(o)); err != nil {
		h.Log.Warn("cache order status", "order_id", o.ID, "error", err)
	}
}
