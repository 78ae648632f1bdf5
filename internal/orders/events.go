package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventNewOrder            = "new_order"
	EventOrderStatusUpdated  = "update_order_status"
	EventProductStockChanged = "product_stock_changed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id when the event is about one order
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type NewOrderItem struct {
	ProductName        string          `json:"productName"`
	Quantity           int             `json:"quantity"`
	CustomizationNotes string          `json:"customizationNotes,omitempty"`
	ItemTotal          decimal.Decimal `json:"itemTotal"`
}

type NewOrderPayload struct {
	OrderID      string          `json:"orderId"`
	OrderNumber  string          `json:"orderNumber"`
	Items        []NewOrderItem  `json:"items"`
	OrderType    OrderType       `json:"orderType"`
	CustomerName string          `json:"customerName,omitempty"`
	TableNumber  string          `json:"tableNumber,omitempty"`
	Status       Status          `json:"status"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func (p NewOrderPayload) CorrelationID() string { return p.OrderID }

type StatusUpdatedPayload struct {
	OrderID     string     `json:"orderId"`
	OrderNumber string     `json:"orderNumber"`
	Status      Status     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (p StatusUpdatedPayload) CorrelationID() string { return p.OrderID }

type StockChangedPayload struct {
	OrderID  string   `json:"-"`
	Products []string `json:"products"`
}

func (p StockChangedPayload) CorrelationID() string { return p.OrderID }

func newOrderPayload(o *Order) NewOrderPayload {
	items := make([]NewOrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, NewOrderItem{
			ProductName:        it.ProductSnapshot.Name,
			Quantity:           it.Quantity,
			CustomizationNotes: it.CustomizationNotes,
			ItemTotal:          it.ItemTotal,
		})
	}
	return NewOrderPayload{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		Items:        items,
		OrderType:    o.OrderType,
		CustomerName: o.CustomerName,
		TableNumber:  o.TableNumber,
		Status:       o.Status,
		Total:        o.Total,
		CreatedAt:    o.CreatedAt,
	}
}

func statusUpdatedPayload(o *Order) StatusUpdatedPayload {
	return StatusUpdatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		CompletedAt: o.CompletedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}
