package orders

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OptionMode string

const (
	OptionSingle   OptionMode = "single"
	OptionMultiple OptionMode = "multiple"
)

type OptionValue struct {
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"priceModifier"`
}

type OptionGroup struct {
	GroupName string        `json:"groupName"`
	Type      OptionMode    `json:"type"`
	Required  bool          `json:"required"`
	Values    []OptionValue `json:"values"`
}

// Product is owned by the catalog; the order core only reads it and moves its stock.
type Product struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	IsAvailable       bool            `json:"isAvailable"`
	StockCount        int             `json:"stockCount"`
	LowStockThreshold int             `json:"lowStockThreshold"`
	Options           []OptionGroup   `json:"options"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (p *Product) LowStock() bool { return p.StockCount <= p.LowStockThreshold }

func (p *Product) group(name string) *OptionGroup {
	for i := range p.Options {
		if p.Options[i].GroupName == name {
			return &p.Options[i]
		}
	}
	return nil
}

func (g *OptionGroup) value(name string) (OptionValue, bool) {
	for _, v := range g.Values {
		if v.Name == name {
			return v, true
		}
	}
	return OptionValue{}, false
}

type OrderType string

const (
	OrderDineIn   OrderType = "Dine-In"
	OrderTakeAway OrderType = "Take Away"
)

func (t OrderType) Valid() bool { return t == OrderDineIn || t == OrderTakeAway }

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentQRCode PaymentMethod = "QRCode"
)

func (m PaymentMethod) Valid() bool { return m == PaymentCash || m == PaymentQRCode }

// ProductSnapshot freezes what the product looked like at the time of sale.
type ProductSnapshot struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

type SelectedOption struct {
	GroupName string        `json:"groupName"`
	Values    []OptionValue `json:"values"`
}

type LineItem struct {
	ProductID          string           `json:"productId"`
	ProductSnapshot    ProductSnapshot  `json:"productSnapshot"`
	Quantity           int              `json:"quantity"`
	CustomizationNotes string           `json:"customizationNotes,omitempty"`
	SelectedOptions    []SelectedOption `json:"selectedOptions"`
	BasePrice          decimal.Decimal  `json:"basePrice"`
	OptionsTotal       decimal.Decimal  `json:"optionsTotal"`
	ItemPrice          decimal.Decimal  `json:"itemPrice"`
	ItemTotal          decimal.Decimal  `json:"itemTotal"`
}

type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"orderNumber"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CashReceived  decimal.Decimal `json:"cashReceived"`
	ChangeGiven   decimal.Decimal `json:"changeGiven"`
	Status        Status          `json:"status"`
	OrderType     OrderType       `json:"orderType"`
	CustomerName  string          `json:"customerName,omitempty"`
	TableNumber   string          `json:"tableNumber,omitempty"`
	CreatedBy     string          `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// ProductIDs returns the distinct products referenced by the order, in item order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

// StockAdjustment is a signed change to one product's stock count.
type StockAdjustment struct {
	ProductID string
	Delta     int
}

// SortAdjustments orders adjustments by product id. Stores apply them in this
// order so concurrent transactions lock product rows in the same sequence.
func SortAdjustments(a []StockAdjustment) {
	slices.SortFunc(a, func(x, y StockAdjustment) int { return strings.Compare(x.ProductID, y.ProductID) })
}

// Reservations folds the line items into one negative adjustment per product,
// sorted by product id.
func (o *Order) Reservations() []StockAdjustment {
	return o.adjustments(-1)
}

func (o *Order) adjustments(sign int) []StockAdjustment {
	idx := make(map[string]int, len(o.Items))
	out := make([]StockAdjustment, 0, len(o.Items))
	for _, it := range o.Items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Delta += sign * it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, StockAdjustment{ProductID: it.ProductID, Delta: sign * it.Quantity})
	}
	SortAdjustments(out)
	return out
}

type StatusChange struct {
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
}

// ---- input ----

type SelectedValueInput struct {
	Name string `json:"name"`
}

type SelectedOptionInput struct {
	GroupName string               `json:"groupName"`
	Values    []SelectedValueInput `json:"values"`
}

type ItemInput struct {
	ProductID          string                `json:"productId"`
	Quantity           int                   `json:"quantity"`
	SelectedOptions    []SelectedOptionInput `json:"selectedOptions,omitempty"`
	CustomizationNotes string                `json:"customizationNotes,omitempty"`
}

type CreateOrderInput struct {
	Items         []ItemInput      `json:"items"`
	OrderType     OrderType        `json:"orderType"`
	PaymentMethod PaymentMethod    `json:"paymentMethod"`
	CustomerName  string           `json:"customerName,omitempty"`
	TableNumber   string           `json:"tableNumber,omitempty"`
	CashReceived  *decimal.Decimal `json:"cashReceived,omitempty"`
	ChangeGiven   *decimal.Decimal `json:"changeGiven,omitempty"`
	Discount      decimal.Decimal  `json:"discount"`
	CreatedBy     string           `json:"-"`
}

type ListFilter struct {
	Status        Status
	PaymentMethod PaymentMethod
	From          *time.Time
	To            *time.Time
	Limit         int
}

type TopProduct struct {
	ProductName   string          `json:"productName"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
}

type DateRange struct {
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

type SalesReport struct {
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	OrderCount        int             `json:"orderCount"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	TopProducts       []TopProduct    `json:"topProducts"`
	DateRange         DateRange       `json:"dateRange"`
}
