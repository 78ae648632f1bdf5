package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MoneyPlaces is the minor-currency precision tax and totals are rounded to.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

type TaxPolicy struct {
	Rate            decimal.Decimal // percent, e.g. 7 for 7%
	IncludedInPrice bool
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Quote is a fully validated and priced basket, ready to persist.
type Quote struct {
	Items []LineItem
	Totals
}

// Pricer validates requested items against current catalog data and prices them.
type Pricer struct {
	catalog CatalogReader
	fanout  int
}

func NewPricer(catalog CatalogReader) *Pricer {
	return &Pricer{catalog: catalog, fanout: 8}
}

// Price reads every distinct product once, then validates and prices items
// in request order. The first failing item aborts the whole basket.
func (p *Pricer) Price(ctx context.Context, items []ItemInput, tax TaxPolicy) (*Quote, error) {
	products, err := p.snapshot(ctx, items)
	if err != nil {
		return nil, err
	}

	reserved := make(map[string]int, len(products))
	lines := make([]LineItem, 0, len(items))
	for i, in := range items {
		prod := products[in.ProductID]
		if prod == nil {
			return nil, Errorf(KindNotFound, "product %s not found", in.ProductID)
		}
		if !prod.IsAvailable {
			return nil, Errorf(KindUnavailable, "product %s is not available", prod.Name)
		}
		// Repeated lines for the same product draw from the same stock.
		if prod.StockCount < reserved[prod.ID]+in.Quantity {
			return nil, Errorf(KindInsufficientStock, "insufficient stock for %s: %d available", prod.Name, prod.StockCount-reserved[prod.ID])
		}
		line, err := PriceItem(prod, in)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		reserved[prod.ID] += in.Quantity
		lines = append(lines, line)
	}

	return &Quote{Items: lines, Totals: ComputeTotals(lines, tax)}, nil
}

// snapshot fetches the distinct products concurrently. A missing product is
// recorded as nil so the caller can report it in item order.
func (p *Pricer) snapshot(ctx context.Context, items []ItemInput) (map[string]*Product, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	found := make([]*Product, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fanout)
	for i, id := range ids {
		g.Go(func() error {
			prod, err := p.catalog.GetProduct(gctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("get product %s: %w", id, err)
			}
			found[i] = prod
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*Product, len(ids))
	for i, id := range ids {
		out[id] = found[i]
	}
	return out, nil
}

// PriceItem resolves the selected options of one line against the product
// definition and computes its price breakdown. Client-sent modifiers are
// never read; every modifier comes from the catalog.
func PriceItem(prod *Product, in ItemInput) (LineItem, error) {
	var (
		selected = make([]SelectedOption, 0, len(in.SelectedOptions))
		seen     = make(map[string]bool, len(in.SelectedOptions))
		chosen   = make(map[string]bool, len(in.SelectedOptions))
		optTotal = decimal.Zero
	)

	for _, sel := range in.SelectedOptions {
		group := prod.group(sel.GroupName)
		if group == nil {
			return LineItem{}, Errorf(KindInvalidOption, "invalid option group %q for %s", sel.GroupName, prod.Name)
		}
		if seen[group.GroupName] {
			return LineItem{}, Errorf(KindInvalidOption, "option %q for %s is selected more than once", group.GroupName, prod.Name)
		}
		seen[group.GroupName] = true
		if len(sel.Values) == 0 {
			if group.Required {
				return LineItem{}, Errorf(KindMissingRequiredOption, "option %q is required for %s", group.GroupName, prod.Name)
			}
			continue
		}
		if group.Type == OptionSingle && len(sel.Values) > 1 {
			return LineItem{}, Errorf(KindInvalidOption, "option %q for %s allows a single value", group.GroupName, prod.Name)
		}

		values := make([]OptionValue, 0, len(sel.Values))
		picked := make(map[string]bool, len(sel.Values))
		for _, v := range sel.Values {
			ov, ok := group.value(v.Name)
			if !ok {
				return LineItem{}, Errorf(KindInvalidOption, "invalid option value %q in %q for %s", v.Name, group.GroupName, prod.Name)
			}
			if picked[ov.Name] {
				return LineItem{}, Errorf(KindInvalidOption, "option value %q in %q for %s is repeated", ov.Name, group.GroupName, prod.Name)
			}
			picked[ov.Name] = true
			values = append(values, ov)
			optTotal = optTotal.Add(ov.PriceModifier)
		}
		chosen[group.GroupName] = true
		selected = append(selected, SelectedOption{GroupName: group.GroupName, Values: values})
	}

	for _, g := range prod.Options {
		if g.Required && !chosen[g.GroupName] {
			return LineItem{}, Errorf(KindMissingRequiredOption, "option %q is required for %s", g.GroupName, prod.Name)
		}
	}

	itemPrice := prod.Price.Add(optTotal)
	if itemPrice.IsNegative() {
		return LineItem{}, Errorf(KindInvalidOption, "options bring the price of %s below zero", prod.Name)
	}
	return LineItem{
		ProductID: prod.ID,
		ProductSnapshot: ProductSnapshot{
			Name:     prod.Name,
			Price:    prod.Price,
			ImageURL: prod.ImageURL,
		},
		Quantity:           in.Quantity,
		CustomizationNotes: in.CustomizationNotes,
		SelectedOptions:    selected,
		BasePrice:          prod.Price,
		OptionsTotal:       optTotal,
		ItemPrice:          itemPrice,
		ItemTotal:          itemPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
	}, nil
}

// ComputeTotals sums the lines and applies the tax policy. Tax is rounded to
// MoneyPlaces; the subtotal is exact.
func ComputeTotals(lines []LineItem, tax TaxPolicy) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.ItemTotal)
	}
	rate := tax.Rate.Div(hundred)

	if tax.IncludedInPrice {
		base := subtotal.Div(decimal.NewFromInt(1).Add(rate))
		return Totals{
			Subtotal: subtotal,
			Tax:      subtotal.Sub(base).Round(MoneyPlaces),
			Total:    subtotal,
		}
	}

	t := subtotal.Mul(rate).Round(MoneyPlaces)
	return Totals{Subtotal: subtotal, Tax: t, Total: subtotal.Add(t)}
}

// SettleCash checks the tendered amount against the total and works out the
// change. A supplied change amount is kept only when it is positive, and it
// may not exceed cash minus total.
func SettleCash(total decimal.Decimal, received, change *decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	cash := decimal.Zero
	if received != nil {
		cash = *received
	}
	if cash.LessThan(total) {
		return decimal.Zero, decimal.Zero, Errorf(KindInsufficientPayment, "cash received %s is less than total %s", cash.StringFixed(MoneyPlaces), total.StringFixed(MoneyPlaces))
	}
	if change != nil && change.IsPositive() {
		if due := cash.Sub(total); change.GreaterThan(due) {
			return decimal.Zero, decimal.Zero, Errorf(KindValidation, "changeGiven %s exceeds change due %s", change.StringFixed(MoneyPlaces), due.StringFixed(MoneyPlaces))
		}
		return cash, *change, nil
	}
	return cash, cash.Sub(total), nil
}
