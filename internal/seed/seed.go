// Package seed loads a catalog file into a store.
package seed

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ariefcatur/cafe-pos/internal/orders"
)

type File struct {
	Tax      *Tax      `yaml:"tax"`
	Products []Product `yaml:"products"`
}

type Tax struct {
	Rate     string `yaml:"rate"`
	Included bool   `yaml:"included"`
}

type Product struct {
	ID                string        `yaml:"id"`
	Name              string        `yaml:"name"`
	Price             string        `yaml:"price"`
	ImageURL          string        `yaml:"image_url"`
	Available         *bool         `yaml:"available"`
	Stock             int           `yaml:"stock"`
	LowStockThreshold int           `yaml:"low_stock_threshold"`
	Options           []OptionGroup `yaml:"options"`
}

type OptionGroup struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Values   []Option `yaml:"values"`
}

type Option struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

type Target interface {
	UpsertProduct(ctx context.Context, p orders.Product) error
	SetTaxPolicy(ctx context.Context, p orders.TaxPolicy) error
}

func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &f, nil
}

// CatalogProducts converts the file entries into catalog products. Entries without
// an id get one derived from their name, so reseeding updates in place.
func (f *File) CatalogProducts() ([]orders.Product, error) {
	out := make([]orders.Product, 0, len(f.Products))
	for i, p := range f.Products {
		if p.Name == "" {
			return nil, fmt.Errorf("product %d: name is required", i+1)
		}
		price, err := money(p.Price)
		if err != nil {
			return nil, fmt.Errorf("product %q: price: %w", p.Name, err)
		}
		if p.Stock < 0 {
			return nil, fmt.Errorf("product %q: stock cannot be negative", p.Name)
		}
		id := p.ID
		if id == "" {
			id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.Name)).String()
		}
		prod := orders.Product{
			ID:                id,
			Name:              p.Name,
			Price:             price,
			ImageURL:          p.ImageURL,
			IsAvailable:       p.Available == nil || *p.Available,
			StockCount:        p.Stock,
			LowStockThreshold: p.LowStockThreshold,
		}
		for _, g := range p.Options {
			mode := orders.OptionMode(g.Type)
			if mode == "" {
				mode = orders.OptionSingle
			}
			if mode != orders.OptionSingle && mode != orders.OptionMultiple {
				return nil, fmt.Errorf("product %q: option group %q: type must be single or multiple", p.Name, g.Name)
			}
			group := orders.OptionGroup{GroupName: g.Name, Type: mode, Required: g.Required}
			for _, v := range g.Values {
				mod, err := decimal.NewFromString(orZero(v.Price))
				if err != nil {
					return nil, fmt.Errorf("product %q: option %q: %w", p.Name, v.Name, err)
				}
				group.Values = append(group.Values, orders.OptionValue{Name: v.Name, PriceModifier: mod})
			}
			prod.Options = append(prod.Options, group)
		}
		out = append(out, prod)
	}
	return out, nil
}

// Apply writes the tax policy (if present) and upserts every product.
func (f *File) Apply(ctx context.Context, t Target) (int, error) {
	products, err := f.CatalogProducts()
	if err != nil {
		return 0, err
	}
	if f.Tax != nil {
		rate, err := money(f.Tax.Rate)
		if err != nil {
			return 0, fmt.Errorf("tax rate: %w", err)
		}
		if err := t.SetTaxPolicy(ctx, orders.TaxPolicy{Rate: rate, IncludedInPrice: f.Tax.Included}); err != nil {
			return 0, err
		}
	}
	for _, p := range products {
		if err := t.UpsertProduct(ctx, p); err != nil {
			return 0, fmt.Errorf("upsert %q: %w", p.Name, err)
		}
	}
	return len(products), nil
}

func money(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(orZero(s))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s is negative", s)
	}
	return d, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
