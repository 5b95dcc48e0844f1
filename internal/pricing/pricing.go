// Package pricing derives cart lines and order totals from a flat cart and a
// catalog snapshot. Everything here is pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

var (
	FreeShippingThreshold = decimal.NewFromInt(500)
	FlatShipping          = decimal.NewFromInt(50)
	TaxRate               = decimal.RequireFromString("0.18")
)

// Line is a derived cart line. Product is nil when the id is not in the
// catalog snapshot; such a line stays in the cart with a zero subtotal.
type Line struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   *domain.Product `json:"product"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type Summary struct {
	Lines  []Line `json:"lines"`
	Totals Totals `json:"totals"`
}

// Group counts occurrences per id in first-seen order.
func Group(ids []int64) []domain.CartEntry {
	pos := make(map[int64]int, len(ids))
	entries := make([]domain.CartEntry, 0, len(ids))
	for _, id := range ids {
		if i, ok := pos[id]; ok {
			entries[i].Quantity++
			continue
		}
		pos[id] = len(entries)
		entries = append(entries, domain.CartEntry{ProductID: id, Quantity: 1})
	}
	return entries
}

func Lines(ids []int64, catalog []domain.Product) []Line {
	byID := make(map[int64]*domain.Product, len(catalog))
	for i := range catalog {
		byID[catalog[i].ID] = &catalog[i]
	}
	entries := Group(ids)
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		l := Line{ProductID: e.ProductID, Quantity: e.Quantity, Subtotal: decimal.Zero}
		if p, ok := byID[e.ProductID]; ok {
			cp := *p
			l.Product = &cp
			l.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
		}
		lines = append(lines, l)
	}
	return lines
}

// ComputeTotals applies the shipping and tax policy to a subtotal.
func ComputeTotals(subtotal decimal.Decimal) Totals {
	shipping := FlatShipping
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	// Round rounds half away from zero.
	tax := subtotal.Mul(TaxRate).Round(0)
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

func Compute(ids []int64, catalog []domain.Product) Summary {
	lines := Lines(ids, catalog)
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal)
	}
	return Summary{Lines: lines, Totals: ComputeTotals(subtotal)}
}
