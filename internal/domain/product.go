package domain

import "github.com/shopspring/decimal"

// Product is a catalog item as served by the backend. Price arrives either as
// a JSON string ("150.00") or a number; decimal accepts both.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Description string          `json:"description,omitempty"`
	Specs       []string        `json:"specs,omitempty"`
	InStock     bool            `json:"in_stock"`
	Reviews     []Review        `json:"reviews,omitempty"`
}

// ProductInput is the admin create/update payload.
type ProductInput struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Images      []string        `json:"images,omitempty"`
	Description string          `json:"description,omitempty"`
	Specs       []string        `json:"specs,omitempty"`
	InStock     bool            `json:"inStock"`
}

// ProductFilter maps to the catalog query string.
type ProductFilter struct {
	Category string
	Search   string
	InStock  *bool
	SortBy   string
	Order    string
}
