package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/domain"
)

type ProductsAPI struct{ c *Client }

func (p ProductsAPI) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.InStock != nil {
		q.Set("inStock", strconv.FormatBool(*f.InStock))
	}
	if f.SortBy != "" {
		q.Set("sortBy", f.SortBy)
	}
	if f.Order != "" {
		q.Set("order", f.Order)
	}
	return call[[]domain.Product](ctx, p.c, request{method: http.MethodGet, path: "/api/products", query: q})
}

// All fetches the unfiltered catalog snapshot.
func (p ProductsAPI) All(ctx context.Context) ([]domain.Product, error) {
	return p.List(ctx, domain.ProductFilter{})
}

func (p ProductsAPI) Get(ctx context.Context, id int64) (domain.Product, error) {
	return call[domain.Product](ctx, p.c, request{method: http.MethodGet, path: idPath("/api/products/%d", id)})
}

func (p ProductsAPI) Categories(ctx context.Context) ([]string, error) {
	return call[[]string](ctx, p.c, request{method: http.MethodGet, path: "/api/products/categories"})
}

func (p ProductsAPI) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	return call[domain.Product](ctx, p.c, request{method: http.MethodPost, path: "/api/products", body: in})
}

func (p ProductsAPI) Update(ctx context.Context, id int64, in domain.ProductInput) (domain.Product, error) {
	return call[domain.Product](ctx, p.c, request{method: http.MethodPut, path: idPath("/api/products/%d", id), body: in})
}

func (p ProductsAPI) Delete(ctx context.Context, id int64) error {
	return exec(ctx, p.c, request{method: http.MethodDelete, path: idPath("/api/products/%d", id)})
}
