package backend

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/domain"
)

type OrdersAPI struct{ c *Client }

// Create places an order. A non-empty idempotencyKey is sent as the
// Idempotency-Key header so the backend can collapse retries.
func (o OrdersAPI) Create(ctx context.Context, in domain.OrderRequest, idempotencyKey string) (domain.Order, error) {
	r := request{method: http.MethodPost, path: "/api/orders", body: in}
	if idempotencyKey != "" {
		r.header = http.Header{"Idempotency-Key": []string{idempotencyKey}}
	}
	return call[domain.Order](ctx, o.c, r)
}

func (o OrdersAPI) Mine(ctx context.Context) ([]domain.Order, error) {
	return call[[]domain.Order](ctx, o.c, request{method: http.MethodGet, path: "/api/orders/my-orders"})
}

func (o OrdersAPI) Get(ctx context.Context, id int64) (domain.Order, error) {
	return call[domain.Order](ctx, o.c, request{method: http.MethodGet, path: idPath("/api/orders/%d", id)})
}

// List is the admin listing, optionally filtered by status.
func (o OrdersAPI) List(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": []string{string(status)}}
	}
	return call[[]domain.Order](ctx, o.c, request{method: http.MethodGet, path: "/api/orders/all", query: q})
}

func (o OrdersAPI) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	body := struct {
		Status domain.OrderStatus `json:"status"`
	}{status}
	return call[domain.Order](ctx, o.c, request{method: http.MethodPut, path: idPath("/api/orders/%d/status", id), body: body})
}

func (o OrdersAPI) Stats(ctx context.Context) (domain.OrderStats, error) {
	return call[domain.OrderStats](ctx, o.c, request{method: http.MethodGet, path: "/api/orders/stats"})
}
