package backend

import (
	"context"
	"net/http"

	"storefront/internal/domain"
)

type AddressesAPI struct{ c *Client }

func (a AddressesAPI) List(ctx context.Context) ([]domain.Address, error) {
	return call[[]domain.Address](ctx, a.c, request{method: http.MethodGet, path: "/api/addresses"})
}

func (a AddressesAPI) Create(ctx context.Context, in domain.AddressInput) (domain.Address, error) {
	return call[domain.Address](ctx, a.c, request{method: http.MethodPost, path: "/api/addresses", body: in})
}

func (a AddressesAPI) Update(ctx context.Context, id int64, in domain.AddressInput) (domain.Address, error) {
	return call[domain.Address](ctx, a.c, request{method: http.MethodPut, path: idPath("/api/addresses/%d", id), body: in})
}

func (a AddressesAPI) Delete(ctx context.Context, id int64) error {
	return exec(ctx, a.c, request{method: http.MethodDelete, path: idPath("/api/addresses/%d", id)})
}
