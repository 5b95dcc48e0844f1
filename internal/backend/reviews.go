package backend

import (
	"context"
	"net/http"

	"storefront/internal/domain"
)

type ReviewsAPI struct{ c *Client }

func (r ReviewsAPI) ByProduct(ctx context.Context, productID int64) ([]domain.Review, error) {
	return call[[]domain.Review](ctx, r.c, request{method: http.MethodGet, path: idPath("/api/reviews/product/%d", productID)})
}

func (r ReviewsAPI) Create(ctx context.Context, in domain.ReviewInput) (domain.Review, error) {
	return call[domain.Review](ctx, r.c, request{method: http.MethodPost, path: "/api/reviews", body: in})
}

func (r ReviewsAPI) Update(ctx context.Context, id int64, in domain.ReviewInput) (domain.Review, error) {
	return call[domain.Review](ctx, r.c, request{method: http.MethodPut, path: idPath("/api/reviews/%d", id), body: in})
}

func (r ReviewsAPI) Delete(ctx context.Context, id int64) error {
	return exec(ctx, r.c, request{method: http.MethodDelete, path: idPath("/api/reviews/%d", id)})
}
