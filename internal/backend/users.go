package backend

import (
	"context"
	"net/http"

	"storefront/internal/domain"
)

// UsersAPI is admin only; the backend enforces that.
type UsersAPI struct{ c *Client }

func (u UsersAPI) List(ctx context.Context) ([]domain.AdminUser, error) {
	return call[[]domain.AdminUser](ctx, u.c, request{method: http.MethodGet, path: "/api/users"})
}

func (u UsersAPI) Get(ctx context.Context, id int64) (domain.AdminUser, error) {
	return call[domain.AdminUser](ctx, u.c, request{method: http.MethodGet, path: idPath("/api/users/%d", id)})
}

func (u UsersAPI) ToggleAdmin(ctx context.Context, id int64, isAdmin bool) error {
	body := struct {
		IsAdmin bool `json:"isAdmin"`
	}{isAdmin}
	return exec(ctx, u.c, request{method: http.MethodPut, path: idPath("/api/users/%d/toggle-admin", id), body: body})
}

func (u UsersAPI) Delete(ctx context.Context, id int64) error {
	return exec(ctx, u.c, request{method: http.MethodDelete, path: idPath("/api/users/%d", id)})
}

func (u UsersAPI) Stats(ctx context.Context) (domain.UserStats, error) {
	return call[domain.UserStats](ctx, u.c, request{method: http.MethodGet, path: "/api/users/stats"})
}
