package backend

import (
	"context"
	"net/http"

	"storefront/internal/domain"
)

type AuthAPI struct{ c *Client }

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is what register and login return.
type AuthResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (a AuthAPI) Register(ctx context.Context, in RegisterRequest) (AuthResult, error) {
	return call[AuthResult](ctx, a.c, request{method: http.MethodPost, path: "/api/auth/register", body: in})
}

func (a AuthAPI) Login(ctx context.Context, in Credentials) (AuthResult, error) {
	return call[AuthResult](ctx, a.c, request{method: http.MethodPost, path: "/api/auth/login", body: in})
}

func (a AuthAPI) Profile(ctx context.Context) (domain.User, error) {
	return call[domain.User](ctx, a.c, request{method: http.MethodGet, path: "/api/auth/profile"})
}

func (a AuthAPI) UpdateProfile(ctx context.Context, in ProfileUpdate) (domain.User, error) {
	return call[domain.User](ctx, a.c, request{method: http.MethodPut, path: "/api/auth/profile", body: in})
}
