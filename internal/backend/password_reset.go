package backend

import (
	"context"
	"net/http"
)

type PasswordResetAPI struct{ c *Client }

func (p PasswordResetAPI) Request(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{email}
	return exec(ctx, p.c, request{method: http.MethodPost, path: "/api/password-reset/request", body: body})
}

func (p PasswordResetAPI) Validate(ctx context.Context, token string) error {
	body := struct {
		Token string `json:"token"`
	}{token}
	return exec(ctx, p.c, request{method: http.MethodPost, path: "/api/password-reset/validate", body: body})
}

func (p PasswordResetAPI) Reset(ctx context.Context, token, newPassword string) error {
	body := struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}{token, newPassword}
	return exec(ctx, p.c, request{method: http.MethodPost, path: "/api/password-reset/reset", body: body})
}
