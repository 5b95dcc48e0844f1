package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/service/account"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetTokenRequest struct {
	Token string `json:"token"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *handlers) register(c *gin.Context) {
	var req account.RegisterInput
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.Account.Register(c.Request.Context(), sessionID(c), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, user)
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.Account.Login(c.Request.Context(), sessionID(c), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, profile)
}

// logout also abandons any checkout; the machine was started under the old login.
func (h *handlers) logout(c *gin.Context) {
	if err := h.Account.Logout(c.Request.Context(), sessionID(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.Checkout.Drop(sessionID(c))
	ok(c, http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *handlers) profile(c *gin.Context) {
	p, err := h.Account.Profile(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, p)
}

func (h *handlers) updateProfile(c *gin.Context) {
	var req backend.ProfileUpdate
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.Account.UpdateProfile(c.Request.Context(), sessionID(c), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, user)
}

func (h *handlers) requestPasswordReset(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Account.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, messageResponse{Message: "if the address is registered, a reset link has been sent"})
}

func (h *handlers) validateResetToken(c *gin.Context) {
	var req resetTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Account.ValidateResetToken(c.Request.Context(), req.Token); err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, messageResponse{Message: "token is valid"})
}

func (h *handlers) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Account.ResetPassword(c.Request.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, messageResponse{Message: "password updated"})
}

func (h *handlers) listAddresses(c *gin.Context) {
	list, err := h.Addresses.List(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *handlers) createAddress(c *gin.Context) {
	var req domain.AddressInput
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Addresses.Create(c.Request.Context(), sessionID(c), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

func (h *handlers) updateAddress(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req domain.AddressInput
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Addresses.Update(c.Request.Context(), sessionID(c), id, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, a)
}

func (h *handlers) setDefaultAddress(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	a, err := h.Addresses.SetDefault(c.Request.Context(), sessionID(c), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, a)
}

func (h *handlers) deleteAddress(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.Addresses.Delete(c.Request.Context(), sessionID(c), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
