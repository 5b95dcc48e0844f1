package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/service/checkout"
	"storefront/internal/service/reconcile"
)

// Responses use the same envelope as the backend so the UI has one shape to read.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

// writeError maps service errors onto status codes. Anything unrecognised is
// logged and reported as a 500 without leaking its text.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		verr    *domain.ValidationError
		apiErr  *backend.APIError
		illegal *checkout.IllegalTransitionError
	)
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, verr.Message)
	case errors.As(err, &illegal):
		fail(c, http.StatusConflict, illegal.Error())
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		fail(c, status, apiErr.Message)
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, checkout.ErrLoginRequired):
		fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, checkout.ErrNoCheckout):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrProcessing),
		errors.Is(err, reconcile.ErrInProgress):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, reconcile.ErrMissingPaymentID):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, reconcile.ErrPendingOrderMissing), errors.Is(err, reconcile.ErrPendingOrderIncomplete):
		fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, checkout.ErrPaymentInitiation), errors.Is(err, backend.ErrUnexpectedShape):
		fail(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, backend.ErrUnavailable):
		fail(c, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		fail(c, http.StatusInternalServerError, "internal error")
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
