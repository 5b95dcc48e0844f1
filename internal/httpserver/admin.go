package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

// Admin routes forward the session token; the backend decides who is an admin.

type orderStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

type toggleAdminRequest struct {
	IsAdmin bool `json:"isAdmin"`
}

func (h *handlers) adminCreateProduct(c *gin.Context) {
	var req domain.ProductInput
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.backendFor(c).Products().Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

func (h *handlers) adminUpdateProduct(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req domain.ProductInput
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.backendFor(c).Products().Update(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, p)
}

func (h *handlers) adminDeleteProduct(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.backendFor(c).Products().Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) adminListOrders(c *gin.Context) {
	status := domain.OrderStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		fail(c, http.StatusBadRequest, "unknown order status")
		return
	}
	list, err := h.backendFor(c).Orders().List(c.Request.Context(), status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *handlers) adminGetOrder(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	o, err := h.backendFor(c).Orders().Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, o)
}

func (h *handlers) adminUpdateOrderStatus(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req orderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if !req.Status.Valid() {
		fail(c, http.StatusBadRequest, "unknown order status")
		return
	}
	o, err := h.backendFor(c).Orders().UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, o)
}

func (h *handlers) adminOrderStats(c *gin.Context) {
	stats, err := h.backendFor(c).Orders().Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, stats)
}

func (h *handlers) adminListUsers(c *gin.Context) {
	list, err := h.backendFor(c).Users().List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *handlers) adminGetUser(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	u, err := h.backendFor(c).Users().Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, u)
}

func (h *handlers) adminToggleAdmin(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req toggleAdminRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.backendFor(c).Users().ToggleAdmin(c.Request.Context(), id, req.IsAdmin); err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, req)
}

func (h *handlers) adminDeleteUser(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.backendFor(c).Users().Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) adminUserStats(c *gin.Context) {
	stats, err := h.backendFor(c).Users().Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, stats)
}
