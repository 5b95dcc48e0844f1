package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

func (h *handlers) listProducts(c *gin.Context) {
	f := domain.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sortBy"),
		Order:    c.Query("order"),
	}
	if raw := c.Query("inStock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid inStock")
			return
		}
		f.InStock = &v
	}
	products, err := h.backendFor(c).Products().List(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, products)
}

func (h *handlers) getProduct(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	p, err := h.backendFor(c).Products().Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, p)
}

func (h *handlers) categories(c *gin.Context) {
	list, err := h.backendFor(c).Products().Categories(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *handlers) productReviews(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	list, err := h.backendFor(c).Reviews().ByProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *handlers) createReview(c *gin.Context) {
	var req domain.ReviewInput
	if !bindJSON(c, &req) {
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		fail(c, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}
	r, err := h.backendFor(c).Reviews().Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

func (h *handlers) updateReview(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req domain.ReviewInput
	if !bindJSON(c, &req) {
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		fail(c, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}
	r, err := h.backendFor(c).Reviews().Update(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, r)
}

func (h *handlers) deleteReview(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.backendFor(c).Reviews().Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
