package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/pricing"
)

type cartView struct {
	Items   []int64            `json:"items"`
	Entries []domain.CartEntry `json:"entries"`
	Count   int                `json:"count"`
}

type addCartItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *handlers) getCart(c *gin.Context) {
	h.writeCart(c, http.StatusOK)
}

// cartSummary prices the cart against the catalog as it is right now.
func (h *handlers) cartSummary(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := h.Cart.Items(ctx, sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	catalog, err := h.backendFor(c).Products().All(ctx)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, pricing.Compute(ids, catalog))
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := h.Cart.Add(c.Request.Context(), sessionID(c), req.ProductID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.writeCart(c, http.StatusOK)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req updateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := h.Cart.UpdateQuantity(c.Request.Context(), sessionID(c), id, *req.Quantity); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.writeCart(c, http.StatusOK)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if _, err := h.Cart.Remove(c.Request.Context(), sessionID(c), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.writeCart(c, http.StatusOK)
}

func (h *handlers) clearCart(c *gin.Context) {
	if err := h.Cart.Clear(c.Request.Context(), sessionID(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.writeCart(c, http.StatusOK)
}

func (h *handlers) writeCart(c *gin.Context, status int) {
	items, err := h.Cart.Items(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []int64{}
	}
	ok(c, status, cartView{Items: items, Entries: pricing.Group(items), Count: len(items)})
}
