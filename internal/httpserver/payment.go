package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/service/reconcile"
)

// paymentSuccess is the provider's success redirect. Repeated or concurrent
// hits for one payment create at most one order.
func (h *handlers) paymentSuccess(c *gin.Context) {
	var cb reconcile.Callback
	if err := c.ShouldBindQuery(&cb); err != nil {
		fail(c, http.StatusBadRequest, "invalid callback parameters")
		return
	}
	res, err := h.Reconcile.Reconcile(c.Request.Context(), sessionID(c), cb)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if res.Status == reconcile.StatusCreated {
		status = http.StatusCreated
	}
	// A finished card payment ends the checkout for this session.
	h.Checkout.Drop(sessionID(c))
	ok(c, status, res)
}

func (h *handlers) paymentFailure(c *gin.Context) {
	ok(c, http.StatusOK, reconcile.Failure(c.Query("error")))
}
