package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/backend"
	"storefront/internal/service/checkout"
)

type selectAddressRequest struct {
	AddressID int64 `json:"addressId" binding:"required"`
}

type paymentMethodRequest struct {
	Method checkout.PaymentMethod `json:"method" binding:"required"`
}

type cardRequest struct {
	CardNumber string `json:"cardNumber"`
	CardName   string `json:"cardName"`
	Expiry     string `json:"expiryDate"`
	CVV        string `json:"cvv"`
}

type installmentRequest struct {
	Installment int `json:"installment" binding:"required"`
}

type previousResponse struct {
	checkout.Snapshot
	Exit bool `json:"exit,omitempty"`
}

func (h *handlers) beginCheckout(c *gin.Context) {
	m, err := h.Checkout.Begin(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, m.State())
}

func (h *handlers) machine(c *gin.Context) (*checkout.Machine, bool) {
	m, err := h.Checkout.Get(sessionID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return nil, false
	}
	return m, true
}

func (h *handlers) checkoutState(c *gin.Context) {
	if m, found := h.machine(c); found {
		ok(c, http.StatusOK, m.State())
	}
}

func (h *handlers) dropCheckout(c *gin.Context) {
	h.Checkout.Drop(sessionID(c))
	c.Status(http.StatusNoContent)
}

func (h *handlers) selectAddress(c *gin.Context) {
	var req selectAddressRequest
	if !bindJSON(c, &req) {
		return
	}
	m, found := h.machine(c)
	if !found {
		return
	}
	if err := m.SelectAddress(req.AddressID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, m.State())
}

func (h *handlers) selectPaymentMethod(c *gin.Context) {
	var req paymentMethodRequest
	if !bindJSON(c, &req) {
		return
	}
	m, found := h.machine(c)
	if !found {
		return
	}
	if err := m.SelectPaymentMethod(req.Method); err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, m.State())
}

// setCard accepts raw input; the response echoes the formatted fields so the
// form can redisplay them.
func (h *handlers) setCard(c *gin.Context) {
	var req cardRequest
	if !bindJSON(c, &req) {
		return
	}
	m, found := h.machine(c)
	if !found {
		return
	}
	card := checkout.CardInfo{Number: req.CardNumber, Name: req.CardName, Expiry: req.Expiry, CVV: req.CVV}
	if err := m.SetCard(card); err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, cardRequest{
		CardNumber: checkout.FormatCardNumber(req.CardNumber),
		CardName:   req.CardName,
		Expiry:     checkout.FormatExpiry(req.Expiry),
		CVV:        checkout.FormatCVV(req.CVV),
	})
}

func (h *handlers) selectInstallment(c *gin.Context) {
	var req installmentRequest
	if !bindJSON(c, &req) {
		return
	}
	m, found := h.machine(c)
	if !found {
		return
	}
	if err := m.SelectInstallment(req.Installment); err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, m.State())
}

// checkoutNext advances the flow. Leaving the payment step starts a payment,
// which is rate limited per session.
func (h *handlers) checkoutNext(c *gin.Context) {
	m, found := h.machine(c)
	if !found {
		return
	}
	if m.State().Step == checkout.StepPayment && !h.limiter.allow(sessionID(c)) {
		fail(c, http.StatusTooManyRequests, "too many payment attempts, please wait a moment")
		return
	}
	snap, err := m.Next(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

func (h *handlers) checkoutPrevious(c *gin.Context) {
	m, found := h.machine(c)
	if !found {
		return
	}
	snap, err := m.Previous()
	if errors.Is(err, checkout.ErrExitCheckout) {
		h.Checkout.Drop(sessionID(c))
		ok(c, http.StatusOK, previousResponse{Snapshot: snap, Exit: true})
		return
	}
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, previousResponse{Snapshot: snap})
}

// threeDS serves the bank's challenge document as-is for the UI to frame.
func (h *handlers) threeDS(c *gin.Context) {
	m, found := h.machine(c)
	if !found {
		return
	}
	doc := m.ThreeDS()
	if doc == nil {
		fail(c, http.StatusNotFound, "no 3-D Secure challenge pending")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", doc)
}

func (h *handlers) close3DS(c *gin.Context) {
	if m, found := h.machine(c); found {
		ok(c, http.StatusOK, m.Close3DS())
	}
}

func (h *handlers) checkoutSummary(c *gin.Context) {
	m, found := h.machine(c)
	if !found {
		return
	}
	s, err := m.Summary(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, s)
}

func (h *handlers) installments(c *gin.Context) {
	m, found := h.machine(c)
	if !found {
		return
	}
	plans, err := m.Installments(c.Request.Context(), c.Query("cardNumber"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if plans == nil {
		plans = []backend.InstallmentPrice{}
	}
	ok(c, http.StatusOK, plans)
}
