// Package reconcile turns a pending order into a backend order once the
// payment provider redirects back with a payment id. It creates at most one
// order per payment id.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/pricing"
	"storefront/internal/storage"
)

type Status string

const (
	StatusCreated        Status = "created"
	StatusAlreadyCreated Status = "already_created"
)

var (
	ErrMissingPaymentID = errors.New("missing payment id")
	// ErrPendingOrderMissing means there is nothing to reconcile; no order is
	// created and the user should contact support.
	ErrPendingOrderMissing = errors.New("order details not found, please contact customer support")
	// ErrPendingOrderIncomplete means the pending order lacks an address or items.
	ErrPendingOrderIncomplete = errors.New("order details are incomplete, please contact customer support")
	// ErrInProgress means another request still held the claim for this
	// payment after ClaimWait.
	ErrInProgress = errors.New("order creation already in progress for this payment")
)

// Callback carries the query parameters of the provider's success redirect.
type Callback struct {
	PaymentID      string `form:"paymentId" json:"paymentId"`
	ConversationID string `form:"conversationId" json:"conversationId"`
	Price          string `form:"price" json:"price"`
}

type Result struct {
	Status         Status        `json:"status"`
	PaymentID      string        `json:"paymentId"`
	ConversationID string        `json:"conversationId,omitempty"`
	Price          string        `json:"price,omitempty"`
	Order          *domain.Order `json:"order,omitempty"`
}

// FailurePage is what the failure redirect renders.
type FailurePage struct {
	Message string `json:"message"`
}

const unknownFailure = "unknown error"

func Failure(message string) FailurePage {
	if message == "" {
		message = unknownFailure
	}
	return FailurePage{Message: message}
}

type cartStore interface {
	Clear(ctx context.Context, session string) error
}

// OrderCreator places the order with the backend, authenticated as session.
type OrderCreator interface {
	CreateOrder(ctx context.Context, session string, in domain.OrderRequest, idempotencyKey string) (domain.Order, error)
}

type Config struct {
	// ClaimTTL bounds how long a crashed attempt blocks retries.
	ClaimTTL time.Duration
	// ClaimWait is how long a request that lost the claim waits for the
	// holder to finish, polling every ClaimPoll.
	ClaimWait       time.Duration
	ClaimPoll       time.Duration
	PendingOrderTTL time.Duration
}

type Handler struct {
	store     storage.Store
	cart      cartStore
	orders    OrderCreator
	publisher events.Publisher
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time
	flight    singleflight.Group
}

func New(store storage.Store, cart cartStore, orders OrderCreator, publisher events.Publisher, cfg Config, logger *zap.Logger) *Handler {
	logger = logging.OrNop(logger)
	if publisher == nil {
		publisher = events.NewLog(logger)
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 2 * time.Minute
	}
	if cfg.ClaimWait <= 0 {
		cfg.ClaimWait = 5 * time.Second
	}
	if cfg.ClaimPoll <= 0 {
		cfg.ClaimPoll = 100 * time.Millisecond
	}
	return &Handler{
		store:     store,
		cart:      cart,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (h *Handler) Reconcile(ctx context.Context, session string, cb Callback) (Result, error) {
	if cb.PaymentID == "" {
		return Result{}, ErrMissingPaymentID
	}
	base := Result{PaymentID: cb.PaymentID, ConversationID: cb.ConversationID, Price: cb.Price}

	done, err := h.alreadyCreated(ctx, session, cb.PaymentID)
	if err != nil {
		return Result{}, err
	}
	if done {
		base.Status = StatusAlreadyCreated
		return base, nil
	}

	v, err, _ := h.flight.Do(session+"/"+cb.PaymentID, func() (interface{}, error) {
		return h.create(ctx, session, cb.PaymentID)
	})
	if err != nil {
		return Result{}, err
	}
	res := v.(Result)
	res.ConversationID = cb.ConversationID
	res.Price = cb.Price
	return res, nil
}

func (h *Handler) alreadyCreated(ctx context.Context, session, paymentID string) (bool, error) {
	_, err := h.store.Get(ctx, session, storage.OrderCreatedKey(paymentID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	}
	return false, fmt.Errorf("read order marker: %w", err)
}

func (h *Handler) create(ctx context.Context, session, paymentID string) (Result, error) {
	logger := h.logger.With(zap.String("session", session), zap.String("payment_id", paymentID))

	// Re-check inside the flight: a previous flight may have just finished.
	done, err := h.alreadyCreated(ctx, session, paymentID)
	if err != nil {
		return Result{}, err
	}
	if done {
		return Result{Status: StatusAlreadyCreated, PaymentID: paymentID}, nil
	}

	claimKey := storage.OrderClaimKey(paymentID)
	done, err = h.claim(ctx, logger, session, paymentID)
	if err != nil {
		return Result{}, err
	}
	if done {
		return Result{Status: StatusAlreadyCreated, PaymentID: paymentID}, nil
	}

	order, pending, err := h.placeOrder(ctx, session, paymentID)
	if err != nil {
		if derr := h.store.Delete(ctx, session, claimKey); derr != nil {
			logger.Warn("release claim", zap.Error(derr))
		}
		logger.Warn("order reconciliation failed", zap.Error(err))
		return Result{}, err
	}

	if err := h.store.Set(ctx, session, storage.OrderCreatedKey(paymentID), "true", 0); err != nil {
		// The order exists; the backend's idempotency key covers a retry.
		logger.Error("write order marker", zap.Error(err))
	}
	if err := h.cart.Clear(ctx, session); err != nil {
		logger.Warn("clear cart", zap.Error(err))
	}
	if err := h.store.Delete(ctx, session, storage.KeyPendingOrder, storage.KeySelectedAddressID, claimKey); err != nil {
		logger.Warn("remove checkout keys", zap.Error(err))
	}

	event := events.Event{
		Type:        events.OrderCreated,
		Session:     session,
		PaymentID:   paymentID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		AddressID:   pending.AddressID,
		Total:       order.TotalAmount,
		Items:       pricing.Group(pending.Cart),
		At:          h.now().UTC(),
	}
	if err := h.publisher.Publish(ctx, event); err != nil {
		logger.Warn("publish order created", zap.Error(err))
	}

	logger.Info("order created", zap.Int64("order_id", order.ID), zap.String("order_number", order.OrderNumber))
	return Result{Status: StatusCreated, PaymentID: paymentID, Order: &order}, nil
}

// claim takes the per-payment claim. When another request holds it, claim
// waits for the holder: a marker appearing resolves to done, a released
// claim is taken over.
func (h *Handler) claim(ctx context.Context, logger *zap.Logger, session, paymentID string) (bool, error) {
	claimKey := storage.OrderClaimKey(paymentID)
	deadline := time.NewTimer(h.cfg.ClaimWait)
	defer deadline.Stop()
	poll := time.NewTicker(h.cfg.ClaimPoll)
	defer poll.Stop()

	for waited := false; ; waited = true {
		won, err := h.store.SetNX(ctx, session, claimKey, h.now().UTC().Format(time.RFC3339Nano), h.cfg.ClaimTTL)
		if err != nil {
			return false, fmt.Errorf("claim payment: %w", err)
		}
		if won {
			if !waited {
				return false, nil
			}
			// The holder may have finished between our marker check and SetNX.
			done, err := h.alreadyCreated(ctx, session, paymentID)
			if err != nil || !done {
				return false, err
			}
			if err := h.store.Delete(ctx, session, claimKey); err != nil {
				logger.Warn("release claim", zap.Error(err))
			}
			return true, nil
		}
		if !waited {
			logger.Info("reconciliation claimed by another request, waiting")
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			logger.Warn("reconciliation claim still held", zap.Duration("waited", h.cfg.ClaimWait))
			return false, ErrInProgress
		case <-poll.C:
		}
		done, err := h.alreadyCreated(ctx, session, paymentID)
		if err != nil {
			return false, err
		}
		if done {
			logger.Info("order created by claim holder")
			return true, nil
		}
	}
}

func (h *Handler) placeOrder(ctx context.Context, session, paymentID string) (domain.Order, domain.PendingOrder, error) {
	pending, err := h.loadPending(ctx, session)
	if err != nil {
		return domain.Order{}, domain.PendingOrder{}, err
	}
	entries := pricing.Group(pending.Cart)
	if pending.AddressID == 0 || len(entries) == 0 {
		return domain.Order{}, pending, ErrPendingOrderIncomplete
	}
	lines := make([]domain.OrderLine, len(entries))
	for i, e := range entries {
		lines[i] = domain.OrderLine{ProductID: e.ProductID, Quantity: e.Quantity}
	}
	order, err := h.orders.CreateOrder(ctx, session, domain.OrderRequest{
		Items:             lines,
		ShippingAddressID: pending.AddressID,
		PaymentMethod:     "card",
		PaymentID:         paymentID,
	}, paymentID)
	if err != nil {
		return domain.Order{}, pending, err
	}
	return order, pending, nil
}

func (h *Handler) loadPending(ctx context.Context, session string) (domain.PendingOrder, error) {
	raw, err := h.store.Get(ctx, session, storage.KeyPendingOrder)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.PendingOrder{}, ErrPendingOrderMissing
	}
	if err != nil {
		return domain.PendingOrder{}, fmt.Errorf("read pending order: %w", err)
	}
	var p domain.PendingOrder
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		h.logger.Warn("unreadable pending order", zap.String("session", session), zap.Error(err))
		return domain.PendingOrder{}, ErrPendingOrderMissing
	}
	if h.cfg.PendingOrderTTL > 0 && p.Timestamp > 0 {
		created := time.UnixMilli(p.Timestamp)
		if h.now().Sub(created) > h.cfg.PendingOrderTTL {
			return domain.PendingOrder{}, ErrPendingOrderMissing
		}
	}
	return p, nil
}

// BackendOrders creates orders through the REST client with the session's token.
func BackendOrders(client *backend.Client, store storage.Store) OrderCreator {
	return backendOrders{client: client, store: store}
}

type backendOrders struct {
	client *backend.Client
	store  storage.Store
}

func (b backendOrders) CreateOrder(ctx context.Context, session string, in domain.OrderRequest, idempotencyKey string) (domain.Order, error) {
	return b.client.As(storage.Bind(b.store, session)).Orders().Create(ctx, in, idempotencyKey)
}
