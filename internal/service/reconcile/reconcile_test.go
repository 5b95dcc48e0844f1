package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/storage"
)

const sess = "sess-1"

type fakeOrders struct {
	calls   int32
	last    domain.OrderRequest
	lastKey string
	err     error
	delay   time.Duration
	mu      sync.Mutex
}

func (f *fakeOrders) CreateOrder(_ context.Context, _ string, in domain.OrderRequest, key string) (domain.Order, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.last, f.lastKey = in, key
	f.mu.Unlock()
	if f.err != nil {
		return domain.Order{}, f.err
	}
	return domain.Order{ID: 42, OrderNumber: "ORD-42", Status: domain.OrderPending, TotalAmount: decimal.NewFromInt(684)}, nil
}

type fakeCart struct {
	clears int32
}

func (f *fakeCart) Clear(context.Context, string) error {
	atomic.AddInt32(&f.clears, 1)
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type fixture struct {
	store  *storage.Memory
	orders *fakeOrders
	cart   *fakeCart
	pub    *capturePublisher
	h      *Handler
}

func newFixture() *fixture {
	f := &fixture{
		store:  storage.NewMemory(),
		orders: &fakeOrders{},
		cart:   &fakeCart{},
		pub:    &capturePublisher{},
	}
	f.h = New(f.store, f.cart, f.orders, f.pub, Config{PendingOrderTTL: time.Hour}, nil)
	return f
}

func (f *fixture) pending(t *testing.T, p domain.PendingOrder) {
	t.Helper()
	buf, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), sess, storage.KeyPendingOrder, string(buf), 0))
	require.NoError(t, f.store.Set(context.Background(), sess, storage.KeySelectedAddressID, "3", 0))
}

func validPending() domain.PendingOrder {
	return domain.PendingOrder{Cart: []int64{1, 1, 2}, AddressID: 3, Timestamp: time.Now().UnixMilli()}
}

func TestReconcile_CreatesOrder(t *testing.T) {
	f := newFixture()
	f.pending(t, validPending())
	ctx := context.Background()

	res, err := f.h.Reconcile(ctx, sess, Callback{PaymentID: "pay-1", ConversationID: "conv-1", Price: "684"})
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
	require.NotNil(t, res.Order)
	assert.Equal(t, "ORD-42", res.Order.OrderNumber)
	assert.Equal(t, "conv-1", res.ConversationID)

	assert.Equal(t, "pay-1", f.orders.lastKey)
	assert.Equal(t, domain.OrderRequest{
		Items:             []domain.OrderLine{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}},
		ShippingAddressID: 3,
		PaymentMethod:     "card",
		PaymentID:         "pay-1",
	}, f.orders.last)

	marker, err := f.store.Get(ctx, sess, storage.OrderCreatedKey("pay-1"))
	require.NoError(t, err)
	assert.Equal(t, "true", marker)
	for _, k := range []string{storage.KeyPendingOrder, storage.KeySelectedAddressID, storage.OrderClaimKey("pay-1")} {
		_, err := f.store.Get(ctx, sess, k)
		assert.ErrorIs(t, err, storage.ErrNotFound, k)
	}
	assert.Equal(t, int32(1), f.cart.clears)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, events.OrderCreated, f.pub.events[0].Type)
	assert.Equal(t, "ORD-42", f.pub.events[0].OrderNumber)
}

func TestReconcile_TwiceCreatesOnce(t *testing.T) {
	f := newFixture()
	f.pending(t, validPending())
	ctx := context.Background()

	first, err := f.h.Reconcile(ctx, sess, Callback{PaymentID: "pay-1"})
	require.NoError(t, err)
	second, err := f.h.Reconcile(ctx, sess, Callback{PaymentID: "pay-1"})
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, first.Status)
	assert.Equal(t, StatusAlreadyCreated, second.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.orders.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.cart.clears))
}

func TestReconcile_ConcurrentInvocationsCreateOnce(t *testing.T) {
	f := newFixture()
	f.orders.delay = 20 * time.Millisecond
	f.pending(t, validPending())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	results := make([]Result, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.h.Reconcile(context.Background(), sess, Callback{PaymentID: "pay-1"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err)
		assert.Contains(t, []Status{StatusCreated, StatusAlreadyCreated}, results[i].Status)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.orders.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.cart.clears))
}

func (f *fixture) withClaimWait(wait time.Duration) {
	f.h = New(f.store, f.cart, f.orders, f.pub, Config{
		PendingOrderTTL: time.Hour,
		ClaimWait:       wait,
		ClaimPoll:       5 * time.Millisecond,
	}, nil)
}

func (f *fixture) holdClaim(t *testing.T, paymentID string) {
	t.Helper()
	ok, err := f.store.SetNX(context.Background(), sess, storage.OrderClaimKey(paymentID), "other-tab", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReconcile_ClaimHeldElsewhere(t *testing.T) {
	f := newFixture()
	f.withClaimWait(30 * time.Millisecond)
	f.pending(t, validPending())
	f.holdClaim(t, "pay-1")

	_, err := f.h.Reconcile(context.Background(), sess, Callback{PaymentID: "pay-1"})
	assert.ErrorIs(t, err, ErrInProgress)
	assert.Zero(t, atomic.LoadInt32(&f.orders.calls))
}

func TestReconcile_ClaimHolderFinishesResolvesToSuccess(t *testing.T) {
	f := newFixture()
	f.withClaimWait(2 * time.Second)
	f.pending(t, validPending())
	f.holdClaim(t, "pay-1")
	ctx := context.Background()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = f.store.Set(ctx, sess, storage.OrderCreatedKey("pay-1"), "true", 0)
		_ = f.store.Delete(ctx, sess, storage.OrderClaimKey("pay-1"))
	}()

	res, err := f.h.Reconcile(ctx, sess, Callback{PaymentID: "pay-1", Price: "684"})
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyCreated, res.Status)
	assert.Equal(t, "684", res.Price)
	assert.Zero(t, atomic.LoadInt32(&f.orders.calls))
}

func TestReconcile_ReleasedClaimIsTakenOver(t *testing.T) {
	f := newFixture()
	f.withClaimWait(2 * time.Second)
	f.pending(t, validPending())
	f.holdClaim(t, "pay-1")
	ctx := context.Background()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = f.store.Delete(ctx, sess, storage.OrderClaimKey("pay-1"))
	}()

	res, err := f.h.Reconcile(ctx, sess, Callback{PaymentID: "pay-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.orders.calls))
}

func TestReconcile_MissingPendingOrder(t *testing.T) {
	f := newFixture()

	_, err := f.h.Reconcile(context.Background(), sess, Callback{PaymentID: "pay-1"})
	assert.ErrorIs(t, err, ErrPendingOrderMissing)
	assert.Zero(t, atomic.LoadInt32(&f.orders.calls))
	assert.Zero(t, atomic.LoadInt32(&f.cart.clears))

	// the claim is released so a later attempt can proceed
	_, err = f.store.Get(context.Background(), sess, storage.OrderClaimKey("pay-1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReconcile_ExpiredPendingOrder(t *testing.T) {
	f := newFixture()
	p := validPending()
	p.Timestamp = time.Now().Add(-2 * time.Hour).UnixMilli()
	f.pending(t, p)

	_, err := f.h.Reconcile(context.Background(), sess, Callback{PaymentID: "pay-1"})
	assert.ErrorIs(t, err, ErrPendingOrderMissing)
	assert.Zero(t, atomic.LoadInt32(&f.orders.calls))
}

func TestReconcile_IncompletePendingOrder(t *testing.T) {
	cases := map[string]domain.PendingOrder{
		"no address": {Cart: []int64{1}, Timestamp: time.Now().UnixMilli()},
		"no items":   {AddressID: 3, Timestamp: time.Now().UnixMilli()},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.pending(t, p)
			_, err := f.h.Reconcile(context.Background(), sess, Callback{PaymentID: "pay-1"})
			assert.ErrorIs(t, err, ErrPendingOrderIncomplete)
			assert.Zero(t, atomic.LoadInt32(&f.orders.calls))
		})
	}
}

func TestReconcile_BackendFailureAllowsRetry(t *testing.T) {
	f := newFixture()
	f.orders.err = &backend.APIError{Status: http.StatusBadRequest, Message: "Stok yetersiz"}
	f.pending(t, validPending())
	ctx := context.Background()

	_, err := f.h.Reconcile(ctx, sess, Callback{PaymentID: "pay-1"})
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Stok yetersiz", apiErr.Message)

	_, err = f.store.Get(ctx, sess, storage.OrderCreatedKey("pay-1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.store.Get(ctx, sess, storage.KeyPendingOrder)
	assert.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&f.cart.clears))

	f.orders.err = nil
	res, err := f.h.Reconcile(ctx, sess, Callback{PaymentID: "pay-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.orders.calls))
}

func TestReconcile_MissingPaymentID(t *testing.T) {
	f := newFixture()
	_, err := f.h.Reconcile(context.Background(), sess, Callback{})
	assert.ErrorIs(t, err, ErrMissingPaymentID)
}

func TestReconcile_MarkerIsPerSession(t *testing.T) {
	f := newFixture()
	f.pending(t, validPending())
	_, err := f.h.Reconcile(context.Background(), sess, Callback{PaymentID: "pay-1"})
	require.NoError(t, err)

	_, err = f.h.Reconcile(context.Background(), "other", Callback{PaymentID: "pay-1"})
	assert.True(t, errors.Is(err, ErrPendingOrderMissing))
}

func TestFailure(t *testing.T) {
	assert.Equal(t, "unknown error", Failure("").Message)
	assert.Equal(t, "3DS failed", Failure("3DS failed").Message)
}
