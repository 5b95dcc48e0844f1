package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/backend"
	"storefront/internal/service/account"
	"storefront/internal/service/address"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	"storefront/internal/service/reconcile"
	"storefront/internal/storage"
)

// fakeBackend answers the handful of endpoints the storefront flows touch.
type fakeBackend struct {
	ordersCreated  atomic.Int32
	idempotencyKey atomic.Value
	lastStatus     atomic.Value
}

func (f *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	authed := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			reply(w, http.StatusUnauthorized, `{"success":false,"message":"Yetkisiz"}`)
			return false
		}
		return true
	}
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"success":true,"data":{"token":"tok-1","user":{"id":1,"name":"Ayşe","email":"ayse@example.com"}}}`)
	})
	mux.HandleFunc("GET /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if authed(w, r) {
			reply(w, http.StatusOK, `{"success":true,"data":{"id":1,"name":"Ayşe","email":"ayse@example.com"}}`)
		}
	})
	mux.HandleFunc("GET /api/addresses", func(w http.ResponseWriter, r *http.Request) {
		if authed(w, r) {
			reply(w, http.StatusOK, `{"success":true,"data":[{"id":5,"name":"Ev","is_default":true},{"id":6,"name":"İş"}]}`)
		}
	})
	mux.HandleFunc("GET /api/orders/my-orders", func(w http.ResponseWriter, r *http.Request) {
		if authed(w, r) {
			reply(w, http.StatusOK, `{"success":true,"data":[]}`)
		}
	})
	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"success":true,"data":[
			{"id":1,"name":"Yangın Söndürücü 6kg","category":"Söndürücü","price":"300"},
			{"id":2,"name":"Duman Dedektörü","category":"Dedektör","price":"100"}]}`)
	})
	mux.HandleFunc("GET /api/products/categories", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"success":true,"data":["Söndürücü","Dedektör"]}`)
	})
	mux.HandleFunc("POST /api/payment/checkout", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body>3ds</body></html>")
	})
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		f.idempotencyKey.Store(r.Header.Get("Idempotency-Key"))
		n := f.ordersCreated.Add(1)
		reply(w, http.StatusCreated, fmt.Sprintf(`{"success":true,"data":{"id":%d,"order_number":"ORD-%d","status":"pending","total_amount":"826"}}`, n, n))
	})
	mux.HandleFunc("GET /api/orders/all", func(w http.ResponseWriter, r *http.Request) {
		f.lastStatus.Store(r.URL.Query().Get("status"))
		reply(w, http.StatusOK, `{"success":true,"data":[]}`)
	})
	return mux
}

type testEnv struct {
	router  *gin.Engine
	backend *fakeBackend
	store   *storage.Memory
	session string
}

func newTestEnv(t *testing.T, rate int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb.handler(t))
	t.Cleanup(srv.Close)

	store := storage.NewMemory()
	client := backend.New(backend.Options{BaseURL: srv.URL})
	cart := cartsvc.New(store, nil)
	registry := checkout.NewRegistry(checkout.Deps{
		Store:   store,
		Cart:    cart,
		Gateway: checkout.BackendGateway(client, store),
		Config: checkout.Config{
			PaymentTimeout:  time.Second,
			PendingOrderTTL: time.Hour,
		},
	})
	rec := reconcile.New(store, cart, reconcile.BackendOrders(client, store), nil, reconcile.Config{PendingOrderTTL: time.Hour}, nil)

	router, err := buildRouter(nil, Deps{
		Cart:              cart,
		Checkout:          registry,
		Reconcile:         rec,
		Account:           account.New(client, store, nil),
		Addresses:         address.New(client, store, nil),
		Backend:           client,
		Store:             store,
		PaymentRatePerMin: rate,
	})
	require.NoError(t, err)
	return &testEnv{router: router, backend: fb, store: store, session: uuid.NewString()}
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sessionHeader, e.session)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out response
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	rec, _ := e.do(t, http.MethodPost, "/api/account/login", loginRequest{Email: "ayse@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestBuildRouter_RequiresDeps(t *testing.T) {
	_, err := buildRouter(nil, Deps{})
	require.Error(t, err)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, 10)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestSessionMiddleware_IssuesAndReuses(t *testing.T) {
	env := newTestEnv(t, 10)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	issued := rec.Header().Get(sessionHeader)
	_, err := uuid.Parse(issued)
	require.NoError(t, err)
	require.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, sessionCookie, rec.Result().Cookies()[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: issued})
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, issued, rec.Header().Get(sessionHeader))
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionMiddleware_ReplacesGarbage(t *testing.T) {
	env := newTestEnv(t, 10)
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(sessionHeader, "../../etc")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.NotEqual(t, "../../etc", rec.Header().Get(sessionHeader))
}

func TestCartRoutes(t *testing.T) {
	env := newTestEnv(t, 10)

	for _, id := range []int64{1, 1, 2} {
		rec, _ := env.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: id})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	_, res := env.do(t, http.MethodGet, "/api/cart", nil)
	var view cartView
	require.NoError(t, json.Unmarshal(res.Data, &view))
	assert.Equal(t, []int64{1, 1, 2}, view.Items)
	assert.Equal(t, 3, view.Count)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, 2, view.Entries[0].Quantity)

	_, res = env.do(t, http.MethodGet, "/api/cart/summary", nil)
	var summary struct {
		Totals struct {
			Subtotal string `json:"subtotal"`
			Shipping string `json:"shipping"`
			Tax      string `json:"tax"`
			Total    string `json:"total"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &summary))
	assert.Equal(t, "700", summary.Totals.Subtotal)
	assert.Equal(t, "0", summary.Totals.Shipping)
	assert.Equal(t, "126", summary.Totals.Tax)
	assert.Equal(t, "826", summary.Totals.Total)

	qty := 3
	rec, res := env.do(t, http.MethodPut, "/api/cart/items/2", updateCartItemRequest{Quantity: &qty})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(res.Data, &view))
	assert.Equal(t, 5, view.Count)

	_, res = env.do(t, http.MethodDelete, "/api/cart/items/1", nil)
	require.NoError(t, json.Unmarshal(res.Data, &view))
	assert.Equal(t, []int64{2, 2, 2}, view.Items)

	_, res = env.do(t, http.MethodDelete, "/api/cart", nil)
	require.NoError(t, json.Unmarshal(res.Data, &view))
	assert.Empty(t, view.Items)
}

func TestCartRoutes_BadInput(t *testing.T) {
	env := newTestEnv(t, 10)
	rec, res := env.do(t, http.MethodDelete, "/api/cart/items/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, res.Success)

	rec, _ = env.do(t, http.MethodPost, "/api/cart/items", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_RequiresLogin(t *testing.T) {
	env := newTestEnv(t, 10)
	env.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: 1})

	rec, res := env.do(t, http.MethodPost, "/api/checkout", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, checkout.ErrLoginRequired.Error(), res.Message)
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t, 10)
	env.login(t)
	rec, _ := env.do(t, http.MethodPost, "/api/checkout", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckout_NoMachine(t *testing.T) {
	env := newTestEnv(t, 10)
	rec, _ := env.do(t, http.MethodGet, "/api/checkout", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_CardFlowThenReconcile(t *testing.T) {
	env := newTestEnv(t, 10)
	env.login(t)
	for _, id := range []int64{1, 1, 2} {
		env.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: id})
	}

	rec, res := env.do(t, http.MethodPost, "/api/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var snap checkout.Snapshot
	require.NoError(t, json.Unmarshal(res.Data, &snap))
	assert.Equal(t, checkout.StepAddress, snap.Step)
	assert.Equal(t, int64(5), snap.SelectedAddressID)

	rec, _ = env.do(t, http.MethodPut, "/api/checkout/address", selectAddressRequest{AddressID: 99})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, res = env.do(t, http.MethodPost, "/api/checkout/next", nil)
	require.NoError(t, json.Unmarshal(res.Data, &snap))
	assert.Equal(t, checkout.StepPayment, snap.Step)

	rec, res = env.do(t, http.MethodPost, "/api/checkout/next", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "please fill in all card details", res.Message)

	rec, res = env.do(t, http.MethodPut, "/api/checkout/card", cardRequest{
		CardNumber: "5528790000000008", CardName: "AYSE YILMAZ", Expiry: "1230", CVV: "1234",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var card cardRequest
	require.NoError(t, json.Unmarshal(res.Data, &card))
	assert.Equal(t, "5528 7900 0000 0008", card.CardNumber)
	assert.Equal(t, "12/30", card.Expiry)
	assert.Equal(t, "123", card.CVV)

	_, res = env.do(t, http.MethodPost, "/api/checkout/next", nil)
	require.NoError(t, json.Unmarshal(res.Data, &snap))
	assert.True(t, snap.ThreeDSPending)
	assert.True(t, snap.Processing)

	rec, _ = env.do(t, http.MethodGet, "/api/checkout/3ds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "3ds")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec, res = env.do(t, http.MethodGet, "/payment/success?paymentId=pay-1&conversationId=c-1&price=826", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result reconcile.Result
	require.NoError(t, json.Unmarshal(res.Data, &result))
	assert.Equal(t, reconcile.StatusCreated, result.Status)
	assert.Equal(t, "pay-1", env.backend.idempotencyKey.Load())

	rec, res = env.do(t, http.MethodGet, "/payment/success?paymentId=pay-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(res.Data, &result))
	assert.Equal(t, reconcile.StatusAlreadyCreated, result.Status)
	assert.Equal(t, int32(1), env.backend.ordersCreated.Load())

	_, res = env.do(t, http.MethodGet, "/api/cart", nil)
	var view cartView
	require.NoError(t, json.Unmarshal(res.Data, &view))
	assert.Empty(t, view.Items)
}

func TestPaymentSuccess_WithoutPendingOrder(t *testing.T) {
	env := newTestEnv(t, 10)
	env.login(t)
	rec, res := env.do(t, http.MethodGet, "/payment/success?paymentId=pay-9", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, reconcile.ErrPendingOrderMissing.Error(), res.Message)
	assert.Equal(t, int32(0), env.backend.ordersCreated.Load())

	rec, _ = env.do(t, http.MethodGet, "/payment/success", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentFailure_DefaultsMessage(t *testing.T) {
	env := newTestEnv(t, 10)
	_, res := env.do(t, http.MethodGet, "/payment/failure", nil)
	var page reconcile.FailurePage
	require.NoError(t, json.Unmarshal(res.Data, &page))
	assert.Equal(t, "unknown error", page.Message)

	_, res = env.do(t, http.MethodGet, "/payment/failure?error=Kart+reddedildi", nil)
	require.NoError(t, json.Unmarshal(res.Data, &page))
	assert.Equal(t, "Kart reddedildi", page.Message)
}

func TestCheckout_PaymentIsRateLimited(t *testing.T) {
	env := newTestEnv(t, 1)
	env.login(t)
	env.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: 1})
	env.do(t, http.MethodPost, "/api/checkout", nil)
	env.do(t, http.MethodPost, "/api/checkout/next", nil)
	env.do(t, http.MethodPut, "/api/checkout/card", cardRequest{CardNumber: "4111111111111111", CardName: "A", Expiry: "1230", CVV: "123"})

	rec, _ := env.do(t, http.MethodPost, "/api/checkout/next", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = env.do(t, http.MethodPost, "/api/checkout/next", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCheckout_PreviousFromAddressExits(t *testing.T) {
	env := newTestEnv(t, 10)
	env.login(t)
	env.do(t, http.MethodPost, "/api/cart/items", addCartItemRequest{ProductID: 1})
	env.do(t, http.MethodPost, "/api/checkout", nil)

	rec, res := env.do(t, http.MethodPost, "/api/checkout/previous", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out previousResponse
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.True(t, out.Exit)

	rec, _ = env.do(t, http.MethodGet, "/api/checkout", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfile_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, 10)
	rec, res := env.do(t, http.MethodGet, "/api/account/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, res.Success)
}

func TestCategoriesPassthrough(t *testing.T) {
	env := newTestEnv(t, 10)
	rec, res := env.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []string
	require.NoError(t, json.Unmarshal(res.Data, &cats))
	assert.Equal(t, []string{"Söndürücü", "Dedektör"}, cats)
}

func TestAdminOrders_StatusFilter(t *testing.T) {
	env := newTestEnv(t, 10)
	rec, _ := env.do(t, http.MethodGet, "/api/admin/orders?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/admin/orders?status=shipped", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipped", env.backend.lastStatus.Load())
}

func TestBackendErrorMapping(t *testing.T) {
	env := newTestEnv(t, 10)
	// Reviews are not served by the fake backend; its mux answers 404 in plain text.
	rec, res := env.do(t, http.MethodGet, "/api/products/1/reviews", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "API request failed", res.Message)
}
