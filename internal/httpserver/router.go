package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/service/account"
	"storefront/internal/service/checkout"
	"storefront/internal/service/reconcile"
	"storefront/internal/storage"
)

type cartService interface {
	Items(ctx context.Context, session string) ([]int64, error)
	Add(ctx context.Context, session string, id int64) ([]int64, error)
	Remove(ctx context.Context, session string, id int64) ([]int64, error)
	UpdateQuantity(ctx context.Context, session string, id int64, n int) ([]int64, error)
	Clear(ctx context.Context, session string) error
}

type checkoutRegistry interface {
	Begin(ctx context.Context, session string) (*checkout.Machine, error)
	Get(session string) (*checkout.Machine, error)
	Drop(session string)
}

type reconciler interface {
	Reconcile(ctx context.Context, session string, cb reconcile.Callback) (reconcile.Result, error)
}

type accountService interface {
	Register(ctx context.Context, session string, in account.RegisterInput) (domain.User, error)
	Login(ctx context.Context, session, email, password string) (domain.Profile, error)
	Logout(ctx context.Context, session string) error
	Profile(ctx context.Context, session string) (domain.Profile, error)
	UpdateProfile(ctx context.Context, session string, in backend.ProfileUpdate) (domain.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ValidateResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
}

type addressService interface {
	List(ctx context.Context, session string) ([]domain.Address, error)
	Create(ctx context.Context, session string, in domain.AddressInput) (domain.Address, error)
	Update(ctx context.Context, session string, id int64, in domain.AddressInput) (domain.Address, error)
	SetDefault(ctx context.Context, session string, id int64) (domain.Address, error)
	Delete(ctx context.Context, session string, id int64) error
}

// Deps groups the services the router dispatches to. Backend and Store
// serve the catalog, review and admin passthrough routes.
type Deps struct {
	Cart      cartService
	Checkout  checkoutRegistry
	Reconcile reconciler
	Account   accountService
	Addresses addressService
	Backend   *backend.Client
	Store     storage.Store

	CORSOrigins       []string
	SecureCookies     bool
	PaymentRatePerMin int
}

func (d Deps) validate() error {
	switch {
	case d.Cart == nil:
		return errors.New("cart service required")
	case d.Checkout == nil:
		return errors.New("checkout registry required")
	case d.Reconcile == nil:
		return errors.New("reconcile handler required")
	case d.Account == nil:
		return errors.New("account service required")
	case d.Addresses == nil:
		return errors.New("address service required")
	case d.Backend == nil:
		return errors.New("backend client required")
	case d.Store == nil:
		return errors.New("storage required")
	}
	return nil
}

type handlers struct {
	Deps
	logger  *zap.Logger
	limiter *sessionLimiter
}

// backendFor returns the REST client acting with the session's token.
func (h *handlers) backendFor(c *gin.Context) *backend.Client {
	return h.Backend.As(storage.Bind(h.Store, sessionID(c)))
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	logger = logging.OrNop(logger)
	if err := deps.validate(); err != nil {
		return nil, err
	}
	h := &handlers{Deps: deps, logger: logger, limiter: newSessionLimiter(deps.PaymentRatePerMin)}

	router := gin.New()
	router.Use(requestLogger(logger), recovery(logger))
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", sessionHeader},
			ExposeHeaders:    []string{sessionHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Store))

	router.Use(sessionMiddleware(deps.SecureCookies))

	api := router.Group("/api")

	cart := api.Group("/cart")
	cart.GET("", h.getCart)
	cart.GET("/summary", h.cartSummary)
	cart.POST("/items", h.addCartItem)
	cart.PUT("/items/:id", h.updateCartItem)
	cart.DELETE("/items/:id", h.removeCartItem)
	cart.DELETE("", h.clearCart)

	co := api.Group("/checkout")
	co.POST("", h.beginCheckout)
	co.GET("", h.checkoutState)
	co.DELETE("", h.dropCheckout)
	co.PUT("/address", h.selectAddress)
	co.PUT("/payment-method", h.selectPaymentMethod)
	co.PUT("/card", h.setCard)
	co.PUT("/installment", h.selectInstallment)
	co.POST("/next", h.checkoutNext)
	co.POST("/previous", h.checkoutPrevious)
	co.GET("/3ds", h.threeDS)
	co.DELETE("/3ds", h.close3DS)
	co.GET("/summary", h.checkoutSummary)
	co.GET("/installments", h.installments)

	router.GET("/payment/success", h.paymentSuccess)
	router.GET("/payment/failure", h.paymentFailure)

	acct := api.Group("/account")
	acct.POST("/register", h.register)
	acct.POST("/login", h.login)
	acct.POST("/logout", h.logout)
	acct.GET("/profile", h.profile)
	acct.PUT("/profile", h.updateProfile)
	acct.POST("/password-reset/request", h.requestPasswordReset)
	acct.POST("/password-reset/validate", h.validateResetToken)
	acct.POST("/password-reset/reset", h.resetPassword)
	acct.GET("/addresses", h.listAddresses)
	acct.POST("/addresses", h.createAddress)
	acct.PUT("/addresses/:id", h.updateAddress)
	acct.PUT("/addresses/:id/default", h.setDefaultAddress)
	acct.DELETE("/addresses/:id", h.deleteAddress)

	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)
	api.GET("/products/:id/reviews", h.productReviews)
	api.GET("/categories", h.categories)
	api.POST("/reviews", h.createReview)
	api.PUT("/reviews/:id", h.updateReview)
	api.DELETE("/reviews/:id", h.deleteReview)

	admin := api.Group("/admin")
	admin.POST("/products", h.adminCreateProduct)
	admin.PUT("/products/:id", h.adminUpdateProduct)
	admin.DELETE("/products/:id", h.adminDeleteProduct)
	admin.GET("/orders", h.adminListOrders)
	admin.GET("/orders/stats", h.adminOrderStats)
	admin.GET("/orders/:id", h.adminGetOrder)
	admin.PUT("/orders/:id/status", h.adminUpdateOrderStatus)
	admin.GET("/users", h.adminListUsers)
	admin.GET("/users/stats", h.adminUserStats)
	admin.GET("/users/:id", h.adminGetUser)
	admin.PUT("/users/:id/admin", h.adminToggleAdmin)
	admin.DELETE("/users/:id", h.adminDeleteUser)

	return router, nil
}
