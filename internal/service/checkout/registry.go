package checkout

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/storage"
)

type cartStore interface {
	Items(ctx context.Context, session string) ([]int64, error)
	Clear(ctx context.Context, session string) error
}

// Gateway is the slice of the backend a checkout needs, already bound to
// the session's bearer token.
type Gateway interface {
	Profile(ctx context.Context) (domain.User, error)
	Addresses(ctx context.Context) ([]domain.Address, error)
	Catalog(ctx context.Context) ([]domain.Product, error)
	StartPayment(ctx context.Context, in backend.CheckoutRequest) ([]byte, error)
	Installments(ctx context.Context, in backend.InstallmentRequest) ([]backend.InstallmentPrice, error)
}

type GatewayFactory func(session string) Gateway

type Config struct {
	TransferDelay      time.Duration
	TransferClearDelay time.Duration
	PaymentTimeout     time.Duration
	PendingOrderTTL    time.Duration
}

type Deps struct {
	Store     storage.Store
	Cart      cartStore
	Gateway   GatewayFactory
	Publisher events.Publisher
	Logger    *zap.Logger
	Config    Config
	Now       func() time.Time
}

// Registry owns one in-memory machine per session.
type Registry struct {
	mu       sync.Mutex
	machines map[string]*Machine
	deps     *Deps
}

func NewRegistry(deps Deps) *Registry {
	deps.Logger = logging.OrNop(deps.Logger)
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewLog(deps.Logger)
	}
	if deps.Config.PaymentTimeout <= 0 {
		deps.Config.PaymentTimeout = 30 * time.Second
	}
	if deps.Config.PendingOrderTTL <= 0 {
		deps.Config.PendingOrderTTL = time.Hour
	}
	return &Registry{machines: make(map[string]*Machine), deps: &deps}
}

// Begin returns the session's machine, creating it if needed, after checking
// the entry conditions. A machine that fails them is not kept.
func (r *Registry) Begin(ctx context.Context, session string) (*Machine, error) {
	r.mu.Lock()
	m, ok := r.machines[session]
	if !ok {
		m = newMachine(session, r.deps)
	}
	r.mu.Unlock()

	if err := m.begin(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.machines[session]; ok {
		return existing, nil
	}
	r.machines[session] = m
	return m, nil
}

func (r *Registry) Get(session string) (*Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[session]
	if !ok {
		return nil, ErrNoCheckout
	}
	return m, nil
}

// Drop discards the session's machine. Pending transfer timers of an
// unfinished checkout are cancelled; a completed one keeps its cart clear.
func (r *Registry) Drop(session string) {
	r.mu.Lock()
	m, ok := r.machines[session]
	delete(r.machines, session)
	r.mu.Unlock()
	if ok && m.State().Step != StepComplete {
		m.stop()
	}
}

// BackendGateway adapts the REST client, binding it to each session's token.
func BackendGateway(client *backend.Client, store storage.Store) GatewayFactory {
	return func(session string) Gateway {
		return backendGateway{c: client.As(storage.Bind(store, session))}
	}
}

type backendGateway struct {
	c *backend.Client
}

func (g backendGateway) Profile(ctx context.Context) (domain.User, error) {
	return g.c.Auth().Profile(ctx)
}

func (g backendGateway) Addresses(ctx context.Context) ([]domain.Address, error) {
	return g.c.Addresses().List(ctx)
}

func (g backendGateway) Catalog(ctx context.Context) ([]domain.Product, error) {
	return g.c.Products().All(ctx)
}

func (g backendGateway) StartPayment(ctx context.Context, in backend.CheckoutRequest) ([]byte, error) {
	return g.c.Payment().Checkout(ctx, in)
}

func (g backendGateway) Installments(ctx context.Context, in backend.InstallmentRequest) ([]backend.InstallmentPrice, error) {
	return g.c.Payment().Installments(ctx, in)
}
