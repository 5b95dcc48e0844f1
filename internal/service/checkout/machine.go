package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/backend"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/pricing"
	"storefront/internal/storage"
)

type Step string

const (
	StepAddress  Step = "address"
	StepPayment  Step = "payment"
	StepComplete Step = "complete"
)

type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
)

// CanTransitionTo reports whether the machine may move from s to next.
func (s Step) CanTransitionTo(next Step) bool {
	switch s {
	case StepAddress:
		return next == StepPayment
	case StepPayment:
		return next == StepAddress || next == StepComplete
	}
	return false
}

// Snapshot is a read-only view of a machine.
type Snapshot struct {
	Step              Step             `json:"step"`
	Addresses         []domain.Address `json:"addresses"`
	SelectedAddressID int64            `json:"selectedAddressId,omitempty"`
	PaymentMethod     PaymentMethod    `json:"paymentMethod"`
	Installment       int              `json:"installment"`
	Processing        bool             `json:"processing"`
	ThreeDSPending    bool             `json:"threeDSPending"`
	CardNumber        string           `json:"cardNumber,omitempty"`
}

// Machine drives one session through address, payment and complete.
// Operations on a machine are serialized.
type Machine struct {
	mu      sync.Mutex
	session string
	deps    *Deps

	step        Step
	addresses   []domain.Address
	addressID   int64
	email       string
	method      PaymentMethod
	card        CardInfo
	installment int
	processing  bool
	threeDS     []byte
	timers      []*time.Timer
}

func newMachine(session string, deps *Deps) *Machine {
	return &Machine{
		session:     session,
		deps:        deps,
		step:        StepAddress,
		method:      MethodCard,
		installment: 1,
	}
}

func (m *Machine) Session() string { return m.session }

// begin checks the entry conditions and loads the address book. A complete
// machine is returned as is so the confirmation stays visible.
func (m *Machine) begin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step == StepComplete {
		return nil
	}
	token, err := storage.Bind(m.deps.Store, m.session).Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrLoginRequired
	}
	items, err := m.deps.Cart.Items(ctx, m.session)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrEmptyCart
	}

	gw := m.gateway()
	user, err := gw.Profile(ctx)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	addresses, err := gw.Addresses(ctx)
	if err != nil {
		return fmt.Errorf("load addresses: %w", err)
	}
	m.email = user.Email
	m.addresses = addresses
	if !m.hasAddress(m.addressID) {
		m.addressID = 0
		for _, a := range addresses {
			if a.IsDefault {
				m.addressID = a.ID
				break
			}
		}
	}
	return nil
}

func (m *Machine) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Machine) snapshot() Snapshot {
	addrs := make([]domain.Address, len(m.addresses))
	copy(addrs, m.addresses)
	return Snapshot{
		Step:              m.step,
		Addresses:         addrs,
		SelectedAddressID: m.addressID,
		PaymentMethod:     m.method,
		Installment:       m.installment,
		Processing:        m.processing,
		ThreeDSPending:    m.threeDS != nil,
		CardNumber:        m.card.Number,
	}
}

// ThreeDS returns the pending 3-D-Secure document, or nil.
func (m *Machine) ThreeDS() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.threeDS == nil {
		return nil
	}
	return append([]byte(nil), m.threeDS...)
}

func (m *Machine) SelectAddress(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step == StepComplete {
		return &IllegalTransitionError{From: m.step, To: StepAddress}
	}
	if !m.hasAddress(id) {
		return invalid("unknown delivery address")
	}
	m.addressID = id
	return nil
}

func (m *Machine) SelectPaymentMethod(method PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processing {
		return ErrProcessing
	}
	switch method {
	case MethodCard, MethodTransfer:
		m.method = method
		return nil
	}
	return invalid("unknown payment method")
}

func (m *Machine) SetCard(card CardInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processing {
		return ErrProcessing
	}
	m.card = card.normalized()
	return nil
}

func (m *Machine) SelectInstallment(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 1 {
		return invalid("installment must be at least 1")
	}
	m.installment = n
	return nil
}

// Next advances the machine. Leaving address persists the selected address
// id; leaving payment either starts a card payment or schedules the transfer
// completion. The card provider is called without holding the machine lock,
// so State reports processing while initiation is in flight.
func (m *Machine) Next(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	attempt, err := m.advance(ctx)
	if err != nil || attempt == nil {
		defer m.mu.Unlock()
		return m.snapshot(), err
	}
	m.mu.Unlock()

	html, err := m.startCardPayment(ctx, *attempt)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.processing = false
		return m.snapshot(), err
	}
	m.threeDS = html
	return m.snapshot(), nil
}

// cardAttempt is the state a card payment reads, captured under mu.
type cardAttempt struct {
	addressID   int64
	email       string
	installment int
	card        CardInfo
}

// advance must be called with mu held. A non-nil attempt means a card
// payment was claimed and must be started by the caller.
func (m *Machine) advance(ctx context.Context) (*cardAttempt, error) {
	switch m.step {
	case StepAddress:
		if m.addressID == 0 {
			return nil, invalid("please select a delivery address")
		}
		err := m.deps.Store.Set(ctx, m.session, storage.KeySelectedAddressID, strconv.FormatInt(m.addressID, 10), 0)
		if err != nil {
			return nil, fmt.Errorf("persist address: %w", err)
		}
		m.step = StepPayment
		return nil, nil
	case StepPayment:
		if m.processing {
			return nil, ErrProcessing
		}
		if m.method == MethodTransfer {
			m.startTransfer()
			return nil, nil
		}
		if !m.card.complete() {
			return nil, invalid("please fill in all card details")
		}
		m.processing = true
		return &cardAttempt{
			addressID:   m.addressID,
			email:       m.email,
			installment: m.installment,
			card:        m.card,
		}, nil
	}
	return nil, &IllegalTransitionError{From: m.step, To: StepComplete}
}

func (m *Machine) Previous() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.step {
	case StepAddress:
		return m.snapshot(), ErrExitCheckout
	case StepPayment:
		if m.processing {
			return m.snapshot(), ErrProcessing
		}
		m.step = StepAddress
		return m.snapshot(), nil
	}
	return m.snapshot(), &IllegalTransitionError{From: m.step, To: StepPayment}
}

// Close3DS abandons the challenge window. The pending order stays so a
// late callback can still be reconciled.
func (m *Machine) Close3DS() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.threeDS != nil {
		m.threeDS = nil
		m.processing = false
	}
	return m.snapshot()
}

// Summary prices the live cart against a fresh catalog snapshot.
func (m *Machine) Summary(ctx context.Context) (pricing.Summary, error) {
	return m.summary(ctx)
}

// Installments returns the plans for the card's BIN. Fewer than six digits
// yields no plans and no backend call.
func (m *Machine) Installments(ctx context.Context, cardNumber string) ([]backend.InstallmentPrice, error) {
	d := digits(cardNumber)
	if len(d) < 6 {
		return nil, nil
	}
	s, err := m.summary(ctx)
	if err != nil {
		return nil, err
	}
	return m.gateway().Installments(ctx, backend.InstallmentRequest{
		Price:     s.Totals.Total.String(),
		BinNumber: d[:6],
	})
}

func (m *Machine) summary(ctx context.Context) (pricing.Summary, error) {
	items, err := m.deps.Cart.Items(ctx, m.session)
	if err != nil {
		return pricing.Summary{}, err
	}
	catalog, err := m.gateway().Catalog(ctx)
	if err != nil {
		return pricing.Summary{}, fmt.Errorf("load catalog: %w", err)
	}
	return pricing.Compute(items, catalog), nil
}

// startCardPayment runs without mu. It returns the provider's 3-D-Secure
// document.
func (m *Machine) startCardPayment(ctx context.Context, in cardAttempt) ([]byte, error) {
	logger := m.deps.Logger.With(zap.String("session", m.session))

	items, err := m.deps.Cart.Items(ctx, m.session)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	catalog, err := m.gateway().Catalog(ctx)
	if err != nil {
		logger.Warn("catalog unavailable for payment", zap.Error(err))
		return nil, ErrPaymentInitiation
	}
	total := pricing.Compute(items, catalog).Totals.Total

	// The pending order must be durable before the provider redirect.
	pending := domain.PendingOrder{
		Cart:      items,
		AddressID: in.addressID,
		Timestamp: m.deps.Now().UnixMilli(),
	}
	buf, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("encode pending order: %w", err)
	}
	if err := m.deps.Store.Set(ctx, m.session, storage.KeyPendingOrder, string(buf), m.deps.Config.PendingOrderTTL); err != nil {
		return nil, fmt.Errorf("persist pending order: %w", err)
	}

	payCtx, cancel := context.WithTimeout(ctx, m.deps.Config.PaymentTimeout)
	defer cancel()

	html, err := m.gateway().StartPayment(payCtx, backend.CheckoutRequest{
		Price:       total.String(),
		Email:       in.email,
		Installment: in.installment,
		CardInfo: backend.CardInfo{
			Number: in.card.Number,
			Name:   in.card.Name,
			Expiry: in.card.Expiry,
			CVV:    in.card.CVV,
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("payment initiation timed out", zap.Duration("timeout", m.deps.Config.PaymentTimeout))
		} else {
			logger.Warn("payment initiation failed", zap.Error(err))
		}
		return nil, ErrPaymentInitiation
	}
	if len(strings.TrimSpace(string(html))) == 0 {
		logger.Warn("payment initiation returned an empty document")
		return nil, ErrPaymentInitiation
	}
	logger.Info("3-D-Secure challenge issued", zap.String("total", total.String()), zap.Int("installment", in.installment))
	return html, nil
}

// startTransfer must be called with mu held. It completes the machine after
// TransferDelay and clears the cart TransferClearDelay later.
func (m *Machine) startTransfer() {
	m.processing = true
	cfg := m.deps.Config
	m.timers = append(m.timers, time.AfterFunc(cfg.TransferDelay, func() {
		m.completeTransfer()
		m.mu.Lock()
		defer m.mu.Unlock()
		m.timers = append(m.timers, time.AfterFunc(cfg.TransferClearDelay, m.clearAfterTransfer))
	}))
}

func (m *Machine) completeTransfer() {
	ctx := context.Background()

	m.mu.Lock()
	if m.step != StepPayment {
		m.mu.Unlock()
		return
	}
	m.step = StepComplete
	m.processing = false
	addressID := m.addressID
	m.mu.Unlock()

	event := events.Event{
		Type:      events.TransferCompleted,
		Session:   m.session,
		AddressID: addressID,
		At:        m.deps.Now().UTC(),
	}
	if s, err := m.summary(ctx); err == nil {
		event.Total = s.Totals.Total
		for _, l := range s.Lines {
			event.Items = append(event.Items, domain.CartEntry{ProductID: l.ProductID, Quantity: l.Quantity})
		}
	}
	if err := m.deps.Publisher.Publish(ctx, event); err != nil {
		m.deps.Logger.Warn("publish transfer completion", zap.String("session", m.session), zap.Error(err))
	}
}

func (m *Machine) clearAfterTransfer() {
	ctx := context.Background()
	if err := m.deps.Cart.Clear(ctx, m.session); err != nil {
		m.deps.Logger.Warn("clear cart after transfer", zap.String("session", m.session), zap.Error(err))
		return
	}
	if err := m.deps.Store.Delete(ctx, m.session, storage.KeySelectedAddressID); err != nil {
		m.deps.Logger.Warn("clear selected address", zap.String("session", m.session), zap.Error(err))
	}
}

func (m *Machine) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
}

func (m *Machine) gateway() Gateway {
	return m.deps.Gateway(m.session)
}

func (m *Machine) hasAddress(id int64) bool {
	if id == 0 {
		return false
	}
	for _, a := range m.addresses {
		if a.ID == id {
			return true
		}
	}
	return false
}
