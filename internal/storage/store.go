package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or has expired.
var ErrNotFound = errors.New("storage: key not found")

// Well-known keys. Everything a browser session keeps across page loads lives
// under one of these.
const (
	KeyToken             = "token"
	KeyCart              = "cart"
	KeyPendingOrder      = "pendingOrder"
	KeySelectedAddressID = "selectedAddressId"
)

// OrderCreatedKey is the durable marker written once an order exists for paymentID.
func OrderCreatedKey(paymentID string) string { return "order_created_" + paymentID }

// OrderClaimKey marks a reconciliation in flight for paymentID.
func OrderClaimKey(paymentID string) string { return "order_claim_" + paymentID }

// Store is durable, session-namespaced key/value storage. A ttl of zero means
// the value never expires. Plain Set is last-writer-wins.
type Store interface {
	Get(ctx context.Context, session, key string) (string, error)
	Set(ctx context.Context, session, key, value string, ttl time.Duration) error
	// SetNX writes only when the key is absent or expired and reports whether it wrote.
	SetNX(ctx context.Context, session, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, session string, keys ...string) error
	Ping(ctx context.Context) error
}

// Session binds a Store to one session id.
type Session struct {
	store Store
	id    string
}

func Bind(store Store, session string) Session {
	return Session{store: store, id: session}
}

func (s Session) ID() string { return s.id }

func (s Session) Get(ctx context.Context, key string) (string, error) {
	return s.store.Get(ctx, s.id, key)
}

func (s Session) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.store.Set(ctx, s.id, key, value, ttl)
}

func (s Session) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.store.SetNX(ctx, s.id, key, value, ttl)
}

func (s Session) Delete(ctx context.Context, keys ...string) error {
	return s.store.Delete(ctx, s.id, keys...)
}

// Token returns the session's bearer token, or "" when none is stored.
func (s Session) Token(ctx context.Context) (string, error) {
	v, err := s.Get(ctx, KeyToken)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
