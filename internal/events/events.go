package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type Type string

const (
	OrderCreated      Type = "order.created"
	TransferCompleted Type = "checkout.transfer_completed"
)

// Event is published after a checkout produces an order. Delivery is best
// effort; publishers never fail the flow that emitted the event.
type Event struct {
	Type        Type               `json:"type"`
	Session     string             `json:"session"`
	PaymentID   string             `json:"paymentId,omitempty"`
	OrderID     int64              `json:"orderId,omitempty"`
	OrderNumber string             `json:"orderNumber,omitempty"`
	AddressID   int64              `json:"addressId,omitempty"`
	Total       decimal.Decimal    `json:"total"`
	Items       []domain.CartEntry `json:"items,omitempty"`
	At          time.Time          `json:"at"`
}

// Key is the partition key: events of one payment (or session) stay ordered.
func (e Event) Key() string {
	if e.PaymentID != "" {
		return e.PaymentID
	}
	return e.Session
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
