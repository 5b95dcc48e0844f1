package events

import (
	"context"

	"go.uber.org/zap"

	"storefront/internal/logging"
)

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logging.OrNop(logger)}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.logger.Info("event",
		zap.String("type", string(e.Type)),
		zap.String("session", e.Session),
		zap.String("payment_id", e.PaymentID),
		zap.String("order_number", e.OrderNumber),
		zap.String("total", e.Total.String()),
		zap.Int("lines", len(e.Items)))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
