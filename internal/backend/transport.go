package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxBody caps how much of a response is buffered; 3-D-Secure pages are small.
const maxBody = 4 << 20

var errUpstream = errors.New("upstream 5xx")

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

// transport performs one HTTP exchange behind a circuit breaker. Transport
// errors and 5xx responses count against the breaker, 4xx do not.
type transport struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*rawResponse]
	logger  *zap.Logger
}

func newTransport(base http.RoundTripper, tp trace.TracerProvider, timeout time.Duration, logger *zap.Logger) *transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	t := &transport{
		http: &http.Client{
			Transport: otelhttp.NewTransport(base,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithPropagators(propagation.TraceContext{}),
			),
			Timeout:   timeout,
		},
		logger: logger,
	}
	t.breaker = gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return t
}

func (t *transport) roundTrip(req *http.Request) (*rawResponse, error) {
	raw, err := t.breaker.Execute(func() (*rawResponse, error) {
		resp, err := t.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		raw := &rawResponse{status: resp.StatusCode, header: resp.Header, body: bytes.TrimSpace(body)}
		if resp.StatusCode >= http.StatusInternalServerError {
			return raw, errUpstream
		}
		return raw, nil
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrUnavailable
	case errors.Is(err, errUpstream):
		return raw, nil
	case err != nil:
		return nil, err
	}
	return raw, nil
}
