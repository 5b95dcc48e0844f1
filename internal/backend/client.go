package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

// TokenSource yields the bearer token of the caller; "" means anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token, used by the importer and seed commands.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *zap.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Client talks to the storefront backend. A zero-token Client is anonymous;
// As binds it to a session's token.
type Client struct {
	baseURL string
	tr      *transport
	tokens  TokenSource
	logger  *zap.Logger
}

func New(opts Options) *Client {
	logger := logging.OrNop(opts.Logger)
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		tr:      newTransport(opts.Transport, opts.TracerProvider, opts.Timeout, logger),
		logger:  logger,
	}
}

// As returns a copy of c that authenticates with ts. The copy shares the
// underlying transport and circuit breaker.
func (c *Client) As(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

func (c *Client) Auth() AuthAPI                   { return AuthAPI{c} }
func (c *Client) Products() ProductsAPI           { return ProductsAPI{c} }
func (c *Client) Orders() OrdersAPI               { return OrdersAPI{c} }
func (c *Client) Addresses() AddressesAPI         { return AddressesAPI{c} }
func (c *Client) Reviews() ReviewsAPI             { return ReviewsAPI{c} }
func (c *Client) Users() UsersAPI                 { return UsersAPI{c} }
func (c *Client) Payment() PaymentAPI             { return PaymentAPI{c} }
func (c *Client) PasswordReset() PasswordResetAPI { return PasswordResetAPI{c} }

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	header http.Header
}

func (c *Client) send(ctx context.Context, r request) (*rawResponse, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var payload *bytes.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		payload = bytes.NewReader(buf)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	raw, err := c.tr.roundTrip(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", r.method), zap.String("path", r.path), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	c.logger.Debug("backend request",
		zap.String("method", r.method), zap.String("path", r.path),
		zap.Int("status", raw.status), zap.Duration("took", time.Since(start)))
	return raw, nil
}

// call performs r and decodes the envelope's data into T.
func call[T any](ctx context.Context, c *Client, r request) (T, error) {
	var zero T
	raw, err := c.send(ctx, r)
	if err != nil {
		return zero, err
	}
	env, err := parseEnvelope(raw)
	if err != nil {
		return zero, err
	}
	var out T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return zero, fmt.Errorf("%w: %s %s: missing data", ErrUnexpectedShape, r.method, r.path)
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, fmt.Errorf("%w: %s %s: %v", ErrUnexpectedShape, r.method, r.path, err)
	}
	return out, nil
}

// exec performs r and checks the envelope, discarding data.
func exec(ctx context.Context, c *Client, r request) error {
	raw, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	_, err = parseEnvelope(raw)
	return err
}

func parseEnvelope(raw *rawResponse) (envelope, error) {
	var env envelope
	decodeErr := json.Unmarshal(raw.body, &env)

	if raw.status < 200 || raw.status > 299 {
		msg := ""
		if decodeErr == nil {
			msg = env.Message
		}
		return envelope{}, newAPIError(raw.status, msg)
	}
	if decodeErr != nil || env.Success == nil {
		return envelope{}, ErrUnexpectedShape
	}
	if !*env.Success {
		return envelope{}, newAPIError(raw.status, env.Message)
	}
	return env, nil
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
