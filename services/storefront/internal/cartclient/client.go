// Package cartclient translates cart intents into calls against the cart REST
// API. It never patches cart state itself: mutations return only an error and
// callers fetch the whole cart afterwards.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/httpclient"
	"github.com/utafrali/giftcart/pkg/logger"
	"github.com/utafrali/giftcart/pkg/middleware"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/pkg/tracing"
	"github.com/utafrali/giftcart/services/storefront/internal/domain"
	"github.com/utafrali/giftcart/services/storefront/internal/session"
)

const serviceName = "cart api"

// maxBody bounds how much of a success response is read.
const maxBody = 4 << 20

// Operation is a server-resolved quantity change.
type Operation string

const (
	OperationIncrement Operation = "increment"
	OperationDecrement Operation = "decrement"
)

// AddRequest is the body of POST /cart.
type AddRequest struct {
	GiftCardID string      `json:"giftCardId"`
	Price      money.Cents `json:"price"`
	Quantity   int         `json:"quantity"`
}

// UpdateRequest is the body of PUT /cart/{giftCardId}. Unset fields are not
// sent.
type UpdateRequest struct {
	Quantity  *int         `json:"quantity,omitempty"`
	Price     *money.Cents `json:"price,omitempty"`
	Operation Operation    `json:"operation,omitempty"`
}

// Client calls the cart API on behalf of one session.
type Client struct {
	baseURL string
	http    httpclient.Doer
	session *session.Session
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New returns a Client for the API rooted at baseURL, e.g.
// "http://localhost:8003/api". Every request carries the session's token.
func New(baseURL string, doer httpclient.Doer, sess *session.Session, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		session: sess,
		logger:  logger,
		tracer:  tracing.Tracer("storefront/cartclient"),
	}
}

// Fetch returns the current cart.
func (c *Client) Fetch(ctx context.Context) (domain.CartSnapshot, error) {
	body, err := c.call(ctx, "fetch", http.MethodGet, "/cart", nil)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("decode cart: %w", err)
	}
	return snap, nil
}

// Add asks the server to add req, merging with an existing line for the same
// gift card.
func (c *Client) Add(ctx context.Context, req AddRequest) error {
	_, err := c.call(ctx, "add", http.MethodPost, "/cart", req)
	return err
}

// Remove deletes the line for giftCardID.
func (c *Client) Remove(ctx context.Context, giftCardID string) error {
	path, err := linePath(giftCardID)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "remove", http.MethodDelete, path, nil)
	return err
}

// Update changes the line for giftCardID.
func (c *Client) Update(ctx context.Context, giftCardID string, req UpdateRequest) error {
	path, err := linePath(giftCardID)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "update", http.MethodPut, path, req)
	return err
}

// Increment adds one to the line's quantity on the server.
func (c *Client) Increment(ctx context.Context, giftCardID string) error {
	return c.Update(ctx, giftCardID, UpdateRequest{Operation: OperationIncrement})
}

// Decrement subtracts one from the line's quantity on the server, which
// removes a line of quantity one.
func (c *Client) Decrement(ctx context.Context, giftCardID string) error {
	return c.Update(ctx, giftCardID, UpdateRequest{Operation: OperationDecrement})
}

// Clear empties the cart.
func (c *Client) Clear(ctx context.Context) error {
	_, err := c.call(ctx, "clear", http.MethodDelete, "/cart", nil)
	return err
}

// CleanupExpired asks the server to drop lines whose offer has expired and
// returns how many it removed.
func (c *Client) CleanupExpired(ctx context.Context) (int, error) {
	body, err := c.call(ctx, "cleanup_expired", http.MethodDelete, "/cart/cleanup/expired", nil)
	if err != nil {
		return 0, err
	}
	return decodeRemoved(body), nil
}

func linePath(giftCardID string) (string, error) {
	if giftCardID == "" {
		return "", apperrors.InvalidInput("gift card id is required")
	}
	return "/cart/" + url.PathEscape(giftCardID), nil
}

// call performs one request and returns the response body of a 2xx answer.
// A 401 clears the session and fires its login-required hooks.
func (c *Client) call(ctx context.Context, op, method, path string, payload any) (_ []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "cartclient."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	start := time.Now()
	outcome := outcomeOK
	defer func() {
		observe(op, outcome, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	token := c.session.Token()
	if token == "" {
		outcome = outcomeUnauthorized
		c.session.LoginRequired(ctx)
		return nil, apperrors.Unauthorized("login required")
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		outcome = outcomeTransportError
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		outcome = outcomeTransportError
		logger.WithContext(ctx, c.logger).Warn("cart api unreachable",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = outcomeFor(resp.StatusCode)
		err := httpclient.ParseResponseError(resp, serviceName)
		if resp.StatusCode == http.StatusUnauthorized {
			c.session.LoginRequired(ctx)
		}
		return nil, err
	}

	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		outcome = outcomeTransportError
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}
	tracing.InjectHTTP(ctx, req.Header)
	return req, nil
}
