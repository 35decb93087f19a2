package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig configures a breaker in front of one downstream API.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs, errors and the state gauge.
	Name string

	// MaxRequests is how many trial requests half-open lets through.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically; 0 never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before a trial request.
	Timeout time.Duration

	// FailureRatio trips the breaker once MinRequests have been counted.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultCircuitBreakerConfig returns defaults for a circuit breaker.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// ErrCircuitOpen is returned without contacting the server while the breaker
// is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

// errServerStatus records a 5xx response as a breaker failure.
var errServerStatus = errors.New("server error status")

var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "giftcart",
		Name:      "http_client_breaker_state",
		Help:      "Circuit breaker state per downstream API (0=closed, 1=half-open, 2=open).",
	},
	[]string{"name"},
)

// CircuitBreakerClient is a Doer that stops calling a failing server. Transport
// errors and 5xx responses count as failures; 4xx responses and requests the
// caller cancelled do not.
type CircuitBreakerClient struct {
	next    Doer
	breaker *gobreaker.TwoStepCircuitBreaker[struct{}]
	name    string
}

// NewCircuitBreakerClient wraps next with a breaker configured by cfg.
func NewCircuitBreakerClient(next Doer, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= cfg.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		// A caller that gave up says nothing about the server.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return &CircuitBreakerClient{
		next:    next,
		breaker: gobreaker.NewTwoStepCircuitBreaker[struct{}](settings),
		name:    cfg.Name,
	}
}

// Do sends req unless the breaker is open. A 5xx response is returned to the
// caller unread so its error body can still be parsed.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	done, err := c.breaker.Allow()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	resp, err := c.next.Do(ctx, req)
	switch {
	case err != nil:
		done(err)
		return nil, err
	case resp.StatusCode >= http.StatusInternalServerError:
		done(errServerStatus)
	default:
		done(nil)
	}
	return resp, nil
}

// State returns the current state of the circuit breaker.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
