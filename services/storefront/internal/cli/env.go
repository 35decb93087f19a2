// Package cli implements the giftcart command line storefront.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/giftcart/pkg/database"
	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/httpclient"
	"github.com/utafrali/giftcart/services/storefront/internal/cartclient"
	"github.com/utafrali/giftcart/services/storefront/internal/cartstate"
	"github.com/utafrali/giftcart/services/storefront/internal/config"
	"github.com/utafrali/giftcart/services/storefront/internal/session"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitLoginRequired = 2
)

// Env carries what the commands need. Zero-valued overrides are built from
// Config.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
	Out    io.Writer
	ErrOut io.Writer

	// Doer replaces the HTTP transport built from Config.
	Doer httpclient.Doer
	// SessionStore replaces the store selected by Config.
	SessionStore session.Store

	redis *redis.Client
}

// openSession restores the persisted session and wires the login-required
// hook to a message on ErrOut.
func (e *Env) openSession(ctx context.Context) (*session.Session, error) {
	store := e.SessionStore
	if store == nil {
		var err error
		store, err = e.buildStore(ctx)
		if err != nil {
			return nil, err
		}
	}

	sess, err := session.Open(ctx, store, e.Logger)
	if err != nil {
		return nil, err
	}
	sess.OnLoginRequired(func() {
		fmt.Fprintln(e.ErrOut, "Login required: run `giftcart login`.")
	})
	return sess, nil
}

func (e *Env) buildStore(ctx context.Context) (session.Store, error) {
	switch e.Config.SessionStore {
	case config.SessionMemory:
		return session.NewMemoryStore(), nil
	case config.SessionRedis:
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:         e.Config.SessionRedisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect session store: %w", err)
		}
		e.redis = client
		return session.NewRedisStore(client, e.Config.SessionKey, e.Config.SessionTTL), nil
	default:
		return session.NewFileStore(e.Config.SessionFile), nil
	}
}

func (e *Env) doer() httpclient.Doer {
	if e.Doer != nil {
		return e.Doer
	}
	var d httpclient.Doer = httpclient.New(e.Config.HTTPClientConfig())
	if e.Config.BreakerEnabled {
		d = httpclient.NewCircuitBreakerClient(d, e.Config.BreakerConfig(), e.Logger)
	}
	return d
}

// cartStore builds the state container for sess.
func (e *Env) cartStore(sess *session.Session) *cartstate.Store {
	client := cartclient.New(e.Config.APIURL, e.doer(), sess, e.Logger)
	return cartstate.New(client, e.Logger)
}

// Close releases connections opened by the commands.
func (e *Env) Close() error {
	if e.redis != nil {
		return e.redis.Close()
	}
	return nil
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, apperrors.ErrUnauthorized):
		return ExitLoginRequired
	default:
		return ExitFailure
	}
}
