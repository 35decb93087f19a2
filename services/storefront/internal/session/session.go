// Package session holds the storefront's credentials. A Session is created
// once per process and handed to the components that call the cart API; they
// never read credentials from anywhere else.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/utafrali/giftcart/pkg/auth"
)

// ErrNoSession is returned by a Store that holds no credentials.
var ErrNoSession = errors.New("no session")

// Credentials are what a logged-in session persists.
type Credentials struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Store persists credentials between runs.
type Store interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Delete(ctx context.Context) error
}

// Session is the explicit authentication context of one storefront user.
type Session struct {
	store  Store
	logger *slog.Logger

	mu              sync.RWMutex
	creds           Credentials
	onLoginRequired []func()
}

// New returns a logged-out session backed by store.
func New(store Store, logger *slog.Logger) *Session {
	return &Session{store: store, logger: logger}
}

// Open returns a session restored from store. A store without credentials
// yields a logged-out session.
func Open(ctx context.Context, store Store, logger *slog.Logger) (*Session, error) {
	s := New(store, logger)
	creds, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("restore session: %w", err)
	}
	s.creds = creds
	return s, nil
}

// Login stores token as the session's bearer credential. The user id is read
// from the token's claims.
func (s *Session) Login(ctx context.Context, token string) error {
	claims, err := auth.ReadClaims(token)
	if err != nil {
		return err
	}
	creds := Credentials{Token: token, UserID: claims.UserID}
	if err := s.store.Save(ctx, creds); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	s.logger.Info("logged in", slog.String("user_id", creds.UserID))
	return nil
}

// Token returns the bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Token
}

// UserID returns the logged-in user, or "".
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.UserID
}

// Authenticated reports whether the session holds a token.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Clear forgets the credentials in memory and in the store.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.creds = Credentials{}
	s.mu.Unlock()

	if err := s.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// OnLoginRequired registers fn to run whenever the server rejects the
// session's credentials.
func (s *Session) OnLoginRequired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLoginRequired = append(s.onLoginRequired, fn)
}

// LoginRequired clears the session and runs the login-required hooks.
func (s *Session) LoginRequired(ctx context.Context) {
	if err := s.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear rejected session", slog.String("error", err.Error()))
	}

	s.mu.RLock()
	hooks := append([]func(){}, s.onLoginRequired...)
	s.mu.RUnlock()

	s.logger.Info("login required")
	for _, fn := range hooks {
		fn()
	}
}
