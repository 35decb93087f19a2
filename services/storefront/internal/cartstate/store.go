// Package cartstate owns the storefront's cart snapshot. Every mutation is
// sent to the server and followed by exactly one fetch of the whole cart; the
// snapshot is only ever replaced by what a fetch returned.
package cartstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/utafrali/giftcart/services/storefront/internal/cartclient"
	"github.com/utafrali/giftcart/services/storefront/internal/domain"
)

// ErrClosed is returned by operations started after Close.
var ErrClosed = errors.New("cart store closed")

// CartAPI is the transport the store drives. *cartclient.Client implements it.
type CartAPI interface {
	Fetch(ctx context.Context) (domain.CartSnapshot, error)
	Add(ctx context.Context, req cartclient.AddRequest) error
	Remove(ctx context.Context, giftCardID string) error
	Update(ctx context.Context, giftCardID string, req cartclient.UpdateRequest) error
	Increment(ctx context.Context, giftCardID string) error
	Decrement(ctx context.Context, giftCardID string) error
	Clear(ctx context.Context) error
	CleanupExpired(ctx context.Context) (int, error)
}

// State is what subscribers see: the last confirmed cart, whether a call is
// in flight, and the failure of the last operation.
type State struct {
	Cart    domain.CartSnapshot
	Loading bool
	Error   *Failure
}

func (s State) clone() State {
	s.Cart = s.Cart.Clone()
	if s.Error != nil {
		f := *s.Error
		s.Error = &f
	}
	return s
}

type subscriber struct {
	id int
	fn func(State)
}

// Store is the single writer of the cart state for one session.
type Store struct {
	api    CartAPI
	logger *slog.Logger

	// ctx is cancelled by Close and bounds every call the store makes.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	inflight int
	issued   uint64
	applied  uint64
	closed   bool
	subs     []subscriber
	nextSub  int

	// outbox holds committed states not yet handed to subscribers. At most
	// one goroutine drains it at a time, so deliveries keep commit order.
	outbox     []notification
	delivering bool
}

type notification struct {
	state State
	subs  []subscriber
}

// New returns a store holding an empty cart.
func New(api CartAPI, logger *slog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		api:    api,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		state:  State{Cart: domain.EmptySnapshot()},
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to receive a copy of the state after every
// transition, in transition order. fn runs with no store lock held and may
// call State. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Close cancels every call in flight. Their results are discarded and later
// operations return ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.subs = nil
	s.mu.Unlock()
	s.cancel()
}

// Fetch replaces the snapshot with the server's cart. It is also the retry
// action after an error.
func (s *Store) Fetch(ctx context.Context) error {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	return s.load(ctx, false)
}

// Add adds a line, merged by the server with any line for the same gift card.
func (s *Store) Add(ctx context.Context, req cartclient.AddRequest) error {
	return s.mutate(ctx, "add", msgAdd, func(ctx context.Context) error {
		return s.api.Add(ctx, req)
	})
}

// Remove deletes the line for giftCardID.
func (s *Store) Remove(ctx context.Context, giftCardID string) error {
	return s.mutate(ctx, "remove", msgRemove, func(ctx context.Context) error {
		return s.api.Remove(ctx, giftCardID)
	})
}

// Update changes quantity or price of the line for giftCardID.
func (s *Store) Update(ctx context.Context, giftCardID string, req cartclient.UpdateRequest) error {
	return s.mutate(ctx, "update", msgUpdate, func(ctx context.Context) error {
		return s.api.Update(ctx, giftCardID, req)
	})
}

// Increment adds one to a line; the server does the arithmetic.
func (s *Store) Increment(ctx context.Context, giftCardID string) error {
	return s.mutate(ctx, "increment", msgUpdate, func(ctx context.Context) error {
		return s.api.Increment(ctx, giftCardID)
	})
}

// Decrement subtracts one from a line; a line of quantity one disappears.
func (s *Store) Decrement(ctx context.Context, giftCardID string) error {
	return s.mutate(ctx, "decrement", msgUpdate, func(ctx context.Context) error {
		return s.api.Decrement(ctx, giftCardID)
	})
}

// Clear empties the cart. Clearing an empty cart succeeds.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear", msgClear, s.api.Clear)
}

// CleanupExpired asks the server to drop lines whose offer expired and
// returns how many went.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	var removed int
	err := s.mutate(ctx, "cleanup_expired", msgCleanup, func(ctx context.Context) error {
		n, err := s.api.CleanupExpired(ctx)
		removed = n
		return err
	})
	return removed, err
}

// mutate runs one mutation followed by one fetch.
func (s *Store) mutate(ctx context.Context, op, failMsg string, call func(context.Context) error) error {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := call(ctx); err != nil {
		f := classify(err, failMsg)
		s.logFailure(op, f)
		s.settle(func(st *State) { st.Error = f })
		return f
	}
	s.logger.Info("cart mutation applied", slog.String("operation", op))
	return s.load(ctx, true)
}

// load fetches the cart under a new generation. A response older than the
// last applied one is dropped.
func (s *Store) load(ctx context.Context, afterMutation bool) error {
	s.mu.Lock()
	s.issued++
	gen := s.issued
	s.mu.Unlock()

	snap, err := s.api.Fetch(ctx)
	if err != nil {
		f := classify(err, msgFetch)
		if afterMutation && f.Kind != ErrorUnauthorized {
			f = &Failure{Kind: ErrorStateUnknown, Message: msgStateUnknown, Err: err}
		}
		s.logFailure("fetch", f)
		s.settle(func(st *State) {
			if gen > s.applied {
				st.Error = f
			}
		})
		return f
	}

	s.settle(func(st *State) {
		if gen <= s.applied {
			s.logger.Debug("dropping stale cart response",
				slog.Uint64("generation", gen),
				slog.Uint64("applied", s.applied),
			)
			return
		}
		s.applied = gen
		st.Cart = snap.Clone()
	})
	return nil
}

// begin marks an operation in flight and returns a context that Close
// cancels.
func (s *Store) begin(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, ErrClosed
	}
	s.inflight++
	s.state.Loading = true
	s.state.Error = nil
	s.commitLocked()

	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}, nil
}

// settle ends an operation. apply runs with the lock held.
func (s *Store) settle(apply func(st *State)) {
	s.mu.Lock()
	s.inflight--
	if s.closed {
		s.mu.Unlock()
		return
	}
	apply(&s.state)
	s.state.Loading = s.inflight > 0
	s.commitLocked()
}

// commitLocked queues the state for subscribers and releases s.mu. The
// caller then delivers queued states unless another goroutine already is.
func (s *Store) commitLocked() {
	if len(s.subs) > 0 {
		s.outbox = append(s.outbox, notification{
			state: s.state.clone(),
			subs:  append([]subscriber(nil), s.subs...),
		})
	}
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true

	for len(s.outbox) > 0 {
		n := s.outbox[0]
		s.outbox = s.outbox[1:]
		s.mu.Unlock()

		for _, sub := range n.subs {
			sub.fn(n.state.clone())
		}

		s.mu.Lock()
	}
	s.outbox = nil
	s.delivering = false
	s.mu.Unlock()
}

func (s *Store) logFailure(op string, f *Failure) {
	attrs := []any{
		slog.String("operation", op),
		slog.String("kind", string(f.Kind)),
	}
	if f.Err != nil {
		attrs = append(attrs, slog.String("error", f.Err.Error()))
	}
	if f.Kind == ErrorValidation {
		s.logger.Info("cart operation rejected", attrs...)
		return
	}
	s.logger.Warn("cart operation failed", attrs...)
}
