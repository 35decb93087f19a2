package cartstate

import (
	"context"
	"sync"

	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/services/storefront/internal/cartclient"
	"github.com/utafrali/giftcart/services/storefront/internal/domain"
)

// fakeAPI is an in-memory cart server: it merges on add, resolves deltas
// itself and drops zero-quantity lines.
type fakeAPI struct {
	mu      sync.Mutex
	lines   []domain.CartLine
	expired map[string]bool
	calls   []string

	// fail maps an operation name to the error it returns once.
	fail map[string]error
	// beforeFetchReturn runs after a fetch captured its response and before
	// it returns it. n counts fetches from 1.
	beforeFetchReturn func(ctx context.Context, n int)
	fetches           int
	// shape edits each snapshot the way a real server might, e.g. with
	// unavailable lines or its own total.
	shape func(snap *domain.CartSnapshot)
}

func newFakeAPI(lines ...domain.CartLine) *fakeAPI {
	return &fakeAPI{lines: lines, expired: map[string]bool{}, fail: map[string]error{}}
}

func (f *fakeAPI) record(op string) error {
	f.calls = append(f.calls, op)
	if err, ok := f.fail[op]; ok {
		delete(f.fail, op)
		return err
	}
	return nil
}

func (f *fakeAPI) failNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeAPI) Fetch(ctx context.Context) (domain.CartSnapshot, error) {
	f.mu.Lock()
	if err := f.record("fetch"); err != nil {
		f.mu.Unlock()
		return domain.CartSnapshot{}, err
	}
	f.fetches++
	n := f.fetches
	snap := domain.EmptySnapshot()
	for _, l := range f.lines {
		snap.Items = append(snap.Items, l)
		snap.LineCount++
		snap.TotalQuantity += l.Quantity
		snap.TotalAmount += l.Subtotal()
	}
	if f.shape != nil {
		f.shape(&snap)
	}
	hook := f.beforeFetchReturn
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, n)
	}
	if err := ctx.Err(); err != nil {
		return domain.CartSnapshot{}, err
	}
	return snap, nil
}

func (f *fakeAPI) Add(_ context.Context, req cartclient.AddRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("add"); err != nil {
		return err
	}
	for i := range f.lines {
		if f.lines[i].GiftCardID == req.GiftCardID {
			f.lines[i].Quantity += req.Quantity
			return nil
		}
	}
	f.lines = append(f.lines, domain.CartLine{
		GiftCardID:     req.GiftCardID,
		UnitPrice:      req.Price,
		Quantity:       req.Quantity,
		IsAvailable:    true,
		AvailableStock: 100,
	})
	return nil
}

func (f *fakeAPI) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("remove"); err != nil {
		return err
	}
	return f.removeLocked(id)
}

func (f *fakeAPI) removeLocked(id string) error {
	for i := range f.lines {
		if f.lines[i].GiftCardID == id {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFound("cart item", id)
}

func (f *fakeAPI) Update(_ context.Context, id string, req cartclient.UpdateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("update"); err != nil {
		return err
	}
	return f.applyLocked(id, req)
}

func (f *fakeAPI) applyLocked(id string, req cartclient.UpdateRequest) error {
	for i := range f.lines {
		if f.lines[i].GiftCardID != id {
			continue
		}
		q := f.lines[i].Quantity
		switch {
		case req.Operation == cartclient.OperationIncrement:
			q++
		case req.Operation == cartclient.OperationDecrement:
			q--
		case req.Quantity != nil:
			q = *req.Quantity
		}
		if req.Price != nil {
			f.lines[i].UnitPrice = *req.Price
		}
		if q <= 0 {
			return f.removeLocked(id)
		}
		f.lines[i].Quantity = q
		return nil
	}
	return apperrors.NotFound("cart item", id)
}

func (f *fakeAPI) Increment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("increment"); err != nil {
		return err
	}
	return f.applyLocked(id, cartclient.UpdateRequest{Operation: cartclient.OperationIncrement})
}

func (f *fakeAPI) Decrement(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("decrement"); err != nil {
		return err
	}
	return f.applyLocked(id, cartclient.UpdateRequest{Operation: cartclient.OperationDecrement})
}

func (f *fakeAPI) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("clear"); err != nil {
		return err
	}
	f.lines = nil
	return nil
}

func (f *fakeAPI) CleanupExpired(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("cleanup"); err != nil {
		return 0, err
	}
	kept := f.lines[:0]
	removed := 0
	for _, l := range f.lines {
		if f.expired[l.GiftCardID] {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	f.lines = kept
	return removed, nil
}

func line(id string, price string, qty int) domain.CartLine {
	return domain.CartLine{
		GiftCardID:     id,
		UnitPrice:      money.MustParse(price),
		Quantity:       qty,
		IsAvailable:    true,
		AvailableStock: 100,
	}
}
