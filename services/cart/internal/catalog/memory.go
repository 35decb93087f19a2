package catalog

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/services/cart/internal/domain"
)

// MemoryRepository is an in-process catalog for development and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	offers map[string]domain.Offer
}

// NewMemoryRepository creates a catalog holding offers.
func NewMemoryRepository(offers ...domain.Offer) *MemoryRepository {
	r := &MemoryRepository{offers: make(map[string]domain.Offer, len(offers))}
	for _, o := range offers {
		r.offers[o.ID] = o
	}
	return r
}

// DemoOffers returns the offers the development catalog starts with. They
// mirror the seed migration.
func DemoOffers() []domain.Offer {
	expired := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	return []domain.Offer{
		{ID: "steam-usd", Name: "Steam Wallet", ImageURL: "https://cdn.giftcart.dev/steam.png",
			MinAmount: money.MustParse("5"), MaxAmount: money.MustParse("200"), Stock: 500, Active: true},
		{ID: "psn-usd", Name: "PlayStation Store", ImageURL: "https://cdn.giftcart.dev/psn.png",
			MinAmount: money.MustParse("10"), MaxAmount: money.MustParse("100"), Stock: 250, Active: true},
		{ID: "spotify-3m", Name: "Spotify Premium", ImageURL: "https://cdn.giftcart.dev/spotify.png",
			MinAmount: money.MustParse("29.97"), MaxAmount: money.MustParse("29.97"), Stock: 100, Active: true},
		{ID: "xmas-promo", Name: "Holiday Promo", ImageURL: "https://cdn.giftcart.dev/xmas.png",
			MinAmount: money.MustParse("25"), MaxAmount: money.MustParse("25"), Stock: 50, ExpiresAt: &expired, Active: true},
	}
}

// Put inserts or replaces an offer.
func (r *MemoryRepository) Put(o domain.Offer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[o.ID] = o
}

// Delete removes an offer.
func (r *MemoryRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.offers, id)
}

// Get returns a copy of the offer.
func (r *MemoryRepository) Get(_ context.Context, id string) (*domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.offers[id]
	if !ok {
		return nil, apperrors.NotFound("gift card", id)
	}
	return &o, nil
}

// GetMany returns copies of the offers that exist among ids.
func (r *MemoryRepository) GetMany(_ context.Context, ids []string) (map[string]*domain.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*domain.Offer, len(ids))
	for _, id := range ids {
		if o, ok := r.offers[id]; ok {
			out[id] = &o
		}
	}
	return out, nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(context.Context) error { return nil }
