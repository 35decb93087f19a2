// Package catalog looks up the gift card offers that back cart lines.
package catalog

import (
	"context"

	"github.com/utafrali/giftcart/services/cart/internal/domain"
)

// Repository reads gift card offers.
type Repository interface {
	// Get returns the offer with the given id or an ErrNotFound AppError.
	Get(ctx context.Context, id string) (*domain.Offer, error)

	// GetMany returns the offers that exist among ids, keyed by id. Missing
	// ids are simply absent from the result.
	GetMany(ctx context.Context, ids []string) (map[string]*domain.Offer, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
