package repository

import (
	"context"

	"github.com/utafrali/giftcart/services/cart/internal/domain"
)

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a cart by its user ID. A missing cart is an ErrNotFound.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// SaveIfVersion stores cart only if the stored version still equals
	// expectedVersion (0 meaning "no cart stored"). On success cart.Version
	// is bumped. It reports false when another writer got there first.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)
}
