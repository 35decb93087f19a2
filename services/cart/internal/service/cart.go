package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/giftcart/pkg/errors"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/services/cart/internal/catalog"
	"github.com/utafrali/giftcart/services/cart/internal/domain"
	"github.com/utafrali/giftcart/services/cart/internal/event"
	"github.com/utafrali/giftcart/services/cart/internal/repository"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single cart line.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct gift cards in a cart.
	MaxItemsPerCart = 50
	// maxSaveAttempts bounds the read-modify-write loop under contention.
	maxSaveAttempts = 5
)

// Update operations resolved by the server.
const (
	OperationIncrement = "increment"
	OperationDecrement = "decrement"
)

// DefaultCurrency is the currency of every new cart.
const DefaultCurrency = "USD"

// errUnchanged tells mutate that fn left the cart as it was.
var errUnchanged = errors.New("cart unchanged")

// AddItemInput holds the parameters for adding a gift card to the cart.
type AddItemInput struct {
	GiftCardID string
	Price      money.Cents
	Quantity   int
}

// UpdateItemInput holds the parameters for updating a cart line. Operation
// and Quantity are mutually exclusive; Price may accompany either.
type UpdateItemInput struct {
	Quantity  *int
	Price     *money.Cents
	Operation string
}

// CartService implements the business logic for cart operations.
type CartService struct {
	repo     repository.CartRepository
	catalog  catalog.Repository
	producer *event.Producer
	logger   *slog.Logger
	cartTTL  time.Duration
	now      func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(
	repo repository.CartRepository,
	offers catalog.Repository,
	producer *event.Producer,
	logger *slog.Logger,
	cartTTL time.Duration,
) *CartService {
	return &CartService{
		repo:     repo,
		catalog:  offers,
		producer: producer,
		logger:   logger,
		cartTTL:  cartTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCart returns the user's cart with availability resolved. A user without
// a cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

// AddItem adds a gift card to the cart, merging into an existing line for
// the same gift card.
func (s *CartService) AddItem(ctx context.Context, userID string, input AddItemInput) (*domain.CartView, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input.GiftCardID == "" {
		return nil, apperrors.InvalidInput("gift card id is required")
	}
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if input.Quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	offer, err := s.purchasableOffer(ctx, input.GiftCardID)
	if err != nil {
		return nil, err
	}
	if err := checkPrice(offer, input.Price); err != nil {
		return nil, err
	}

	cart, err := s.mutate(ctx, userID, func(cart *domain.Cart) error {
		if i := cart.FindLine(input.GiftCardID); i >= 0 {
			line := &cart.Lines[i]
			newQty := line.Quantity + input.Quantity
			if newQty > MaxQuantityPerItem {
				return apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
			}
			if err := checkStock(offer, newQty); err != nil {
				return err
			}
			line.Quantity = newQty
			line.Price = input.Price
			line.Name = offer.Name
			line.ImageURL = offer.ImageURL
			return nil
		}

		if len(cart.Lines) >= MaxItemsPerCart {
			return apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
		if err := checkStock(offer, input.Quantity); err != nil {
			return err
		}
		cart.Lines = append(cart.Lines, domain.Line{
			GiftCardID: offer.ID,
			Name:       offer.Name,
			ImageURL:   offer.ImageURL,
			Price:      input.Price,
			Quantity:   input.Quantity,
			AddedAt:    s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("gift_card_id", input.GiftCardID),
		slog.Int("quantity", input.Quantity),
	)

	return s.view(ctx, cart)
}

// UpdateItem changes a line's quantity or price, or applies an increment or
// decrement. A line whose quantity reaches zero is removed.
func (s *CartService) UpdateItem(ctx context.Context, userID, giftCardID string, input UpdateItemInput) (*domain.CartView, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if giftCardID == "" {
		return nil, apperrors.InvalidInput("gift card id is required")
	}
	switch {
	case input.Operation != "" && input.Quantity != nil:
		return nil, apperrors.InvalidInput("operation and quantity are mutually exclusive")
	case input.Operation == "" && input.Quantity == nil && input.Price == nil:
		return nil, apperrors.InvalidInput("one of quantity, price or operation is required")
	case input.Operation != "" && input.Operation != OperationIncrement && input.Operation != OperationDecrement:
		return nil, apperrors.InvalidInput("operation must be increment or decrement")
	case input.Quantity != nil && *input.Quantity < 0:
		return nil, apperrors.InvalidInput("quantity must not be negative")
	case input.Quantity != nil && *input.Quantity > MaxQuantityPerItem:
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	var newQty int
	cart, err := s.mutate(ctx, userID, func(cart *domain.Cart) error {
		i := cart.FindLine(giftCardID)
		if i < 0 {
			return apperrors.NotFound("cart item", giftCardID)
		}
		line := &cart.Lines[i]

		newQty = line.Quantity
		switch {
		case input.Operation == OperationIncrement:
			newQty++
		case input.Operation == OperationDecrement:
			newQty--
		case input.Quantity != nil:
			newQty = *input.Quantity
		}

		if newQty <= 0 {
			cart.RemoveLine(i)
			return nil
		}
		if newQty > MaxQuantityPerItem {
			return apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
		}

		if newQty > line.Quantity || input.Price != nil {
			offer, err := s.purchasableOffer(ctx, giftCardID)
			if err != nil {
				return err
			}
			if newQty > line.Quantity {
				if err := checkStock(offer, newQty); err != nil {
					return err
				}
			}
			if input.Price != nil {
				if err := checkPrice(offer, *input.Price); err != nil {
					return err
				}
				line.Price = *input.Price
			}
		}
		line.Quantity = newQty
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item updated",
		slog.String("user_id", userID),
		slog.String("gift_card_id", giftCardID),
		slog.String("operation", input.Operation),
		slog.Int("quantity", max(newQty, 0)),
	)

	return s.view(ctx, cart)
}

// RemoveItem removes the line for giftCardID.
func (s *CartService) RemoveItem(ctx context.Context, userID, giftCardID string) (*domain.CartView, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if giftCardID == "" {
		return nil, apperrors.InvalidInput("gift card id is required")
	}

	cart, err := s.mutate(ctx, userID, func(cart *domain.Cart) error {
		i := cart.FindLine(giftCardID)
		if i < 0 {
			return apperrors.NotFound("cart item", giftCardID)
		}
		cart.RemoveLine(i)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("gift_card_id", giftCardID),
	)

	return s.view(ctx, cart)
}

// ClearCart removes all lines. Clearing an empty cart succeeds. The cleared
// cart is saved with a version bump rather than deleted, so a writer still
// holding the pre-clear version cannot resurrect its lines.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}

	_, _, err := s.save(ctx, userID, func(cart *domain.Cart) error {
		if len(cart.Lines) == 0 {
			return errUnchanged
		}
		cart.Lines = []domain.Line{}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.producer.PublishCartCleared(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared", slog.String("user_id", userID))
	return nil
}

// CleanupExpired drops lines whose offer has expired or no longer exists and
// returns how many were removed.
func (s *CartService) CleanupExpired(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, apperrors.InvalidInput("user id is required")
	}

	var removed []string
	_, err := s.mutate(ctx, userID, func(cart *domain.Cart) error {
		removed = removed[:0]
		offers, err := s.catalog.GetMany(ctx, lineIDs(cart))
		if err != nil {
			return fmt.Errorf("load offers: %w", err)
		}

		now := s.now()
		kept := cart.Lines[:0]
		for _, l := range cart.Lines {
			if o, ok := offers[l.GiftCardID]; ok && !o.Expired(now) {
				kept = append(kept, l)
				continue
			}
			removed = append(removed, l.GiftCardID)
		}
		cart.Lines = kept

		if len(removed) == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(removed) > 0 {
		if err := s.producer.PublishExpiredRemoved(ctx, userID, removed); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.expired_removed event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		s.logger.InfoContext(ctx, "expired items removed from cart",
			slog.String("user_id", userID),
			slog.Int("removed", len(removed)),
		)
	}

	return len(removed), nil
}

// mutate runs save and publishes cart.updated when a new version was written.
func (s *CartService) mutate(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	cart, saved, err := s.save(ctx, userID, fn)
	if err != nil {
		return nil, err
	}
	if saved {
		if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return cart, nil
}

// save loads the cart, applies fn and saves the result with a version
// check. When another writer saved in between, the whole cycle is retried
// from a fresh read so concurrent increments all land. saved is false when
// fn returned errUnchanged.
func (s *CartService) save(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, bool, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		cart, err := s.getOrCreateCart(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		expectedVersion := cart.Version

		if err := fn(cart); err != nil {
			if errors.Is(err, errUnchanged) {
				return cart, false, nil
			}
			return nil, false, err
		}

		cart.Touch(s.now(), s.cartTTL)
		ok, err := s.repo.SaveIfVersion(ctx, cart, expectedVersion)
		if err != nil {
			return nil, false, fmt.Errorf("save cart: %w", err)
		}
		if !ok {
			s.logger.DebugContext(ctx, "cart version conflict, retrying",
				slog.String("user_id", userID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		return cart, true, nil
	}

	return nil, false, apperrors.Conflict("cart was modified concurrently, please retry")
}

// getOrCreateCart retrieves the cart for a user, creating an empty one if it does not exist.
func (s *CartService) getOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// newEmptyCart creates a new empty cart for the given user.
func (s *CartService) newEmptyCart(userID string) *domain.Cart {
	now := s.now()
	return &domain.Cart{
		ID:        uuid.New().String(),
		UserID:    userID,
		Lines:     []domain.Line{},
		Currency:  DefaultCurrency,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.cartTTL),
	}
}

func (s *CartService) view(ctx context.Context, cart *domain.Cart) (*domain.CartView, error) {
	offers, err := s.catalog.GetMany(ctx, lineIDs(cart))
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}
	return domain.NewCartView(cart, offers, s.now()), nil
}

// purchasableOffer returns the offer for id if new units may be bought.
func (s *CartService) purchasableOffer(ctx context.Context, id string) (*domain.Offer, error) {
	offer, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if offer.Expired(s.now()) {
		return nil, apperrors.Gone(fmt.Sprintf("gift card %s has expired", id))
	}
	if !offer.Active {
		return nil, apperrors.InvalidInput(fmt.Sprintf("gift card %s is not available", id))
	}
	return offer, nil
}

func checkPrice(offer *domain.Offer, price money.Cents) error {
	if price.IsNegative() {
		return apperrors.InvalidInput("price must not be negative")
	}
	if !offer.AcceptsAmount(price) {
		if offer.MinAmount == offer.MaxAmount {
			return apperrors.InvalidInput(fmt.Sprintf("price must be %s", offer.MinAmount))
		}
		return apperrors.InvalidInput(fmt.Sprintf("price must be between %s and %s", offer.MinAmount, offer.MaxAmount))
	}
	return nil
}

func checkStock(offer *domain.Offer, quantity int) error {
	if quantity > offer.Stock {
		return apperrors.InvalidInput(fmt.Sprintf("only %d of %s left in stock", offer.Stock, offer.Name))
	}
	return nil
}

func lineIDs(cart *domain.Cart) []string {
	ids := make([]string, len(cart.Lines))
	for i, l := range cart.Lines {
		ids[i] = l.GiftCardID
	}
	return ids
}
