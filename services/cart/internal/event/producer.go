package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/giftcart/pkg/kafka"
	"github.com/utafrali/giftcart/pkg/logger"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/services/cart/internal/domain"
)

// Kafka topic constants for cart domain events.
const (
	TopicCartUpdated        = "giftcart.cart.updated"
	TopicCartCleared        = "giftcart.cart.cleared"
	TopicCartExpiredRemoved = "giftcart.cart.expired_removed"
)

// SubjectKindCart is the subject kind of every cart event; the subject is
// the cart owner's user id.
const SubjectKindCart = "cart"

// ProducerName identifies events originating from the cart service.
const ProducerName = "cart-service"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	UserID        string         `json:"user_id"`
	Lines         []CartLineData `json:"lines"`
	LineCount     int            `json:"line_count"`
	TotalQuantity int            `json:"total_quantity"`
	Currency      string         `json:"currency"`
	Version       int            `json:"version"`
}

// CartLineData is the line payload within cart events.
type CartLineData struct {
	GiftCardID string      `json:"gift_card_id"`
	Price      money.Cents `json:"price"`
	Quantity   int         `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	UserID string `json:"user_id"`
}

// ExpiredRemovedData is the payload for a cart.expired_removed event.
type ExpiredRemovedData struct {
	UserID      string   `json:"user_id"`
	GiftCardIDs []string `json:"gift_card_ids"`
}

// Producer publishes cart domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the cart service.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	lines := make([]CartLineData, len(cart.Lines))
	for i, l := range cart.Lines {
		lines[i] = CartLineData{GiftCardID: l.GiftCardID, Price: l.Price, Quantity: l.Quantity}
	}

	data := CartUpdatedData{
		UserID:        cart.UserID,
		Lines:         lines,
		LineCount:     len(cart.Lines),
		TotalQuantity: cart.TotalQuantity(),
		Currency:      cart.Currency,
		Version:       cart.Version,
	}

	if err := p.publish(ctx, TopicCartUpdated, cart.UserID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("user_id", cart.UserID),
		slog.Int("line_count", len(cart.Lines)),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string) error {
	if err := p.publish(ctx, TopicCartCleared, userID, CartClearedData{UserID: userID}); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.cleared event", slog.String("user_id", userID))
	return nil
}

// PublishExpiredRemoved publishes a cart.expired_removed event.
func (p *Producer) PublishExpiredRemoved(ctx context.Context, userID string, giftCardIDs []string) error {
	data := ExpiredRemovedData{UserID: userID, GiftCardIDs: giftCardIDs}
	if err := p.publish(ctx, TopicCartExpiredRemoved, userID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.expired_removed event",
		slog.String("user_id", userID),
		slog.Int("removed", len(giftCardIDs)),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, SubjectKindCart, userID, ProducerName, data,
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)))
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
