package domain

import (
	"time"

	"github.com/utafrali/giftcart/pkg/money"
)

// Cart is a user's cart as persisted by the repository. Lines are kept in
// insertion order and hold at most one entry per gift card.
type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Lines     []Line    `json:"lines"`
	Currency  string    `json:"currency"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Line is one gift card and its quantity. Price is the chosen denomination.
type Line struct {
	GiftCardID string      `json:"gift_card_id"`
	Name       string      `json:"name"`
	ImageURL   string      `json:"image_url,omitempty"`
	Price      money.Cents `json:"price"`
	Quantity   int         `json:"quantity"`
	AddedAt    time.Time   `json:"added_at"`
}

// Subtotal is price times quantity.
func (l Line) Subtotal() money.Cents {
	return l.Price.Mul(l.Quantity)
}

// FindLine returns the index of the line for giftCardID, or -1.
func (c *Cart) FindLine(giftCardID string) int {
	for i := range c.Lines {
		if c.Lines[i].GiftCardID == giftCardID {
			return i
		}
	}
	return -1
}

// RemoveLine drops the line at index i, keeping the order of the others.
func (c *Cart) RemoveLine(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

// TotalQuantity sums the quantities of all lines.
func (c *Cart) TotalQuantity() int {
	var n int
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Touch bumps UpdatedAt and pushes the expiry out by ttl.
func (c *Cart) Touch(now time.Time, ttl time.Duration) {
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(ttl)
}
