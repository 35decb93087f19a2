package domain

import (
	"time"

	"github.com/utafrali/giftcart/pkg/money"
)

// Offer is a purchasable gift card from the catalog.
type Offer struct {
	ID        string
	Name      string
	ImageURL  string
	MinAmount money.Cents
	MaxAmount money.Cents
	Stock     int
	ExpiresAt *time.Time
	Active    bool
}

// Expired reports whether the offer has an expiry at or before now.
func (o *Offer) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// Purchasable reports whether new units of the offer may be added to a cart.
func (o *Offer) Purchasable(now time.Time) bool {
	return o.Active && !o.Expired(now)
}

// AcceptsAmount reports whether amount is a valid denomination.
func (o *Offer) AcceptsAmount(amount money.Cents) bool {
	return amount >= o.MinAmount && amount <= o.MaxAmount
}
