// Package domain holds the storefront's view of a cart: the last snapshot the
// cart API confirmed.
package domain

import "github.com/utafrali/giftcart/pkg/money"

// CartLine is one gift card and quantity in the cart. UnitPrice and the
// availability fields are server values and are never recomputed locally.
type CartLine struct {
	GiftCardID     string
	Name           string
	Image          string
	UnitPrice      money.Cents
	Quantity       int
	IsAvailable    bool
	AvailableStock int
}

// Subtotal returns UnitPrice times Quantity.
func (l CartLine) Subtotal() money.Cents {
	return l.UnitPrice.Mul(l.Quantity)
}

// CartSnapshot is the full cart as last returned by the server. Items and
// UnavailableItems are disjoint. TotalAmount covers Items only.
type CartSnapshot struct {
	Items            []CartLine
	UnavailableItems []CartLine
	TotalAmount      money.Cents
	// LineCount is the number of available lines.
	LineCount int
	// TotalQuantity is the sum of the available lines' quantities.
	TotalQuantity int
	Currency      string
}

// EmptySnapshot returns the snapshot a session starts with.
func EmptySnapshot() CartSnapshot {
	return CartSnapshot{
		Items:            []CartLine{},
		UnavailableItems: []CartLine{},
	}
}

// IsEmpty reports whether the cart holds no lines at all.
func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0 && len(s.UnavailableItems) == 0
}

// Find returns the line for giftCardID, available or not.
func (s CartSnapshot) Find(giftCardID string) (CartLine, bool) {
	for _, l := range s.Items {
		if l.GiftCardID == giftCardID {
			return l, true
		}
	}
	for _, l := range s.UnavailableItems {
		if l.GiftCardID == giftCardID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Clone returns a copy that shares no slices with s.
func (s CartSnapshot) Clone() CartSnapshot {
	c := s
	c.Items = append(make([]CartLine, 0, len(s.Items)), s.Items...)
	c.UnavailableItems = append(make([]CartLine, 0, len(s.UnavailableItems)), s.UnavailableItems...)
	return c
}
