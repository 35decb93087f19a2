package domain

import (
	"time"

	"github.com/utafrali/giftcart/pkg/money"
)

// LineView is a cart line as served to clients, with availability resolved
// against the catalog.
type LineView struct {
	GiftCardID     string      `json:"giftCardId"`
	Name           string      `json:"name"`
	Image          string      `json:"image,omitempty"`
	Price          money.Cents `json:"price"`
	Quantity       int         `json:"quantity"`
	Subtotal       money.Cents `json:"subtotal"`
	IsAvailable    bool        `json:"isAvailable"`
	AvailableStock int         `json:"availableStock"`
}

// Summary aggregates the available lines of a cart.
type Summary struct {
	TotalAmount      money.Cents `json:"totalAmount"`
	TotalItems       int         `json:"totalItems"`
	TotalQuantity    int         `json:"totalQuantity"`
	UnavailableCount int         `json:"unavailableCount"`
	Currency         string      `json:"currency"`
}

// CartView is the GET /cart response body.
type CartView struct {
	Items            []LineView `json:"items"`
	UnavailableItems []LineView `json:"unavailableItems"`
	Summary          Summary    `json:"summary"`
}

// NewCartView splits the cart's lines into available and unavailable ones.
// A line is available when its offer exists, can still be bought and has
// stock for the full quantity. Totals cover available lines only.
func NewCartView(c *Cart, offers map[string]*Offer, now time.Time) *CartView {
	v := &CartView{
		Items:            []LineView{},
		UnavailableItems: []LineView{},
		Summary:          Summary{Currency: c.Currency},
	}

	for _, l := range c.Lines {
		lv := LineView{
			GiftCardID: l.GiftCardID,
			Name:       l.Name,
			Image:      l.ImageURL,
			Price:      l.Price,
			Quantity:   l.Quantity,
			Subtotal:   l.Subtotal(),
		}
		if o, ok := offers[l.GiftCardID]; ok {
			lv.AvailableStock = o.Stock
			lv.IsAvailable = o.Purchasable(now) && o.Stock >= l.Quantity
		}

		if !lv.IsAvailable {
			v.UnavailableItems = append(v.UnavailableItems, lv)
			continue
		}
		v.Items = append(v.Items, lv)
		v.Summary.TotalAmount += lv.Subtotal
		v.Summary.TotalQuantity += lv.Quantity
	}

	v.Summary.TotalItems = len(v.Items)
	v.Summary.UnavailableCount = len(v.UnavailableItems)
	return v
}
