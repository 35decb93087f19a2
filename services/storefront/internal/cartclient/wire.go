package cartclient

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/services/storefront/internal/domain"
)

// wireCart accepts both cart shapes the API has served: the current
// {items, unavailableItems, summary} and the older {items, total, count}.
type wireCart struct {
	Items            []wireLine   `json:"items"`
	UnavailableItems []wireLine   `json:"unavailableItems"`
	Summary          *wireSummary `json:"summary"`
	Total            *money.Cents `json:"total"`
}

type wireSummary struct {
	TotalAmount   money.Cents `json:"totalAmount"`
	TotalItems    int         `json:"totalItems"`
	TotalQuantity int         `json:"totalQuantity"`
	Currency      string      `json:"currency"`
}

type wireLine struct {
	GiftCardID     string       `json:"giftCardId"`
	Name           string       `json:"name"`
	Image          string       `json:"image"`
	UnitPrice      *money.Cents `json:"unitPrice"`
	Price          *money.Cents `json:"price"`
	Quantity       int          `json:"quantity"`
	IsAvailable    *bool        `json:"isAvailable"`
	AvailableStock *int         `json:"availableStock"`
}

// unwrap returns the payload of a {"data": ...} envelope, or body itself when
// the server answered without one.
func unwrap(body []byte) ([]byte, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, err
	}
	data, ok := top["data"]
	if !ok || bytes.Equal(data, []byte("null")) {
		return body, nil
	}
	if _, hasItems := top["items"]; hasItems {
		return body, nil
	}
	return data, nil
}

func decodeSnapshot(body []byte) (domain.CartSnapshot, error) {
	payload, err := unwrap(body)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	var w wireCart
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.CartSnapshot{}, err
	}
	if w.Items == nil && w.Summary == nil && w.Total == nil {
		return domain.CartSnapshot{}, errors.New("response carries no cart")
	}
	return w.snapshot(), nil
}

// snapshot adapts either shape to the one the storefront uses. Server totals
// are taken as sent. The legacy count is ambiguous between lines and units,
// so both counts are derived from the lines instead.
func (w wireCart) snapshot() domain.CartSnapshot {
	snap := domain.EmptySnapshot()
	for _, wl := range w.Items {
		l := wl.line()
		if l.IsAvailable {
			snap.Items = append(snap.Items, l)
		} else {
			snap.UnavailableItems = append(snap.UnavailableItems, l)
		}
	}
	for _, wl := range w.UnavailableItems {
		l := wl.line()
		l.IsAvailable = false
		snap.UnavailableItems = append(snap.UnavailableItems, l)
	}

	if w.Summary != nil {
		snap.TotalAmount = w.Summary.TotalAmount
		snap.LineCount = w.Summary.TotalItems
		snap.TotalQuantity = w.Summary.TotalQuantity
		snap.Currency = w.Summary.Currency
		return snap
	}

	snap.LineCount = len(snap.Items)
	subtotals := make([]money.Cents, 0, len(snap.Items))
	for _, l := range snap.Items {
		snap.TotalQuantity += l.Quantity
		subtotals = append(subtotals, l.Subtotal())
	}
	if w.Total != nil {
		snap.TotalAmount = *w.Total
	} else {
		snap.TotalAmount = money.Sum(subtotals...)
	}
	return snap
}

// line treats a line without availability flags as available, which is what
// the older shape means.
func (wl wireLine) line() domain.CartLine {
	l := domain.CartLine{
		GiftCardID:  wl.GiftCardID,
		Name:        wl.Name,
		Image:       wl.Image,
		Quantity:    wl.Quantity,
		IsAvailable: true,
	}
	switch {
	case wl.UnitPrice != nil:
		l.UnitPrice = *wl.UnitPrice
	case wl.Price != nil:
		l.UnitPrice = *wl.Price
	}
	if wl.IsAvailable != nil {
		l.IsAvailable = *wl.IsAvailable
	}
	if wl.AvailableStock != nil {
		l.AvailableStock = *wl.AvailableStock
	} else {
		l.AvailableStock = l.Quantity
	}
	return l
}

func decodeRemoved(body []byte) int {
	payload, err := unwrap(body)
	if err != nil {
		return 0
	}
	var r struct {
		Removed int `json:"removed"`
	}
	if json.Unmarshal(payload, &r) != nil {
		return 0
	}
	return r.Removed
}
