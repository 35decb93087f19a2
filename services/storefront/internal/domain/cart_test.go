package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/giftcart/pkg/money"
)

func TestCartLine_Subtotal(t *testing.T) {
	l := CartLine{UnitPrice: money.MustParse("12.50"), Quantity: 3}
	assert.Equal(t, money.MustParse("37.50"), l.Subtotal())
}

func TestEmptySnapshot(t *testing.T) {
	s := EmptySnapshot()

	assert.True(t, s.IsEmpty())
	assert.NotNil(t, s.Items)
	assert.NotNil(t, s.UnavailableItems)
	assert.Zero(t, s.LineCount)
	assert.Zero(t, s.TotalQuantity)
}

func TestCartSnapshot_Find(t *testing.T) {
	s := CartSnapshot{
		Items:            []CartLine{{GiftCardID: "gc1", Quantity: 1, IsAvailable: true}},
		UnavailableItems: []CartLine{{GiftCardID: "gc2", Quantity: 4}},
	}

	l, ok := s.Find("gc2")
	assert.True(t, ok)
	assert.Equal(t, 4, l.Quantity)

	_, ok = s.Find("gc3")
	assert.False(t, ok)
	assert.False(t, s.IsEmpty())
}

func TestCartSnapshot_CloneIsIndependent(t *testing.T) {
	s := CartSnapshot{Items: []CartLine{{GiftCardID: "gc1", Quantity: 1}}}

	c := s.Clone()
	c.Items[0].Quantity = 9

	assert.Equal(t, 1, s.Items[0].Quantity)
	assert.NotNil(t, c.UnavailableItems)
}
