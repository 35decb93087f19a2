package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addLine struct {
	GiftCardID string `json:"giftCardId" validate:"required,giftcard_id"`
	Quantity   int    `json:"quantity" validate:"gte=1,lte=100"`
	Operation  string `json:"operation,omitempty" validate:"omitempty,oneof=increment decrement"`
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(addLine{GiftCardID: "amazon-25", Quantity: 1}))
	assert.NoError(t, Validate(addLine{GiftCardID: "gc_1.v2", Quantity: 100, Operation: "decrement"}))
}

func TestValidate_FieldNamesUseJSONTags(t *testing.T) {
	err := Validate(addLine{Quantity: 0})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Equal(t, "is required", fields["giftCardId"])
	assert.Equal(t, "must be greater than or equal to 1", fields["quantity"])
}

func TestValidate_GiftCardIDFormat(t *testing.T) {
	err := Validate(addLine{GiftCardID: "bad/id", Quantity: 1})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be a valid gift card id", valErr.Fields()["giftCardId"])
	assert.Contains(t, valErr.Error(), "giftCardId must be a valid gift card id")
}

func TestValidate_OneOf(t *testing.T) {
	err := Validate(addLine{GiftCardID: "gc1", Quantity: 1, Operation: "double"})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be one of: increment decrement", valErr.Fields()["operation"])
}

func TestIsGiftCardID(t *testing.T) {
	assert.True(t, IsGiftCardID("gc1"))
	assert.False(t, IsGiftCardID(""))
	assert.False(t, IsGiftCardID("a b"))
	assert.False(t, IsGiftCardID(strings.Repeat("x", 129)))
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(`{"giftCardId":"gc1","quantity":2}`))
		var dst addLine
		require.NoError(t, DecodeAndValidate(req, &dst))
		assert.Equal(t, 2, dst.Quantity)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(`{`))
		var dst addLine
		err := DecodeAndValidate(req, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode request body")
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(`{"giftCardId":"gc1","quantity":1,"coupon":"x"}`))
		var dst addLine
		assert.Error(t, DecodeAndValidate(req, &dst))
	})

	t.Run("fails validation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(`{"giftCardId":"gc1","quantity":0}`))
		var dst addLine
		var valErr *ValidationError
		assert.ErrorAs(t, DecodeAndValidate(req, &dst), &valErr)
	})
}
