package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDecimal_Rounding(t *testing.T) {
	tests := []struct {
		in   string
		want Cents
	}{
		{"25", 2500},
		{"25.5", 2550},
		{"0.1", 10},
		{"19.995", 2000},
		{"19.994", 1999},
		{"-0.005", -1},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FromDecimal(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("twenty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse amount")
}

func TestString(t *testing.T) {
	assert.Equal(t, "25.00", Cents(2500).String())
	assert.Equal(t, "0.05", Cents(5).String())
	assert.Equal(t, "USD 50.00", Cents(5000).Display("USD"))
	assert.Equal(t, "50.00", Cents(5000).Display(""))
}

func TestMulAndSum(t *testing.T) {
	price := MustParse("0.10")
	// Ten dimes are exactly one unit; float addition would drift here.
	assert.Equal(t, Cents(100), price.Mul(10))
	assert.Equal(t, Cents(7500), Sum(2500, 5000))
	assert.Zero(t, Sum())
}

func TestJSON(t *testing.T) {
	type line struct {
		Price Cents `json:"price"`
	}

	out, err := json.Marshal(line{Price: 2550})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":25.50}`, string(out))

	var fromNumber line
	require.NoError(t, json.Unmarshal([]byte(`{"price":25.5}`), &fromNumber))
	assert.Equal(t, Cents(2550), fromNumber.Price)

	var fromString line
	require.NoError(t, json.Unmarshal([]byte(`{"price":"10.25"}`), &fromString))
	assert.Equal(t, Cents(1025), fromString.Price)

	var fromNull line
	require.NoError(t, json.Unmarshal([]byte(`{"price":null}`), &fromNull))
	assert.Zero(t, fromNull.Price)

	var bad line
	assert.Error(t, json.Unmarshal([]byte(`{"price":"abc"}`), &bad))
}

func TestIsNegative(t *testing.T) {
	assert.True(t, Cents(-1).IsNegative())
	assert.False(t, Cents(0).IsNegative())
}
