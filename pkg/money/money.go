// Package money holds amounts as integer minor units (cents). Decimal values
// only exist at the edges: JSON bodies and rendered text.
package money

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// minorDigits is the number of fractional digits of every supported currency.
const minorDigits = 2

// Cents is an amount in minor units.
type Cents int64

// FromDecimal converts d to minor units, rounding half away from zero.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Round(minorDigits).Shift(minorDigits).IntPart())
}

// Parse reads a decimal string such as "25", "25.5" or "25.50".
func Parse(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for constants in tests and fixtures.
func MustParse(s string) Cents {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -minorDigits)
}

// Mul multiplies a unit price by a quantity.
func (c Cents) Mul(quantity int) Cents {
	return c * Cents(quantity)
}

// IsNegative reports whether c is below zero.
func (c Cents) IsNegative() bool {
	return c < 0
}

// String renders the amount with exactly two fractional digits.
func (c Cents) String() string {
	return c.Decimal().StringFixed(minorDigits)
}

// Display renders the amount prefixed by a currency code, e.g. "USD 25.00".
func (c Cents) Display(currency string) string {
	if currency == "" {
		return c.String()
	}
	return currency + " " + c.String()
}

// MarshalJSON writes the amount as a plain JSON number in major units.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (c *Cents) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode amount: %w", err)
	}
	*c = FromDecimal(d)
	return nil
}

// Sum adds up amounts.
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}
