// Package view renders cart state as text for the CLI.
package view

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/utafrali/giftcart/services/storefront/internal/cartstate"
	"github.com/utafrali/giftcart/services/storefront/internal/domain"
)

// Mode is the distinguishable situation a cart screen is in.
type Mode int

const (
	ModeEmpty Mode = iota
	ModeLoading
	ModeError
	ModePopulated
	ModePartiallyUnavailable
)

func (m Mode) String() string {
	switch m {
	case ModeEmpty:
		return "empty"
	case ModeLoading:
		return "loading"
	case ModeError:
		return "error"
	case ModePopulated:
		return "populated"
	case ModePartiallyUnavailable:
		return "partially_unavailable"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ModeOf picks the mode for st. Loading wins over an error, an error over the
// cart contents.
func ModeOf(st cartstate.State) Mode {
	switch {
	case st.Loading:
		return ModeLoading
	case st.Error != nil:
		return ModeError
	case st.Cart.IsEmpty():
		return ModeEmpty
	case len(st.Cart.UnavailableItems) > 0:
		return ModePartiallyUnavailable
	default:
		return ModePopulated
	}
}

// RetryHint is printed under an error; the CLI sets it to its fetch command.
var RetryHint = "giftcart cart show"

// Render writes st to w.
func Render(w io.Writer, st cartstate.State) error {
	switch ModeOf(st) {
	case ModeLoading:
		_, err := fmt.Fprintln(w, "Loading cart...")
		return err
	case ModeError:
		_, err := fmt.Fprintf(w, "Error: %s\nRetry with: %s\n", st.Error.Message, RetryHint)
		return err
	case ModeEmpty:
		_, err := fmt.Fprintln(w, "Your cart is empty.")
		return err
	}
	return renderCart(w, st.Cart)
}

func renderCart(w io.Writer, cart domain.CartSnapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if len(cart.Items) > 0 {
		fmt.Fprintln(tw, "GIFT CARD\tNAME\tPRICE\tQTY\tSUBTOTAL")
		for _, l := range cart.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				l.GiftCardID, l.Name, l.UnitPrice.Display(cart.Currency), l.Quantity, l.Subtotal().Display(cart.Currency))
		}
	}

	if len(cart.UnavailableItems) > 0 {
		if len(cart.Items) > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintln(tw, "UNAVAILABLE\tNAME\tPRICE\tQTY\tIN STOCK")
		for _, l := range cart.UnavailableItems {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
				l.GiftCardID, l.Name, l.UnitPrice.Display(cart.Currency), l.Quantity, l.AvailableStock)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nTotal: %s (%s, %s)\n",
		cart.TotalAmount.Display(cart.Currency),
		plural(cart.LineCount, "line"),
		plural(cart.TotalQuantity, "card"),
	)
	if err != nil {
		return err
	}
	if n := len(cart.UnavailableItems); n > 0 {
		_, err = fmt.Fprintf(w, "%s not included in the total. Remove them or run cleanup.\n", plural(n, "unavailable line"))
	}
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
