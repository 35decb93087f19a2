package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/giftcart/pkg/auth"
	"github.com/utafrali/giftcart/pkg/money"
	"github.com/utafrali/giftcart/pkg/validator"
	"github.com/utafrali/giftcart/services/storefront/internal/cartclient"
	"github.com/utafrali/giftcart/services/storefront/internal/cartstate"
	"github.com/utafrali/giftcart/services/storefront/internal/view"
)

// NewRootCommand returns the giftcart command tree.
func NewRootCommand(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "giftcart",
		Short:         "Gift card storefront: manage your cart from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(env.Out)
	root.SetErr(env.ErrOut)

	root.AddCommand(
		newLoginCommand(env),
		newLogoutCommand(env),
		newCartCommand(env),
	)
	return root
}

func newLoginCommand(env *Env) *cobra.Command {
	var (
		token     string
		devSecret string
		userID    string
		role      string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token for the cart API",
		Long: "Store a bearer token for the cart API. Pass a token issued by the " +
			"account service with --token, or mint one for a local cart service " +
			"with --dev-secret and --user.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			switch {
			case token != "" && devSecret != "":
				return errors.New("use either --token or --dev-secret")
			case devSecret != "":
				if userID == "" {
					return errors.New("--user is required with --dev-secret")
				}
				minted, err := auth.NewJWTManager(devSecret, 24*time.Hour).GenerateAccessToken(userID, "", role)
				if err != nil {
					return err
				}
				token = minted
			case token == "":
				return errors.New("--token or --dev-secret is required")
			}

			sess, err := env.openSession(ctx)
			if err != nil {
				return err
			}
			if err := sess.Login(ctx, token); err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "Logged in as %s.\n", sess.UserID())
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&devSecret, "dev-secret", "", "JWT secret of a development cart service")
	cmd.Flags().StringVar(&userID, "user", "", "user id for a minted token")
	cmd.Flags().StringVar(&role, "role", auth.RoleCustomer, "role for a minted token")
	return cmd
}

func newLogoutCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := env.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(env.Out, "Logged out.")
			return nil
		},
	}
}

// cartAction runs one store operation and prints the resulting state. A failed
// operation still prints, so the error and the retry hint are shown.
func cartAction(env *Env, op func(ctx context.Context, s *cartstate.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		sess, err := env.openSession(ctx)
		if err != nil {
			return err
		}
		store := env.cartStore(sess)
		defer store.Close()

		opErr := op(ctx, store)
		if err := view.Render(env.Out, store.State()); err != nil {
			return err
		}
		return opErr
	}
}

func giftCardArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if !validator.IsGiftCardID(args[0]) {
		return fmt.Errorf("%q is not a gift card id", args[0])
	}
	return nil
}

func newCartCommand(env *Env) *cobra.Command {
	cart := &cobra.Command{
		Use:   "cart",
		Short: "Show and change your cart",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: cartAction(env, func(ctx context.Context, s *cartstate.Store) error {
			return s.Fetch(ctx)
		}),
	}

	var addPrice string
	var addQty int
	add := &cobra.Command{
		Use:   "add <gift-card-id>",
		Short: "Add a gift card; an existing line is merged",
		Args:  giftCardArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := money.Parse(addPrice)
			if err != nil {
				return err
			}
			return cartAction(env, func(ctx context.Context, s *cartstate.Store) error {
				return s.Add(ctx, cartclient.AddRequest{GiftCardID: args[0], Price: price, Quantity: addQty})
			})(cmd, args)
		},
	}
	add.Flags().StringVar(&addPrice, "price", "", "denomination, e.g. 25 or 29.97")
	add.Flags().IntVar(&addQty, "qty", 1, "quantity")
	_ = add.MarkFlagRequired("price")

	remove := &cobra.Command{
		Use:     "remove <gift-card-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a line",
		Args:    giftCardArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cartAction(env, func(ctx context.Context, s *cartstate.Store) error {
				return s.Remove(ctx, args[0])
			})(cmd, args)
		},
	}

	inc := &cobra.Command{
		Use:   "inc <gift-card-id>",
		Short: "Increase a line's quantity by one",
		Args:  giftCardArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cartAction(env, func(ctx context.Context, s *cartstate.Store) error {
				return s.Increment(ctx, args[0])
			})(cmd, args)
		},
	}

	dec := &cobra.Command{
		Use:   "dec <gift-card-id>",
		Short: "Decrease a line's quantity by one; the last unit removes the line",
		Args:  giftCardArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cartAction(env, func(ctx context.Context, s *cartstate.Store) error {
				return s.Decrement(ctx, args[0])
			})(cmd, args)
		},
	}

	var updQty int
	var updPrice string
	update := &cobra.Command{
		Use:   "update <gift-card-id>",
		Short: "Set a line's quantity or denomination",
		Args:  giftCardArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req cartclient.UpdateRequest
			if cmd.Flags().Changed("qty") {
				req.Quantity = &updQty
			}
			if cmd.Flags().Changed("price") {
				price, err := money.Parse(updPrice)
				if err != nil {
					return err
				}
				req.Price = &price
			}
			if req.Quantity == nil && req.Price == nil {
				return errors.New("--qty or --price is required")
			}
			return cartAction(env, func(ctx context.Context, s *cartstate.Store) error {
				return s.Update(ctx, args[0], req)
			})(cmd, args)
		},
	}
	update.Flags().IntVar(&updQty, "qty", 0, "new quantity; 0 removes the line")
	update.Flags().StringVar(&updPrice, "price", "", "new denomination")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: cartAction(env, func(ctx context.Context, s *cartstate.Store) error {
			return s.Clear(ctx)
		}),
	}

	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop lines whose gift card offer has expired",
		Args:  cobra.NoArgs,
		RunE: cartAction(env, func(ctx context.Context, s *cartstate.Store) error {
			removed, err := s.CleanupExpired(ctx)
			if err == nil {
				fmt.Fprintf(env.Out, "Removed %d expired line(s).\n", removed)
			}
			return err
		}),
	}

	cart.AddCommand(show, add, remove, inc, dec, update, clearCmd, cleanup)
	return cart
}
