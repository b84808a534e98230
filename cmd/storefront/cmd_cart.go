package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/cart"
)

// openCart restores the local cart from CART_FILE.
func openCart(ctx context.Context) *cart.Store {
	return cart.New(ctx, cart.NewFilePersister(config.CartFile(), cart.DefaultKey))
}

func quantityArg(args []string, i, fallback int) (int, error) {
	if len(args) <= i {
		return fallback, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a whole number", args[i])
	}
	return n, nil
}

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Manage the local cart stored in CART_FILE",
}

var cartAddCmd = &cobra.Command{
	Use:   "add <itemID> [quantity]",
	Short: "Add a menu item (loads the menu to copy its fields)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := quantityArg(args, 1, 1)
		if err != nil {
			return err
		}
		conns, repo, err := bootMenu()
		if err != nil {
			return err
		}
		defer conns.Reset(context.Background()) //nolint:errcheck

		m, err := repo.Load(cmd.Context(), config.BusinessID())
		if err != nil {
			return err
		}
		item, ok := m.Item(args[0])
		if !ok {
			return fmt.Errorf("item %q is not on the menu", args[0])
		}
		if !item.IsAvailable {
			return fmt.Errorf("item %q is unavailable", args[0])
		}

		s := openCart(cmd.Context())
		if err := s.AddItem(item, qty); err != nil {
			return err
		}
		return printCart(cmd, s)
	},
}

var cartSetCmd = &cobra.Command{
	Use:   "set <itemID> <quantity>",
	Short: "Set a line's quantity (0 removes it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := quantityArg(args, 1, 0)
		if err != nil {
			return err
		}
		s := openCart(cmd.Context())
		s.SetQuantity(args[0], qty)
		return printCart(cmd, s)
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:     "rm <itemID>",
	Aliases: []string{"remove"},
	Short:   "Remove a line",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := openCart(cmd.Context())
		s.RemoveItem(args[0])
		return printCart(cmd, s)
	},
}

var cartListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "Show the cart",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printCart(cmd, openCart(cmd.Context()))
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := openCart(cmd.Context())
		s.Clear()
		return printCart(cmd, s)
	},
}

func printCart(cmd *cobra.Command, s *cart.Store) error {
	out := cmd.OutOrStdout()
	if s.IsEmpty() {
		fmt.Fprintln(out, "Cart is empty.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ITEM\tNAME\tQTY\tPRICE\tSUBTOTAL\t")
	for _, l := range s.Lines() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t\n", l.ItemID, l.Name, l.Quantity, l.Price.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t%d\t\t%s\t\n", s.ItemCount(), s.Total().StringFixed(2))
	return w.Flush()
}

func init() {
	cartCmd.AddCommand(cartAddCmd, cartSetCmd, cartRemoveCmd, cartListCmd, cartClearCmd)
}
