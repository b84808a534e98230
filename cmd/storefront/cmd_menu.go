package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/database/seeders"
	"github.com/shashiranjanraj/storefront/pkg/backend"
	"github.com/shashiranjanraj/storefront/pkg/menu"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

// bootMenu connects the backend and returns a repository over it. Callers
// reset the manager when done.
func bootMenu() (*backend.Manager, *menu.Repository, error) {
	if config.BusinessID() == "" {
		return nil, nil, errors.New("BUSINESS_ID is not set (or pass --business)")
	}
	conns := backend.NewManager(backend.DefaultDialer{})
	repo := menu.NewRepository(conns, backend.ConfigFromEnv(), menu.PolicyFromEnv())
	return conns, repo, nil
}

var menuJSON bool

// storefront menu
var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Load the menu once and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		conns, repo, err := bootMenu()
		if err != nil {
			return err
		}
		defer conns.Reset(context.Background()) //nolint:errcheck

		m, err := repo.Load(cmd.Context(), config.BusinessID())
		if err != nil {
			return fmt.Errorf("%s (%w)", menu.Message(err), err)
		}
		if menuJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		}
		printMenu(cmd.OutOrStdout(), m)
		return nil
	},
}

func printMenu(w io.Writer, m menu.Menu) {
	fmt.Fprintf(w, "%s (%s)\n", m.Business.Name, m.Business.BusinessType)
	for _, c := range m.Categories {
		fmt.Fprintf(w, "\n%s\n", c.Name)
		for _, it := range c.Items {
			flags := ""
			if it.IsFeatured {
				flags += " ★"
			}
			if !it.IsAvailable {
				flags += " (unavailable)"
			}
			fmt.Fprintf(w, "  %-12s %-28s %8s%s\n", it.ID, it.Name, it.Price.StringFixed(2), flags)
		}
	}
}

// storefront seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the demo business and menu, and upload placeholder images",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.BusinessID() == "" {
			return errors.New("BUSINESS_ID is not set (or pass --business)")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		conns := backend.NewManager(backend.DefaultDialer{})
		defer conns.Reset(context.Background()) //nolint:errcheck
		h, err := conns.Initialize(ctx, backend.ConfigFromEnv())
		if err != nil {
			return err
		}
		disk, err := storage.FromConfig(ctx).Default()
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Running seeders…")
		if err := seeders.RunAll(ctx, seeders.Target{DB: h.DB, Disk: disk, BusinessID: config.BusinessID()}, cmd.OutOrStdout()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Seeding complete")
		return nil
	},
}

func init() {
	menuCmd.Flags().BoolVar(&menuJSON, "json", false, "print the menu as JSON")
}
