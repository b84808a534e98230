// Command storefront runs the restaurant storefront and its operator tools.
//
//	storefront serve                  # HTTP API, GraphQL and live menu updates
//	storefront menu                   # load the menu once and print it
//	storefront seed                   # write the demo business and menu
//	storefront routes                 # list named routes
//	storefront cart add burger 2      # local cart in CART_FILE
//	storefront payment classify --collection-status approved
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var businessFlag string

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Restaurant storefront: menu, cart and checkout",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		if businessFlag != "" {
			config.Set("BUSINESS_ID", businessFlag)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&businessFlag, "business", "", "business id (overrides BUSINESS_ID)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(cartCmd)
	rootCmd.AddCommand(paymentCmd)
}
