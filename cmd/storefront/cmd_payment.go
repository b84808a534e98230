package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/order"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Payment return helpers",
}

var (
	returnStatus           string
	returnCollectionStatus string
	returnOrder            string
)

// storefront payment classify
var paymentClassifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify the parameters of a payment return redirect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{}
		if returnStatus != "" {
			params.Set("status", returnStatus)
		}
		if returnCollectionStatus != "" {
			params.Set("collection_status", returnCollectionStatus)
		}
		if returnOrder != "" {
			params.Set("external_reference", returnOrder)
		}

		fmt.Fprintln(cmd.OutOrStdout(), order.ClassifyPaymentReturn(params))
		if id := order.ReturnOrderID(params); id != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "order: %s\n", id)
		}
		return nil
	},
}

// storefront payment urls
var paymentURLsCmd = &cobra.Command{
	Use:   "urls <orderID>",
	Short: "Print the return URLs sent to the payment provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u := order.BackURLs(config.PaymentsBackURL(), args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "success: %s\npending: %s\nfailure: %s\n", u.Success, u.Pending, u.Failure)
		return nil
	},
}

func init() {
	f := paymentClassifyCmd.Flags()
	f.StringVar(&returnStatus, "status", "", "status query parameter")
	f.StringVar(&returnCollectionStatus, "collection-status", "", "collection_status query parameter")
	f.StringVar(&returnOrder, "order", "", "external_reference query parameter")

	paymentCmd.AddCommand(paymentClassifyCmd, paymentURLsCmd)
}
