package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price <product...>",
	Short: "Check live prices for a product and print the report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject := strings.TrimSpace(strings.Join(args, " "))
		if subject == "" {
			return eris.New("price: product is required")
		}

		env, err := initApp(cmd.Context(), "price")
		if err != nil {
			return err
		}
		defer env.Close()

		report := env.Prices.Lookup(cmd.Context(), subject)
		fmt.Fprintln(cmd.OutOrStdout(), report.Text())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(priceCmd)
}
