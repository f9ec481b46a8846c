package cli

import (
	"github.com/spf13/cobra"

	"maker-fill-validator/internal/app"
)

var (
	checkQuotesPath string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Compute fillable amounts for a JSON file of quotes",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.CheckOptions{
			QuotesPath: checkQuotesPath,
		}
		return getApp().Check(cmd.Context(), opts)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkQuotesPath, "quotes", "", "Path to a JSON array of quotes")
}
