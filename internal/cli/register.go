package cli

import (
	"github.com/spf13/cobra"

	"maker-fill-validator/internal/app"
)

var (
	registerToken  string
	registerMakers []string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Seed (token, maker) pairs into the cache for sampling",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RegisterOptions{
			Token:  registerToken,
			Makers: registerMakers,
		}
		return getApp().Register(cmd.Context(), opts)
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerToken, "token", "", "Token contract address")
	registerCmd.Flags().StringSliceVar(&registerMakers, "maker", nil, "Maker address (repeatable)")
}
