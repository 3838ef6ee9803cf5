package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"videotext/internal/batch"
)

func newPointsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Show the account's points balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}
			points, err := batch.NewRemoteClient(cfg).UserInfo(cmd.Context(), batch.Credentials(cfg))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]float64{
					"balance":         points.Balance,
					"recent_deducted": points.RecentDeducted,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balance: %.2f\n", points.Balance)
			fmt.Fprintf(out, "Recently deducted: %.2f\n", points.RecentDeducted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the balance as JSON")
	return cmd
}
