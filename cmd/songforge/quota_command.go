package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"songforge/internal/ledger"
	"songforge/internal/plan"
	"songforge/internal/storage"
)

func newQuotaCommand(cmdCtx *commandContext) *cobra.Command {
	var userID string
	var planName string

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show a user's remaining daily tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			p, ok := plan.Parse(planName)
			if !ok {
				return fmt.Errorf("unknown plan %q", planName)
			}

			db, err := storage.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			balance, err := ledger.NewStore(db).CurrentBalance(cmd.Context(), userID, p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if balance.Unlimited {
				fmt.Fprintf(out, "%s (%s): unlimited generations\n", userID, p.DisplayName())
				return nil
			}
			fmt.Fprintf(out, "%s (%s): %d of %d tokens remaining today\n",
				userID, p.DisplayName(), balance.Remaining, balance.Quota)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
	cmd.Flags().StringVarP(&planName, "plan", "p", "basic", "Subscription plan (basic, pro, proplus)")
	return cmd
}
