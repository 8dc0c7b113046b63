package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"songforge/internal/session"
	"songforge/internal/storage"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's completed and abandoned sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			db, err := storage.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			sessions, err := session.NewStore(db).ListTerminalForUser(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintf(out, "No completed sessions for %s\n", userID)
				return nil
			}

			rows := make([][]string, 0, len(sessions))
			for _, sess := range sessions {
				artifact := "-"
				if sess.Artifact != nil {
					artifact = sess.Artifact.URL
				}
				rows = append(rows, []string{
					sess.UpdatedAt.UTC().Format("2006-01-02 15:04"),
					sess.Intake.Title,
					sess.Intake.Genre,
					string(sess.Status),
					string(sess.SelectedKey),
					strconv.Itoa(sess.SelectedBPM),
					strconv.Itoa(sess.TokensCharged),
					artifact,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Updated", "Title", "Genre", "Status", "Key", "BPM", "Tokens", "Artifact"},
				rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
	return cmd
}
