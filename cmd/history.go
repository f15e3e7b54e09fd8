package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
	"github.com/IRandonation/AutoTikTokSendComment/internal/observability"
	"github.com/IRandonation/AutoTikTokSendComment/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent delivery attempts from the history database",
		Long:  `Lists the newest delivery attempts journaled to PostgreSQL. Requires postgres.url (or AUTOSEND_POSTGRES_URL).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Get()
			if cfg.Postgres.URL == "" {
				return errors.New("postgres.url is not configured (hint: set AUTOSEND_POSTGRES_URL)")
			}

			pool, st, err := openStore(ctx, cfg.Postgres, observability.GetLogger())
			if err != nil {
				return err
			}
			defer pool.Close()

			records, err := st.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No deliveries recorded yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), historyTable(records))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows to show")
	return historyCmd
}

func historyTable(records []store.DeliveryRecord) string {
	t := table.New().Headers("TIME", "RESULT", "MESSAGE", "REASON")
	for _, r := range records {
		result := "sent"
		switch {
		case r.Succeeded && r.UsedFallback:
			result = "sent (enter)"
		case !r.Succeeded:
			result = "failed"
		}
		t.Row(r.AttemptedAt.Local().Format("2006-01-02 15:04:05"), result, r.Message, r.Reason)
	}
	return t.Render()
}
