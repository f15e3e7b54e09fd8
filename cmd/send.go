package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
)

func newSendCmd() *cobra.Command {
	var startURL string

	sendCmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message to the live room and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Get()
			if startURL != "" {
				cfg.Browser.StartURL = startURL
			}

			comps, err := newComponents(ctx, cfg, sessionOptions{})
			if err != nil {
				return err
			}
			defer comps.Shutdown()

			outcome, err := comps.Controller.SendNow(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !outcome.Succeeded {
				return fmt.Errorf("message not sent: %s", outcome.Reason)
			}
			via := "send button"
			if outcome.UsedFallback {
				via = "Enter key"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %q via %s in %s\n", outcome.Message, via, outcome.Finished.Sub(outcome.Started).Round(time.Millisecond))
			return nil
		},
	}
	sendCmd.Flags().StringVar(&startURL, "url", "", "live room URL to open (overrides browser.start_url)")
	return sendCmd
}
