package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
)

func newLikeCmd() *cobra.Command {
	var (
		count    int
		startURL string
	)

	likeCmd := &cobra.Command{
		Use:   "like",
		Short: "Press the like key a number of times, or until interrupted with --count 0",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative, got %d", count)
			}
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

			if err := comps.Controller.StartLiking(ctx, count); err != nil {
				return err
			}
			presses := comps.Controller.WaitLiking()
			fmt.Fprintf(cmd.OutOrStdout(), "Pressed %q %d times\n", cfg.Like.Key, presses)
			return nil
		},
	}
	likeCmd.Flags().IntVarP(&count, "count", "n", 10, "number of presses; 0 keeps going until Ctrl+C")
	likeCmd.Flags().StringVar(&startURL, "url", "", "live room URL to open (overrides browser.start_url)")
	return likeCmd
}
