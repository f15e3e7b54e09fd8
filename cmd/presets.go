package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
	"github.com/IRandonation/AutoTikTokSendComment/internal/presets"
)

func newPresetsCmd() *cobra.Command {
	var show string

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "List the named message lists in the presets file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			set, err := presets.Load(cfg.Sender.PresetsFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if show != "" {
				msgs, err := set.Get(show)
				if err != nil {
					return err
				}
				for _, m := range msgs {
					fmt.Fprintln(out, m)
				}
				return nil
			}

			names := set.Names()
			if len(names) == 0 {
				fmt.Fprintf(out, "No presets in %s\n", cfg.Sender.PresetsFile)
				return nil
			}
			t := table.New().Headers("PRESET", "MESSAGES", "FIRST")
			for _, name := range names {
				first := ""
				if msgs := set[name]; len(msgs) > 0 {
					first = msgs[0]
				}
				t.Row(name, strconv.Itoa(len(set[name])), first)
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
	presetsCmd.Flags().StringVar(&show, "show", "", "print the messages of one preset")
	return presetsCmd
}
