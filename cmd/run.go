package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IRandonation/AutoTikTokSendComment/internal/activity"
	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
	"github.com/IRandonation/AutoTikTokSendComment/internal/observability"
	"github.com/IRandonation/AutoTikTokSendComment/internal/scheduler"
	"github.com/IRandonation/AutoTikTokSendComment/internal/status"
)

// errDeclined is returned when the operator answers no to a confirmation.
var errDeclined = errors.New("cancelled by operator")

func addSenderFlags(cmd *cobra.Command, f *senderFlags) {
	cmd.Flags().Float64Var(&f.minInterval, "min", 0, "minimum seconds between sends (overrides sender.min_interval)")
	cmd.Flags().Float64Var(&f.maxInterval, "max", 0, "maximum seconds between sends (overrides sender.max_interval)")
	cmd.Flags().StringArrayVarP(&f.messages, "message", "m", nil, "message to send; repeat for several")
	cmd.Flags().StringVar(&f.messagesFile, "messages-file", "", "file with one message per line")
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "named message list from the presets file")
	cmd.Flags().BoolVar(&f.random, "random", false, "pick messages in shuffled order")
	cmd.Flags().BoolVar(&f.sequential, "sequential", false, "send messages in list order")
	cmd.Flags().BoolVarP(&f.assumeYes, "yes", "y", false, "do not ask for confirmation")
	cmd.MarkFlagsMutuallyExclusive("random", "sequential")
}

func newRunCmd() *cobra.Command {
	var (
		flags     senderFlags
		startURL  string
		withLikes bool
		plain     bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Open the live room and send messages on a timer",
		Long: `Opens Chrome on the live room (or the newest matching tab), then posts the
configured messages at a random interval between --min and --max seconds.
Press s to pause or resume, l to toggle liking, n to send one message now.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := config.Get()
			if startURL != "" {
				cfg.Browser.StartURL = startURL
			}

			settings, source, err := buildSettings(cfg.Sender, flags)
			if err != nil {
				return err
			}
			if !flags.assumeYes && !confirmLongLine(settings.Messages, cfg.Sender.ConfirmLongLine, os.Stdin, cmd.OutOrStdout()) {
				return errDeclined
			}
			logger.Info("Messages loaded", zap.String("source", source), zap.Int("count", len(settings.Messages)))

			if plain {
				return runPlain(ctx, cfg, settings, withLikes)
			}
			return runInteractive(ctx, cfg, settings, withLikes)
		},
	}

	addSenderFlags(runCmd, &flags)
	runCmd.Flags().StringVar(&startURL, "url", "", "live room URL to open (overrides browser.start_url)")
	runCmd.Flags().BoolVar(&withLikes, "like", false, "start the like loop right away")
	runCmd.Flags().BoolVar(&plain, "plain", false, "log to the terminal instead of showing the status view")
	return runCmd
}

// runPlain starts the loops and logs until the context is cancelled.
func runPlain(ctx context.Context, cfg *config.Config, settings scheduler.Settings, withLikes bool) error {
	logger := observability.GetLogger()
	comps, err := newComponents(ctx, cfg, sessionOptions{
		settings: settings,
		onStatus: func(st scheduler.Status) {
			if st.Phase == scheduler.PhaseCountingDown && st.Remaining == st.Interval {
				logger.Info("Next send scheduled",
					zap.String("in", status.Countdown(st.Interval)),
					zap.String("next", st.Next))
			}
		},
	})
	if err != nil {
		return err
	}
	defer comps.Shutdown()

	if err := comps.Controller.StartSending(ctx); err != nil {
		return err
	}
	if withLikes {
		if err := comps.Controller.StartLiking(ctx, 0); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("Interrupt received, stopping.")
	return nil
}

// runInteractive runs the status view next to the loops. The view and the
// signal context are supervised together: either one ending stops both.
func runInteractive(ctx context.Context, cfg *config.Config, settings scheduler.Settings, withLikes bool) error {
	var program atomic.Pointer[tea.Program]
	send := func(msg tea.Msg) {
		if p := program.Load(); p != nil {
			p.Send(msg)
		}
	}

	comps, err := newComponents(ctx, cfg, sessionOptions{
		settings: settings,
		onStatus: func(st scheduler.Status) { send(status.StatusMsg(st)) },
	})
	if err != nil {
		return err
	}
	defer comps.Shutdown()

	comps.Activity.OnAppend(func(e activity.Entry) { send(status.LogMsg(e)) })

	g, gctx := errgroup.WithContext(ctx)
	model := status.New(gctx, comps.Controller, comps.Activity)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
	program.Store(p)

	restore := observability.MuteConsole()
	defer restore()

	if err := comps.Controller.StartSending(gctx); err != nil {
		comps.Activity.Warn("Not started: %v", err)
	}
	if withLikes {
		if err := comps.Controller.StartLiking(gctx, 0); err != nil {
			comps.Activity.Warn("Like loop not started: %v", err)
		}
	}

	quit := make(chan struct{})
	g.Go(func() error {
		defer close(quit)
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("status view failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			p.Quit()
		case <-quit:
		}
		return nil
	})
	return g.Wait()
}
