// File: cmd/factory.go

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/IRandonation/AutoTikTokSendComment/internal/activity"
	"github.com/IRandonation/AutoTikTokSendComment/internal/browser"
	"github.com/IRandonation/AutoTikTokSendComment/internal/config"
	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
	"github.com/IRandonation/AutoTikTokSendComment/internal/diagnose"
	"github.com/IRandonation/AutoTikTokSendComment/internal/dom"
	"github.com/IRandonation/AutoTikTokSendComment/internal/observability"
	"github.com/IRandonation/AutoTikTokSendComment/internal/pilot"
	"github.com/IRandonation/AutoTikTokSendComment/internal/scheduler"
	"github.com/IRandonation/AutoTikTokSendComment/internal/store"
)

// Components holds everything a session needs.
// This struct centralizes the lifecycle management of session dependencies.
type Components struct {
	Browser    *browser.Manager
	Page       *browser.Page
	Activity   *activity.Log
	Controller *pilot.Controller
	Journal    *store.Journal
	Store      *store.Store
	DBPool     *pgxpool.Pool
}

// Shutdown gracefully closes all components, ensuring resources are released in the correct order.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Stop the loops first (producers) so no new outcomes are reported.
	if c.Controller != nil {
		c.Controller.Shutdown()
		logger.Debug("Controller stopped.")
	}

	// 2. Drain the journal into the database.
	if c.Journal != nil {
		c.Journal.Close()
		logger.Debug("Journal drained.")
	}

	// 3. Shut down the browser manager.
	if c.Browser != nil {
		// Use a separate context with a timeout for shutdown to ensure it completes
		// even if the main application context was canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.Browser.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser manager shut down.")
		}
	}

	// 4. Close the database connection pool.
	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All session components shut down.")
}

// sessionOptions are the per-command inputs to newComponents.
type sessionOptions struct {
	settings scheduler.Settings
	onStatus func(scheduler.Status)
}

// newComponents opens the browser page and wires the controller around it.
// On error everything created so far is shut down.
func newComponents(ctx context.Context, cfg *config.Config, opts sessionOptions) (_ *Components, err error) {
	logger := observability.GetLogger()
	c := &Components{
		Activity: activity.New(cfg.Activity.MaxEntries, logger),
	}
	defer func() {
		if err != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
			c.Shutdown()
		}
	}()

	// 1. Optional history database.
	if cfg.Postgres.URL != "" {
		pool, st, err := openStore(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		c.DBPool = pool
		c.Store = st
		c.Journal = store.NewJournal(st, logger, 16, 5*time.Second)
		c.Journal.Start(ctx)
		logger.Debug("Delivery journal started.")
	}

	// 2. Browser and page.
	manager, err := browser.NewManager(ctx, cfg.Browser, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	c.Browser = manager

	page, err := manager.OpenPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open live room page: %w", err)
	}
	c.Page = page

	// 3. Page-facing pieces.
	eval := dom.NewEvaluator(page)
	locator := dom.NewLocator(eval, dom.Selectors{
		Input:       cfg.Locator.InputSelectors,
		Button:      cfg.Locator.ButtonSelectors,
		ButtonTexts: cfg.Locator.ButtonTexts,
	}, logger)
	attempter := delivery.NewAttempter(locator, delivery.Timings{
		Clear:    cfg.Delivery.ClearDelay,
		Settle:   cfg.Delivery.SettleDelay,
		Recheck:  cfg.Delivery.RecheckDelay,
		Verify:   cfg.Delivery.VerifyDelay,
		Fallback: cfg.Delivery.FallbackDelay,
	}, logger)

	var presser dom.KeyPresser = dom.NewSyntheticPresser(eval, cfg.Like.TargetSelectors)
	if cfg.Like.Native {
		presser = dom.NewNativePresser(page)
	}

	// 4. Controller.
	var ctrlOpts []pilot.Option
	if opts.onStatus != nil {
		ctrlOpts = append(ctrlOpts, pilot.WithStatusHandler(opts.onStatus))
	}
	if c.Journal != nil {
		ctrlOpts = append(ctrlOpts, pilot.WithRecorder(c.Journal))
	}
	if cfg.Diagnostics.Enabled {
		analyzer := diagnose.New(cfg.Diagnostics.LoginMarkers, cfg.Locator.InputSelectors, cfg.Locator.ButtonSelectors)
		ctrlOpts = append(ctrlOpts, pilot.WithDiagnostics(page, analyzer))
	}

	c.Controller = pilot.New(attempter, presser, c.Activity, logger, pilot.Config{
		Settings:     opts.settings,
		TickInterval: cfg.Scheduler.TickInterval,
		LikeKey:      dom.Key{Key: cfg.Like.Key, Code: cfg.Like.Code, KeyCode: cfg.Like.KeyCode},
		LikeMinDelay: cfg.Like.MinDelay,
		LikeMaxDelay: cfg.Like.MaxDelay,
	}, ctrlOpts...)

	logger.Info("Session components initialized.")
	return c, nil
}

// openStore connects to PostgreSQL and makes sure the deliveries table exists.
func openStore(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*pgxpool.Pool, *store.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	st, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize database store: %w", err)
	}
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Debug("Database connection pool initialized.")
	return pool, st, nil
}
