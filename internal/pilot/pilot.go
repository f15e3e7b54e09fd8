// Package pilot owns the run state of a session: the send loop, the like
// loop, and everything that reacts to their outcomes.
package pilot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IRandonation/AutoTikTokSendComment/internal/activity"
	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
	"github.com/IRandonation/AutoTikTokSendComment/internal/diagnose"
	"github.com/IRandonation/AutoTikTokSendComment/internal/dom"
	"github.com/IRandonation/AutoTikTokSendComment/internal/like"
	"github.com/IRandonation/AutoTikTokSendComment/internal/scheduler"
	"github.com/IRandonation/AutoTikTokSendComment/internal/store"
)

// ErrEmptyMessage is returned by SendNow for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// RunState is the pair of flags shown to the operator.
type RunState struct {
	Running bool
	Liking  bool
}

// Recorder accepts delivery records for persistence.
type Recorder interface {
	Submit(r store.DeliveryRecord) bool
}

// Snapshotter returns the current page markup.
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
}

// Config is the fixed part of a session.
type Config struct {
	Settings     scheduler.Settings
	TickInterval time.Duration
	LikeKey      dom.Key
	LikeMinDelay time.Duration
	LikeMaxDelay time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder journals every reported outcome.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithDiagnostics analyses a page snapshot the first time the chat input goes
// missing after a success.
func WithDiagnostics(snap Snapshotter, analyzer *diagnose.Analyzer) Option {
	return func(c *Controller) {
		c.snapshot = snap
		c.analyzer = analyzer
	}
}

// WithStatusHandler forwards scheduler status updates.
func WithStatusHandler(fn func(scheduler.Status)) Option {
	return func(c *Controller) { c.onStatus = fn }
}

// WithSchedulerOptions passes extra options to the scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(c *Controller) { c.schedOpts = append(c.schedOpts, opts...) }
}

// WithLikeOptions passes extra options to the like loop.
func WithLikeOptions(opts ...like.Option) Option {
	return func(c *Controller) { c.likeOpts = append(c.likeOpts, opts...) }
}

// serialDeliverer lets one attempt at a time touch the page. The loop and
// manual sends share it.
type serialDeliverer struct {
	next scheduler.Deliverer
	slot chan struct{}
}

func newSerialDeliverer(next scheduler.Deliverer) *serialDeliverer {
	return &serialDeliverer{next: next, slot: make(chan struct{}, 1)}
}

func (d *serialDeliverer) Deliver(ctx context.Context, message string) delivery.Outcome {
	if err := ctx.Err(); err != nil {
		return delivery.Outcome{Message: message, Reason: err.Error(), Err: err}
	}
	select {
	case d.slot <- struct{}{}:
	case <-ctx.Done():
		return delivery.Outcome{Message: message, Reason: ctx.Err().Error(), Err: ctx.Err()}
	}
	defer func() { <-d.slot }()
	return d.next.Deliver(ctx, message)
}

// Controller drives one browser page.
type Controller struct {
	logger    *zap.Logger
	log       *activity.Log
	deliverer scheduler.Deliverer
	settings  scheduler.Settings

	sched *scheduler.Scheduler
	likes *like.Loop

	recorder  Recorder
	snapshot  Snapshotter
	analyzer  *diagnose.Analyzer
	onStatus  func(scheduler.Status)
	schedOpts []scheduler.Option
	likeOpts  []like.Option

	mu        sync.Mutex
	runID     string
	baseCtx   context.Context
	diagnosed bool
}

// New wires a Controller around deliverer and presser.
func New(deliverer scheduler.Deliverer, presser dom.KeyPresser, log *activity.Log, logger *zap.Logger, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		logger:    logger.Named("pilot"),
		log:       log,
		deliverer: newSerialDeliverer(deliverer),
		settings:  cfg.Settings,
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}

	schedOpts := append([]scheduler.Option{
		scheduler.WithTickInterval(cfg.TickInterval),
		scheduler.WithOutcomeHandler(func(o delivery.Outcome) { c.handleOutcome(c.currentRunID(), o) }),
		scheduler.WithStatusHandler(c.handleStatus),
	}, c.schedOpts...)
	c.sched = scheduler.New(c.deliverer, logger, schedOpts...)

	likeOpts := append([]like.Option{
		like.WithFinishHandler(func(n int) { c.log.Info("Like loop stopped after %d presses", n) }),
	}, c.likeOpts...)
	c.likes = like.New(presser, cfg.LikeKey, cfg.LikeMinDelay, cfg.LikeMaxDelay, logger, likeOpts...)
	return c
}

// Settings returns the message settings used by StartSending.
func (c *Controller) Settings() scheduler.Settings { return c.settings }

// StartSending begins the send loop with the session settings.
func (c *Controller) StartSending(ctx context.Context) error {
	if len(c.settings.Messages) == 0 {
		c.log.Warn("No messages configured, enter at least one message")
		return scheduler.ErrNoMessages
	}

	runID := uuid.NewString()
	c.mu.Lock()
	c.runID = runID
	c.baseCtx = ctx
	c.diagnosed = false
	c.mu.Unlock()

	if err := c.sched.Start(ctx, c.settings); err != nil {
		return err
	}
	c.logger.Info("Sending started", zap.String("run_id", runID))
	c.log.Info("Auto send started: %d messages, every %.1f-%.1f s", len(c.settings.Messages), c.settings.MinInterval, c.settings.MaxInterval)
	return nil
}

// StopSending stops the send loop. Safe when idle.
func (c *Controller) StopSending() {
	if !c.sched.Running() {
		return
	}
	c.sched.Stop()
	c.log.Info("Auto send stopped")
}

// ToggleSending flips the send loop and reports whether it now runs.
func (c *Controller) ToggleSending(ctx context.Context) (bool, error) {
	if c.sched.Running() {
		c.StopSending()
		return false, nil
	}
	if err := c.StartSending(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// StartLiking starts the like loop; count > 0 makes it a burst.
func (c *Controller) StartLiking(ctx context.Context, count int) error {
	if err := c.likes.Start(ctx, count); err != nil {
		return err
	}
	if count > 0 {
		c.log.Info("Quick like: %d presses", count)
	} else {
		c.log.Info("Auto like started")
	}
	return nil
}

// StopLiking stops the like loop. Safe when idle.
func (c *Controller) StopLiking() {
	if !c.likes.Active() {
		return
	}
	c.likes.Stop()
}

// ToggleLiking flips the like loop and reports whether it now runs.
func (c *Controller) ToggleLiking(ctx context.Context) (bool, error) {
	if c.likes.Active() {
		c.StopLiking()
		return false, nil
	}
	if err := c.StartLiking(ctx, 0); err != nil {
		return false, err
	}
	return true, nil
}

// WaitLiking blocks until the like loop exits and returns its press count.
func (c *Controller) WaitLiking() int {
	c.likes.Wait()
	return c.likes.Presses()
}

// SendNow delivers one message immediately, outside the loop. It waits for an
// in-flight loop attempt to finish first.
func (c *Controller) SendNow(ctx context.Context, message string) (delivery.Outcome, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		c.log.Warn("Nothing to send")
		return delivery.Outcome{}, ErrEmptyMessage
	}
	c.mu.Lock()
	if c.runID == "" {
		c.baseCtx = ctx
	}
	c.mu.Unlock()

	outcome := c.deliverer.Deliver(ctx, message)
	if ctx.Err() != nil {
		return outcome, ctx.Err()
	}
	c.handleOutcome("manual", outcome)
	return outcome, nil
}

// State reports the current flags.
func (c *Controller) State() RunState {
	return RunState{Running: c.sched.Running(), Liking: c.likes.Active()}
}

// Shutdown stops both loops and waits for them to exit.
func (c *Controller) Shutdown() {
	c.sched.Stop()
	c.likes.Stop()
	c.sched.Wait()
	c.likes.Wait()
	c.logger.Debug("Controller shut down")
}

func (c *Controller) currentRunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

func (c *Controller) handleStatus(st scheduler.Status) {
	if c.onStatus != nil {
		c.onStatus(st)
	}
}

func (c *Controller) handleOutcome(runID string, o delivery.Outcome) {
	switch {
	case o.Succeeded && o.UsedFallback:
		c.log.Info("Sent (Enter key): %s", o.Message)
	case o.Succeeded:
		c.log.Info("Sent: %s", o.Message)
	default:
		c.log.Warn("Send failed (%s): %s", o.Reason, o.Message)
	}

	if c.recorder != nil {
		c.recorder.Submit(store.NewRecord(runID, o))
	}

	c.mu.Lock()
	if o.Succeeded {
		c.diagnosed = false
		c.mu.Unlock()
		return
	}
	runDiagnostics := o.Reason == delivery.ReasonInputNotFound && !c.diagnosed && c.analyzer != nil && c.snapshot != nil
	if runDiagnostics {
		c.diagnosed = true
	}
	ctx := c.baseCtx
	c.mu.Unlock()

	if runDiagnostics {
		c.diagnose(ctx)
	}
}

func (c *Controller) diagnose(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	markup, err := c.snapshot.Snapshot(ctx)
	if err != nil {
		c.logger.Debug("Diagnostics snapshot failed", zap.Error(err))
		return
	}
	report, err := c.analyzer.Analyze(markup)
	if err != nil {
		c.logger.Debug("Diagnostics analysis failed", zap.Error(err))
		return
	}
	c.logger.Info("Page diagnostics",
		zap.String("title", report.Title),
		zap.Bool("login_prompt", report.LoginPrompt),
		zap.Strings("missing_selectors", report.Missing()),
	)
	if report.LoginPrompt {
		c.log.Warn("Login prompt detected, please log in manually")
	} else {
		c.log.Warn("Chat input missing: %s", report.Summary())
	}
}
