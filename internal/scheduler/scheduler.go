// Package scheduler runs the send cycle: deliver the current message, draw
// the next interval, count it down while showing what comes next, repeat.
package scheduler

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
	"github.com/IRandonation/AutoTikTokSendComment/internal/queue"
)

var (
	// ErrNoMessages is returned by Start when the message list is empty.
	ErrNoMessages = errors.New("no messages to send")
	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("scheduler already running")
)

// Settings is the snapshot a run works from. Intervals are seconds.
type Settings struct {
	MinInterval float64
	MaxInterval float64
	Messages    []string
	Randomize   bool
}

// Deliverer performs one delivery attempt.
type Deliverer interface {
	Deliver(ctx context.Context, message string) delivery.Outcome
}

// Phase is what the loop is doing right now.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseCountingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseSending:
		return "sending"
	case PhaseCountingDown:
		return "counting down"
	default:
		return "idle"
	}
}

// Status is published on every phase change and countdown tick.
type Status struct {
	Phase     Phase
	Current   string
	Next      string
	Interval  time.Duration
	Remaining time.Duration
	EndsAt    time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets the countdown refresh period.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithRand sets the random source used for intervals and shuffling.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = rng }
}

// WithStatusHandler registers the status callback. It runs on the loop
// goroutine and must not block.
func WithStatusHandler(fn func(Status)) Option {
	return func(s *Scheduler) { s.onStatus = fn }
}

// WithOutcomeHandler registers the per-attempt callback. It runs on the loop
// goroutine and is skipped for attempts cut short by Stop. An attempt that
// finished before Stop took effect is still reported.
func WithOutcomeHandler(fn func(delivery.Outcome)) Option {
	return func(s *Scheduler) { s.onOutcome = fn }
}

// Scheduler owns at most one running send loop.
type Scheduler struct {
	deliverer Deliverer
	logger    *zap.Logger
	tick      time.Duration
	rng       *rand.Rand
	onStatus  func(Status)
	onOutcome func(delivery.Outcome)

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Scheduler.
func New(deliverer Deliverer, logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		deliverer: deliverer,
		logger:    logger.Named("scheduler"),
		tick:      100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Start validates settings and launches the loop. If a previous loop is still
// unwinding after Stop, Start waits for it first.
func (s *Scheduler) Start(ctx context.Context, settings Settings) error {
	if len(settings.Messages) == 0 {
		return ErrNoMessages
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return ErrAlreadyRunning
	}
	if s.done != nil {
		<-s.done
	}

	q, err := queue.New(settings.Messages, settings.Randomize, s.rng)
	if err != nil {
		return ErrNoMessages
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.running.Store(true)

	first := q.Next()
	s.logger.Info("Send loop started",
		zap.Int("messages", q.Len()),
		zap.Bool("randomize", settings.Randomize),
		zap.Float64("min_interval", settings.MinInterval),
		zap.Float64("max_interval", settings.MaxInterval),
	)
	go s.loop(runCtx, cancel, q, first, settings, done)
	return nil
}

// Stop ends the run. It does not wait; use Wait for that. The in-flight
// attempt, if any, is abandoned at its next suspension point.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("Send loop stop requested")
}

// Wait blocks until the current loop, if any, has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a run is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) loop(ctx context.Context, cancel context.CancelFunc, q queue.Queue, current string, settings Settings, done chan struct{}) {
	defer func() {
		cancel()
		s.running.Store(false)
		s.emit(Status{Phase: PhaseIdle})
		s.logger.Info("Send loop stopped")
		close(done)
	}()

	for {
		s.emit(Status{Phase: PhaseSending, Current: current})
		outcome := s.deliverer.Deliver(ctx, current)
		if err := ctx.Err(); err != nil && errors.Is(outcome.Err, err) {
			return
		}
		s.report(outcome)
		if ctx.Err() != nil {
			return
		}

		interval := DrawInterval(s.rng, settings.MinInterval, settings.MaxInterval)
		next := q.Next()
		if !s.countdown(ctx, interval, next) {
			return
		}
		current = next
	}
}

// countdown waits out interval, publishing the remaining time every tick.
// Remaining is derived from the end time so slow ticks do not drift.
func (s *Scheduler) countdown(ctx context.Context, interval time.Duration, next string) bool {
	endsAt := time.Now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	status := Status{Phase: PhaseCountingDown, Next: next, Interval: interval, EndsAt: endsAt, Remaining: interval}
	s.emit(status)

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return ctx.Err() == nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return false
			}
			status.Remaining = time.Until(endsAt)
			if status.Remaining < 0 {
				status.Remaining = 0
			}
			s.emit(status)
		}
	}
}

func (s *Scheduler) report(outcome delivery.Outcome) {
	if outcome.Succeeded {
		s.logger.Info("Message sent", zap.String("message", outcome.Message), zap.Bool("fallback", outcome.UsedFallback))
	} else {
		s.logger.Warn("Message not sent", zap.String("message", outcome.Message), zap.String("reason", outcome.Reason))
	}
	if s.onOutcome != nil {
		s.onOutcome(outcome)
	}
}

func (s *Scheduler) emit(status Status) {
	if s.onStatus != nil {
		s.onStatus(status)
	}
}

// DrawInterval returns a uniformly drawn whole number of milliseconds in
// [min, max] seconds. A max below min is treated as min.
func DrawInterval(rng *rand.Rand, minSeconds, maxSeconds float64) time.Duration {
	minMs := int64(math.Round(minSeconds * 1000))
	maxMs := int64(math.Round(maxSeconds * 1000))
	if minMs < 0 {
		minMs = 0
	}
	if maxMs < minMs {
		maxMs = minMs
	}
	ms := minMs + rng.Int63n(maxMs-minMs+1)
	return time.Duration(ms) * time.Millisecond
}
