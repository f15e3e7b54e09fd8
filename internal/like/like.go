// Package like repeats the page's like shortcut at a jittered cadence until
// stopped or until a requested number of presses is reached.
package like

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/IRandonation/AutoTikTokSendComment/internal/dom"
)

// ErrAlreadyActive is returned by Start while the loop runs.
var ErrAlreadyActive = errors.New("like loop already active")

// Option configures a Loop.
type Option func(*Loop)

// WithRand sets the random source for delays.
func WithRand(rng *rand.Rand) Option {
	return func(l *Loop) { l.rng = rng }
}

// WithFinishHandler is called on the loop goroutine when a run ends for any reason.
func WithFinishHandler(fn func(presses int)) Option {
	return func(l *Loop) { l.onFinish = fn }
}

// Loop presses the like key repeatedly.
type Loop struct {
	presser  dom.KeyPresser
	key      dom.Key
	minDelay time.Duration
	maxDelay time.Duration
	logger   *zap.Logger
	rng      *rand.Rand
	onFinish func(presses int)

	mu      sync.Mutex
	active  atomic.Bool
	presses atomic.Int64
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Loop. Delays are drawn uniformly from [minDelay, maxDelay].
func New(presser dom.KeyPresser, key dom.Key, minDelay, maxDelay time.Duration, logger *zap.Logger, opts ...Option) *Loop {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	l := &Loop{
		presser:  presser,
		key:      key,
		minDelay: minDelay,
		maxDelay: maxDelay,
		logger:   logger.Named("like"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.rng == nil {
		l.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return l
}

// Start begins pressing. count > 0 stops after that many presses; zero runs
// until Stop or ctx is done.
func (l *Loop) Start(ctx context.Context, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active.Load() {
		return ErrAlreadyActive
	}
	if l.done != nil {
		<-l.done
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.presses.Store(0)
	l.active.Store(true)

	l.logger.Info("Like loop started", zap.String("key", l.key.Key), zap.Int("count", count))
	go l.run(runCtx, cancel, count, done)
	return nil
}

// Stop ends the loop without waiting.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active.Load() {
		return
	}
	l.active.Store(false)
	if l.cancel != nil {
		l.cancel()
	}
}

// Wait blocks until the current run has exited.
func (l *Loop) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Active reports whether the loop is running.
func (l *Loop) Active() bool { return l.active.Load() }

// Presses returns the number of presses in the current or last run.
func (l *Loop) Presses() int { return int(l.presses.Load()) }

func (l *Loop) run(ctx context.Context, cancel context.CancelFunc, count int, done chan struct{}) {
	defer func() {
		cancel()
		l.active.Store(false)
		n := l.Presses()
		l.logger.Info("Like loop stopped", zap.Int("presses", n))
		if l.onFinish != nil {
			l.onFinish(n)
		}
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		// Presses are fire-and-forget; a miss is retried on the next beat.
		if err := l.presser.Press(ctx, l.key); err != nil && ctx.Err() == nil {
			l.logger.Debug("Like press failed", zap.Error(err))
		}
		n := l.presses.Add(1)
		if count > 0 && int(n) >= count {
			return
		}

		timer := time.NewTimer(l.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (l *Loop) nextDelay() time.Duration {
	span := int64(l.maxDelay - l.minDelay)
	if span <= 0 {
		return l.minDelay
	}
	return l.minDelay + time.Duration(l.rng.Int63n(span+1))
}
