// Package delivery performs one attempt at submitting a message into the chat
// input: write, dispatch through the send button, verify, and fall back to the
// Enter key when the button route does not clear the field.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTargetNotFound means no matching element is currently on the page.
	ErrTargetNotFound = errors.New("target element not found")
	// ErrContentStillPresent means the input still held text after the fallback.
	ErrContentStillPresent = errors.New("content still present")
)

// Failure reasons reported to the activity log.
const (
	ReasonInputNotFound    = "input not found"
	ReasonContentRemaining = "content still present"
)

// Surface finds the page elements an attempt works on.
type Surface interface {
	// FindInput returns the active chat input or an error wrapping ErrTargetNotFound.
	FindInput(ctx context.Context) (Field, error)
	// FindSendButton returns the send control or an error wrapping ErrTargetNotFound.
	FindSendButton(ctx context.Context) (Button, error)
}

// Field is a framework-controlled text input.
type Field interface {
	Write(ctx context.Context, text string) error
	Read(ctx context.Context) (string, error)
	PressEnter(ctx context.Context) error
}

// Nudger is implemented by fields that can re-announce their value to the
// page framework without changing it.
type Nudger interface {
	Nudge(ctx context.Context) error
}

// Button is the chat send control.
type Button interface {
	Enabled(ctx context.Context) (bool, error)
	Press(ctx context.Context) error
}

// Timings are the fixed waits of an attempt.
type Timings struct {
	// Clear is the pause between erasing the input and writing the message.
	// Zero skips it.
	Clear    time.Duration
	Settle   time.Duration
	Recheck  time.Duration
	Verify   time.Duration
	Fallback time.Duration
}

// DefaultTimings mirror the page's observed rerender latency.
var DefaultTimings = Timings{
	Clear:    100 * time.Millisecond,
	Settle:   500 * time.Millisecond,
	Recheck:  200 * time.Millisecond,
	Verify:   800 * time.Millisecond,
	Fallback: 800 * time.Millisecond,
}

// Outcome is the result of one attempt.
type Outcome struct {
	Message      string
	Succeeded    bool
	UsedFallback bool
	Reason       string
	Err          error
	Trace        []State
	Started      time.Time
	Finished     time.Time
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures an Attempter.
type Option func(*Attempter)

// WithSleeper replaces the real-time wait, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(a *Attempter) { a.sleep = s }
}

// WithClock replaces time.Now for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Attempter) { a.now = now }
}

// Attempter runs delivery attempts against a Surface.
type Attempter struct {
	surface Surface
	timings Timings
	sleep   Sleeper
	now     func() time.Time
	logger  *zap.Logger
}

// NewAttempter creates an Attempter.
func NewAttempter(surface Surface, timings Timings, logger *zap.Logger, opts ...Option) *Attempter {
	a := &Attempter{
		surface: surface,
		timings: timings,
		sleep:   hesitate,
		now:     time.Now,
		logger:  logger.Named("delivery"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Deliver runs one attempt for message. It never returns an error: every
// failure, including a cancelled context, is folded into the Outcome.
func (a *Attempter) Deliver(ctx context.Context, message string) Outcome {
	r := &attempt{Attempter: a, message: message}
	r.outcome.Message = message
	r.outcome.Started = a.now()

	state := StateLocate
	for state != StateDone {
		r.outcome.Trace = append(r.outcome.Trace, state)

		if err := ctx.Err(); err != nil {
			r.fail(err)
			break
		}

		next, err := r.runStep(ctx, state)
		if err != nil {
			r.fail(err)
			next = StateDone
		}
		if !canTransition(state, next) {
			r.fail(fmt.Errorf("illegal transition %s -> %s", state, next))
			next = StateDone
		}
		state = next
	}
	r.outcome.Trace = append(r.outcome.Trace, StateDone)
	r.outcome.Finished = a.now()

	fields := []zap.Field{
		zap.String("message", message),
		zap.Bool("succeeded", r.outcome.Succeeded),
		zap.Bool("fallback", r.outcome.UsedFallback),
		zap.Stringers("trace", r.outcome.Trace),
	}
	if r.outcome.Succeeded {
		a.logger.Debug("Delivery attempt finished", fields...)
	} else {
		a.logger.Debug("Delivery attempt failed", append(fields, zap.String("reason", r.outcome.Reason))...)
	}
	return r.outcome
}

// attempt carries the per-message state between steps.
type attempt struct {
	*Attempter
	message string
	field   Field
	outcome Outcome
}

func (r *attempt) fail(err error) {
	r.outcome.Succeeded = false
	r.outcome.Err = err
	switch {
	case errors.Is(err, ErrTargetNotFound):
		r.outcome.Reason = ReasonInputNotFound
	case errors.Is(err, ErrContentStillPresent):
		r.outcome.Reason = ReasonContentRemaining
	default:
		r.outcome.Reason = err.Error()
	}
}

func (r *attempt) succeed(viaFallback bool) {
	r.outcome.Succeeded = true
	r.outcome.UsedFallback = viaFallback
	r.outcome.Reason = ""
	r.outcome.Err = nil
}

func (r *attempt) runStep(ctx context.Context, s State) (next State, err error) {
	defer func() {
		if p := recover(); p != nil {
			next, err = StateDone, fmt.Errorf("panic in %s: %v", s, p)
		}
	}()

	switch s {
	case StateLocate:
		return r.locate(ctx)
	case StateClear:
		return r.clear(ctx)
	case StateWrite:
		return r.write(ctx)
	case StateSettle:
		return r.settle(ctx)
	case StateDispatch:
		return r.dispatch(ctx)
	case StateVerify:
		return r.verify(ctx)
	case StateFallback:
		return r.fallback(ctx)
	}
	return StateDone, fmt.Errorf("unknown state %d", s)
}

func (r *attempt) locate(ctx context.Context) (State, error) {
	field, err := r.surface.FindInput(ctx)
	if err != nil {
		return StateDone, err
	}
	r.field = field
	return StateClear, nil
}

func (r *attempt) clear(ctx context.Context) (State, error) {
	if err := r.field.Write(ctx, ""); err != nil {
		return StateDone, fmt.Errorf("clear input: %w", err)
	}
	if r.timings.Clear > 0 {
		if err := r.sleep(ctx, r.timings.Clear); err != nil {
			return StateDone, err
		}
	}
	return StateWrite, nil
}

func (r *attempt) write(ctx context.Context) (State, error) {
	if err := r.field.Write(ctx, r.message); err != nil {
		return StateDone, fmt.Errorf("write input: %w", err)
	}
	return StateSettle, nil
}

func (r *attempt) settle(ctx context.Context) (State, error) {
	if err := r.sleep(ctx, r.timings.Settle); err != nil {
		return StateDone, err
	}
	return StateDispatch, nil
}

func (r *attempt) dispatch(ctx context.Context) (State, error) {
	button, err := r.surface.FindSendButton(ctx)
	if errors.Is(err, ErrTargetNotFound) {
		r.logger.Debug("Send button not found, using Enter key")
		return StateFallback, nil
	}
	if err != nil {
		return StateDone, fmt.Errorf("find send button: %w", err)
	}

	enabled, err := button.Enabled(ctx)
	if err != nil {
		return StateDone, fmt.Errorf("check send button: %w", err)
	}
	if !enabled {
		// The framework often enables the button a frame after the input event.
		if n, ok := r.field.(Nudger); ok {
			if err := n.Nudge(ctx); err != nil {
				r.logger.Debug("Nudge failed", zap.Error(err))
			}
		}
		if err := r.sleep(ctx, r.timings.Recheck); err != nil {
			return StateDone, err
		}
		if enabled, err = button.Enabled(ctx); err != nil {
			return StateDone, fmt.Errorf("recheck send button: %w", err)
		}
	}
	if !enabled {
		r.logger.Debug("Send button stayed disabled, using Enter key")
		return StateFallback, nil
	}

	if err := button.Press(ctx); err != nil {
		return StateDone, fmt.Errorf("press send button: %w", err)
	}
	return StateVerify, nil
}

func (r *attempt) verify(ctx context.Context) (State, error) {
	if err := r.sleep(ctx, r.timings.Verify); err != nil {
		return StateDone, err
	}
	value, err := r.field.Read(ctx)
	if err != nil {
		return StateDone, fmt.Errorf("read input: %w", err)
	}
	if value == "" {
		r.succeed(false)
		return StateDone, nil
	}
	return StateFallback, nil
}

func (r *attempt) fallback(ctx context.Context) (State, error) {
	if err := r.field.PressEnter(ctx); err != nil {
		return StateDone, fmt.Errorf("press enter: %w", err)
	}
	if err := r.sleep(ctx, r.timings.Fallback); err != nil {
		return StateDone, err
	}
	value, err := r.field.Read(ctx)
	if err != nil {
		return StateDone, fmt.Errorf("read input: %w", err)
	}
	if value != "" {
		return StateDone, ErrContentStillPresent
	}
	r.succeed(true)
	return StateDone, nil
}

func hesitate(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
