package pilot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/IRandonation/AutoTikTokSendComment/internal/activity"
	"github.com/IRandonation/AutoTikTokSendComment/internal/delivery"
	"github.com/IRandonation/AutoTikTokSendComment/internal/diagnose"
	"github.com/IRandonation/AutoTikTokSendComment/internal/dom"
	"github.com/IRandonation/AutoTikTokSendComment/internal/like"
	"github.com/IRandonation/AutoTikTokSendComment/internal/scheduler"
	"github.com/IRandonation/AutoTikTokSendComment/internal/store"
)

type scriptedDeliverer struct {
	mu       sync.Mutex
	sent     []string
	outcomes []delivery.Outcome
}

func (d *scriptedDeliverer) Deliver(_ context.Context, message string) delivery.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, message)
	if len(d.outcomes) > 0 {
		o := d.outcomes[0]
		d.outcomes = d.outcomes[1:]
		o.Message = message
		return o
	}
	return delivery.Outcome{Message: message, Succeeded: true}
}

func (d *scriptedDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type countingPresser struct {
	mu    sync.Mutex
	count int
}

func (p *countingPresser) Press(context.Context, dom.Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return nil
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []store.DeliveryRecord
}

func (r *memoryRecorder) Submit(rec store.DeliveryRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return true
}

type staticSnapshot struct {
	markup string
	calls  int
}

func (s *staticSnapshot) Snapshot(context.Context) (string, error) {
	s.calls++
	return s.markup, nil
}

func testConfig(messages ...string) Config {
	return Config{
		Settings:     scheduler.Settings{MinInterval: 5, MaxInterval: 5, Messages: messages},
		TickInterval: 10 * time.Millisecond,
		LikeKey:      dom.Key{Key: "z", Code: "KeyZ", KeyCode: 90},
		LikeMinDelay: time.Millisecond,
		LikeMaxDelay: 2 * time.Millisecond,
	}
}

func messages(log *activity.Log) []string {
	var out []string
	for _, e := range log.Entries(0) {
		out = append(out, e.Message)
	}
	return out
}

func TestStartSendingRejectsEmptyMessages(t *testing.T) {
	log := activity.New(10, zap.NewNop())
	c := New(&scriptedDeliverer{}, &countingPresser{}, log, zaptest.NewLogger(t), testConfig())

	err := c.StartSending(context.Background())
	assert.ErrorIs(t, err, scheduler.ErrNoMessages)
	assert.False(t, c.State().Running)
	assert.Contains(t, messages(log)[0], "No messages configured")
}

func TestToggleSendingRecordsOutcomes(t *testing.T) {
	d := &scriptedDeliverer{}
	rec := &memoryRecorder{}
	log := activity.New(10, zap.NewNop())
	c := New(d, &countingPresser{}, log, zaptest.NewLogger(t), testConfig("hello"), WithRecorder(rec))

	running, err := c.ToggleSending(context.Background())
	require.NoError(t, err)
	assert.True(t, running)
	assert.True(t, c.State().Running)

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.records) == 1
	}, time.Second, 5*time.Millisecond)

	running, err = c.ToggleSending(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
	c.Shutdown()

	assert.Equal(t, 1, d.count())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "hello", rec.records[0].Message)
	assert.NotEmpty(t, rec.records[0].RunID)
	assert.Contains(t, messages(log), "Sent: hello")
	assert.Contains(t, messages(log), "Auto send stopped")
}

func TestStatusForwarded(t *testing.T) {
	var mu sync.Mutex
	var phases []scheduler.Phase
	c := New(&scriptedDeliverer{}, &countingPresser{}, activity.New(10, zap.NewNop()), zaptest.NewLogger(t), testConfig("a"),
		WithStatusHandler(func(st scheduler.Status) {
			mu.Lock()
			phases = append(phases, st.Phase)
			mu.Unlock()
		}))

	require.NoError(t, c.StartSending(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(phases) >= 2
	}, time.Second, 5*time.Millisecond)
	c.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, scheduler.PhaseSending, phases[0])
	assert.Equal(t, scheduler.PhaseCountingDown, phases[1])
	assert.Equal(t, scheduler.PhaseIdle, phases[len(phases)-1])
}

func TestSendNow(t *testing.T) {
	d := &scriptedDeliverer{outcomes: []delivery.Outcome{{Succeeded: true, UsedFallback: true}}}
	rec := &memoryRecorder{}
	log := activity.New(10, zap.NewNop())
	c := New(d, &countingPresser{}, log, zaptest.NewLogger(t), testConfig(), WithRecorder(rec))

	out, err := c.SendNow(context.Background(), "  now  ")
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "now", out.Message)
	assert.Equal(t, "Sent (Enter key): now", messages(log)[0])
	require.Len(t, rec.records, 1)
	assert.Equal(t, "manual", rec.records[0].RunID)

	_, err = c.SendNow(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 1, d.count())
}

func TestSendNowCancelledIsNotReported(t *testing.T) {
	rec := &memoryRecorder{}
	c := New(&scriptedDeliverer{}, &countingPresser{}, activity.New(10, zap.NewNop()), zaptest.NewLogger(t), testConfig(), WithRecorder(rec))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SendNow(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.records)
}

// slowDeliverer holds each attempt open and tracks how many overlap.
type slowDeliverer struct {
	hold time.Duration

	mu      sync.Mutex
	active  int
	peak    int
	sent    []string
	started chan string
}

func (d *slowDeliverer) Deliver(ctx context.Context, message string) delivery.Outcome {
	d.mu.Lock()
	d.active++
	if d.active > d.peak {
		d.peak = d.active
	}
	d.sent = append(d.sent, message)
	d.mu.Unlock()
	d.started <- message

	select {
	case <-time.After(d.hold):
	case <-ctx.Done():
	}

	d.mu.Lock()
	d.active--
	d.mu.Unlock()
	return delivery.Outcome{Message: message, Succeeded: true}
}

func TestSendNowWaitsForLoopAttempt(t *testing.T) {
	d := &slowDeliverer{hold: 200 * time.Millisecond, started: make(chan string, 10)}
	log := activity.New(10, zap.NewNop())
	c := New(d, &countingPresser{}, log, zaptest.NewLogger(t), testConfig("loop"))

	require.NoError(t, c.StartSending(context.Background()))
	defer c.Shutdown()
	assert.Equal(t, "loop", <-d.started)

	time.Sleep(50 * time.Millisecond)
	begin := time.Now()
	out, err := c.SendNow(context.Background(), "manual")
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.GreaterOrEqual(t, time.Since(begin), 300*time.Millisecond, "manual attempt starts after the loop attempt ends")

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, 1, d.peak, "attempts never overlap")
	assert.Equal(t, []string{"loop", "manual"}, d.sent)
}

func TestSendNowGivesUpWhileWaiting(t *testing.T) {
	d := &slowDeliverer{hold: time.Second, started: make(chan string, 10)}
	c := New(d, &countingPresser{}, activity.New(10, zap.NewNop()), zaptest.NewLogger(t), testConfig("loop"))

	require.NoError(t, c.StartSending(context.Background()))
	defer c.Shutdown()
	<-d.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.SendNow(ctx, "manual")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, []string{"loop"}, d.sent)
}

const loginMarkup = `<html><head><title>Live</title></head><body><div><span>登录后发弹幕</span></div></body></html>`

func TestDiagnosticsRunOncePerMissStreak(t *testing.T) {
	miss := delivery.Outcome{Reason: delivery.ReasonInputNotFound, Err: delivery.ErrTargetNotFound}
	d := &scriptedDeliverer{outcomes: []delivery.Outcome{miss, miss, {Succeeded: true}, miss}}
	snap := &staticSnapshot{markup: loginMarkup}
	log := activity.New(20, zap.NewNop())
	analyzer := diagnose.New([]string{"登录"}, []string{"textarea"})
	c := New(d, &countingPresser{}, log, zaptest.NewLogger(t), testConfig(), WithDiagnostics(snap, analyzer))

	for i := 0; i < 2; i++ {
		_, err := c.SendNow(context.Background(), "x")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, snap.calls, "consecutive misses diagnose once")
	assert.Contains(t, messages(log), "Login prompt detected, please log in manually")

	_, _ = c.SendNow(context.Background(), "x")
	_, _ = c.SendNow(context.Background(), "x")
	assert.Equal(t, 2, snap.calls, "a success re-arms diagnostics")
}

func TestDiagnosticsIgnoreOtherFailures(t *testing.T) {
	d := &scriptedDeliverer{outcomes: []delivery.Outcome{{Reason: delivery.ReasonContentRemaining, Err: errors.New("x")}}}
	snap := &staticSnapshot{markup: loginMarkup}
	c := New(d, &countingPresser{}, activity.New(10, zap.NewNop()), zaptest.NewLogger(t), testConfig(),
		WithDiagnostics(snap, diagnose.New([]string{"登录"})))

	_, err := c.SendNow(context.Background(), "x")
	require.NoError(t, err)
	assert.Zero(t, snap.calls)
}

func TestLikingToggleAndBurst(t *testing.T) {
	p := &countingPresser{}
	log := activity.New(10, zap.NewNop())
	c := New(&scriptedDeliverer{}, p, log, zaptest.NewLogger(t), testConfig())

	liking, err := c.ToggleLiking(context.Background())
	require.NoError(t, err)
	assert.True(t, liking)
	assert.True(t, c.State().Liking)
	assert.ErrorIs(t, c.StartLiking(context.Background(), 3), like.ErrAlreadyActive)

	liking, err = c.ToggleLiking(context.Background())
	require.NoError(t, err)
	assert.False(t, liking)
	c.Shutdown()

	p.mu.Lock()
	before := p.count
	p.mu.Unlock()

	require.NoError(t, c.StartLiking(context.Background(), 3))
	require.Eventually(t, func() bool { return !c.State().Liking }, time.Second, 5*time.Millisecond)
	c.Shutdown()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, before+3, p.count)
	assert.Contains(t, messages(log), "Quick like: 3 presses")
}

func TestShutdownWhenIdle(t *testing.T) {
	c := New(&scriptedDeliverer{}, &countingPresser{}, activity.New(10, zap.NewNop()), zaptest.NewLogger(t), testConfig())
	c.StopSending()
	c.StopLiking()
	c.Shutdown()
	assert.Equal(t, RunState{}, c.State())
}
