package like

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/IRandonation/AutoTikTokSendComment/internal/dom"
)

var likeKey = dom.Key{Key: "z", Code: "KeyZ", KeyCode: 90}

type fakePresser struct {
	mu    sync.Mutex
	keys  []dom.Key
	times []time.Time
	err   error
}

func (f *fakePresser) Press(_ context.Context, key dom.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.times = append(f.times, time.Now())
	return f.err
}

func (f *fakePresser) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

func TestBurstStopsAfterCount(t *testing.T) {
	p := &fakePresser{}
	finished := make(chan int, 1)
	l := New(p, likeKey, time.Millisecond, 2*time.Millisecond, zaptest.NewLogger(t),
		WithFinishHandler(func(n int) { finished <- n }))

	require.NoError(t, l.Start(context.Background(), 5))
	select {
	case n := <-finished:
		assert.Equal(t, 5, n)
	case <-time.After(2 * time.Second):
		t.Fatal("burst did not finish")
	}
	l.Wait()

	assert.False(t, l.Active())
	assert.Equal(t, 5, p.count())
	assert.Equal(t, 5, l.Presses())
	for _, k := range p.keys {
		assert.Equal(t, likeKey, k)
	}
}

func TestContinuousUntilStop(t *testing.T) {
	p := &fakePresser{}
	l := New(p, likeKey, 5*time.Millisecond, 10*time.Millisecond, zaptest.NewLogger(t))

	require.NoError(t, l.Start(context.Background(), 0))
	assert.True(t, l.Active())
	assert.ErrorIs(t, l.Start(context.Background(), 0), ErrAlreadyActive)

	require.Eventually(t, func() bool { return p.count() >= 5 }, 2*time.Second, 5*time.Millisecond)
	l.Stop()
	l.Wait()
	stopped := p.count()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, p.count(), "no presses after stop")
	assert.False(t, l.Active())

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 1; i < len(p.times); i++ {
		gap := p.times[i].Sub(p.times[i-1])
		assert.GreaterOrEqual(t, gap, 5*time.Millisecond, "presses keep the minimum delay")
	}
}

func TestPressErrorsDoNotStopLoop(t *testing.T) {
	p := &fakePresser{err: errors.New("target not found")}
	l := New(p, likeKey, time.Millisecond, time.Millisecond, zaptest.NewLogger(t))

	require.NoError(t, l.Start(context.Background(), 3))
	l.Wait()
	assert.Equal(t, 3, p.count())
}

func TestRestartAfterStop(t *testing.T) {
	p := &fakePresser{}
	l := New(p, likeKey, 20*time.Millisecond, 20*time.Millisecond, zaptest.NewLogger(t))

	require.NoError(t, l.Start(context.Background(), 0))
	l.Stop()
	require.NoError(t, l.Start(context.Background(), 1))
	l.Wait()
	assert.Equal(t, 1, l.Presses(), "press counter resets per run")
}

func TestNextDelayWithinBounds(t *testing.T) {
	l := New(&fakePresser{}, likeKey, 100*time.Millisecond, 200*time.Millisecond, zaptest.NewLogger(t),
		WithRand(rand.New(rand.NewSource(3))))
	for i := 0; i < 1000; i++ {
		d := l.nextDelay()
		require.GreaterOrEqual(t, d, 100*time.Millisecond)
		require.LessOrEqual(t, d, 200*time.Millisecond)
	}

	inverted := New(&fakePresser{}, likeKey, 50*time.Millisecond, 10*time.Millisecond, zaptest.NewLogger(t))
	assert.Equal(t, 50*time.Millisecond, inverted.nextDelay())
}

func TestStopWhenIdle(t *testing.T) {
	l := New(&fakePresser{}, likeKey, time.Millisecond, time.Millisecond, zaptest.NewLogger(t))
	l.Stop()
	l.Wait()
	assert.False(t, l.Active())
}
