package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRecorder struct {
	mu      sync.Mutex
	batches [][]DeliveryRecord
	err     error
}

func (f *fakeRecorder) RecordBatch(_ context.Context, records []DeliveryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]DeliveryRecord(nil), records...))
	return f.err
}

func (f *fakeRecorder) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestJournalFlushesFullBatches(t *testing.T) {
	rec := &fakeRecorder{}
	j := NewJournal(rec, zaptest.NewLogger(t), 2, time.Hour)
	j.Start(context.Background())

	for i := 0; i < 4; i++ {
		require.True(t, j.Submit(sampleRecord()))
	}
	require.Eventually(t, func() bool { return rec.total() == 4 }, time.Second, 5*time.Millisecond)
	j.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.batches, 2)
}

func TestJournalFlushesOnInterval(t *testing.T) {
	rec := &fakeRecorder{}
	j := NewJournal(rec, zaptest.NewLogger(t), 100, 10*time.Millisecond)
	j.Start(context.Background())
	defer j.Close()

	j.Submit(sampleRecord())
	require.Eventually(t, func() bool { return rec.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestJournalCloseDrainsAfterCancel(t *testing.T) {
	rec := &fakeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	j := NewJournal(rec, zaptest.NewLogger(t), 100, time.Hour)
	j.Start(ctx)

	j.Submit(sampleRecord())
	j.Submit(sampleRecord())
	cancel()
	j.Close()

	assert.Equal(t, 2, rec.total())
	assert.False(t, j.Submit(sampleRecord()), "closed journal rejects records")
	j.Close()
}

func TestJournalSurvivesWriteErrors(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	j := NewJournal(rec, zaptest.NewLogger(t), 1, time.Hour)
	j.Start(context.Background())

	j.Submit(sampleRecord())
	j.Submit(sampleRecord())
	j.Close()
	assert.Equal(t, 2, rec.total())
}
