package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BatchRecorder persists a batch of records.
type BatchRecorder interface {
	RecordBatch(ctx context.Context, records []DeliveryRecord) error
}

// Journal decouples outcome reporting from persistence: Submit never blocks
// the send loop, a consumer goroutine writes batches.
type Journal struct {
	recorder  BatchRecorder
	logger    *zap.Logger
	batchSize int
	flush     time.Duration

	mu     sync.Mutex
	closed bool
	ch     chan DeliveryRecord
	wg     sync.WaitGroup
}

// NewJournal creates a Journal. Batches are written when batchSize records
// are pending or every flush interval, whichever comes first.
func NewJournal(recorder BatchRecorder, logger *zap.Logger, batchSize int, flush time.Duration) *Journal {
	if batchSize <= 0 {
		batchSize = 16
	}
	if flush <= 0 {
		flush = 5 * time.Second
	}
	return &Journal{
		recorder:  recorder,
		logger:    logger.Named("journal"),
		batchSize: batchSize,
		flush:     flush,
		ch:        make(chan DeliveryRecord, 256),
	}
}

// Start launches the consumer. Writes use ctx; the final flush on Close
// survives its cancellation.
func (j *Journal) Start(ctx context.Context) {
	j.wg.Add(1)
	go j.consume(ctx)
}

// Submit queues a record. It returns false when the journal is closed or its
// buffer is full.
func (j *Journal) Submit(r DeliveryRecord) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return false
	}
	select {
	case j.ch <- r:
		return true
	default:
		j.logger.Warn("Journal buffer full, dropping record", zap.String("message", r.Message))
		return false
	}
}

// Close stops accepting records, drains the buffer and waits for the last write.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()
	j.wg.Wait()
}

func (j *Journal) consume(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.flush)
	defer ticker.Stop()

	pending := make([]DeliveryRecord, 0, j.batchSize)
	write := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := j.recorder.RecordBatch(ctx, pending); err != nil {
			j.logger.Error("Failed to persist deliveries", zap.Int("count", len(pending)), zap.Error(err))
		} else {
			j.logger.Debug("Persisted deliveries", zap.Int("count", len(pending)))
		}
		pending = make([]DeliveryRecord, 0, j.batchSize)
	}

	for {
		select {
		case r, ok := <-j.ch:
			if !ok {
				finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				write(finalCtx)
				cancel()
				return
			}
			pending = append(pending, r)
			if len(pending) >= j.batchSize {
				write(ctx)
			}
		case <-ticker.C:
			write(ctx)
		}
	}
}
