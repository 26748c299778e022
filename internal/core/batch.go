package core

import (
	"context"
	"time"
)

// DefaultBatchSize is the flush threshold used when none is configured.
const DefaultBatchSize = 500

// BatchCommitter buffers assembled customers and writes them with one
// SaveAll per full buffer. Flush writes whatever remains.
type BatchCommitter struct {
	records   RecordStore
	threshold int
	buf       []*Customer

	committed int
	batches   int

	// onFlush observes every successful flush.
	onFlush func(n int, d time.Duration)
}

func NewBatchCommitter(records RecordStore, threshold int) *BatchCommitter {
	if threshold <= 0 {
		threshold = DefaultBatchSize
	}
	return &BatchCommitter{
		records:   records,
		threshold: threshold,
		buf:       make([]*Customer, 0, threshold),
	}
}

// Add buffers c and flushes once the buffer holds threshold customers.
func (b *BatchCommitter) Add(ctx context.Context, c *Customer) error {
	b.buf = append(b.buf, c)
	if len(b.buf) >= b.threshold {
		return b.Flush(ctx)
	}
	return nil
}

// Flush saves the buffered customers. A failed save leaves the buffer
// untouched and returns a *StoreFailure.
func (b *BatchCommitter) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}

	start := time.Now()
	if _, err := b.records.SaveAll(ctx, b.buf); err != nil {
		return &StoreFailure{Op: "save batch", Err: err}
	}

	n := len(b.buf)
	b.committed += n
	b.batches++
	// The store may keep the slice it was given.
	b.buf = make([]*Customer, 0, b.threshold)

	if b.onFlush != nil {
		b.onFlush(n, time.Since(start))
	}
	return nil
}

// Pending is the number of buffered, unsaved customers.
func (b *BatchCommitter) Pending() int { return len(b.buf) }

// Committed is the number of customers saved so far.
func (b *BatchCommitter) Committed() int { return b.committed }

// Batches is the number of successful flushes.
func (b *BatchCommitter) Batches() int { return b.batches }
