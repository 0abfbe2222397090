package core

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyImports is returned when no batch slot frees up within the wait
// time. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// DefaultMaxConcurrentBatches is one: batches run strictly one after another
// unless configured otherwise.
//
// Two batches in flight can both create or update the same template, and
// the second to commit silently wins. Their audit rows would interleave, so
// the log no longer reads as one batch at a time. A batch that references
// an existing template also resolves against whatever was committed when
// its lookup ran, which under concurrency depends on scheduling. Running
// one batch per process keeps each batch's view of the store stable from
// start to commit.
const DefaultMaxConcurrentBatches = 1

// DefaultMaxWaitTime is how long a batch queues for a slot before it is
// rejected with ErrTooManyImports.
const DefaultMaxWaitTime = 30 * time.Second

// BatchLimiter gates ImportBatch calls. A slot is held for the whole batch,
// from the first lookup until commit or rollback.
type BatchLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	running atomic.Int32
}

// NewBatchLimiter creates a limiter admitting at most maxConcurrent batches.
// Non-positive arguments fall back to the defaults.
func NewBatchLimiter(maxConcurrent int, maxWait time.Duration) *BatchLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentBatches
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &BatchLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire queues for a slot. It returns ctx's error if ctx ends first and
// ErrTooManyImports if maxWait elapses. Every nil return must be paired
// with Release.
func (l *BatchLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.running.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyImports
	}
}

// Release returns a slot taken by Acquire.
func (l *BatchLimiter) Release() {
	l.running.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of batches holding a slot.
func (l *BatchLimiter) ActiveCount() int {
	return int(l.running.Load())
}

// Available returns the number of free slots.
func (l *BatchLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no batch holds a slot or ctx is done. Shutdown
// uses it after the listener stops so in-flight batches can commit.
func (l *BatchLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for l.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a snapshot of the limiter, reported by the health check.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *BatchLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
	}
}
