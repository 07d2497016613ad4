package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// warnWait is how long a warning or error record may wait for queue space
// before it is dropped. Lower levels are dropped at once.
const warnWait = 50 * time.Millisecond

// queue is shared by an AsyncHandler and every handler derived from it.
type queue struct {
	records chan queued
	workers sync.WaitGroup
	dropped atomic.Int64
	failed  atomic.Int64
}

type queued struct {
	h   slog.Handler
	rec slog.Record
}

// AsyncHandler hands records to a small worker pool so request handlers
// never wait on log output. When the buffer is full, debug and info
// records are dropped immediately; warnings and errors wait up to warnWait.
type AsyncHandler struct {
	inner slog.Handler
	q     *queue
}

// NewAsyncHandler starts workers goroutines draining a buffer of size records.
func NewAsyncHandler(inner slog.Handler, size, workers int) *AsyncHandler {
	q := &queue{records: make(chan queued, size)}
	q.workers.Add(workers)
	for range workers {
		go func() {
			defer q.workers.Done()
			for r := range q.records {
				if err := r.h.Handle(context.Background(), r.rec); err != nil {
					q.failed.Add(1)
				}
			}
		}()
	}
	return &AsyncHandler{inner: inner, q: q}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	item := queued{h: h.inner, rec: rec.Clone()}
	select {
	case h.q.records <- item:
		return nil
	default:
	}
	if rec.Level < slog.LevelWarn {
		h.q.dropped.Add(1)
		return nil
	}
	t := time.NewTimer(warnWait)
	defer t.Stop()
	select {
	case h.q.records <- item:
	case <-t.C:
		h.q.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), q: h.q}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), q: h.q}
}

// DroppedCount returns the number of records lost to a full buffer.
func (h *AsyncHandler) DroppedCount() int64 { return h.q.dropped.Load() }

// FailedCount returns the number of records the inner handler rejected.
func (h *AsyncHandler) FailedCount() int64 { return h.q.failed.Load() }

// Close stops accepting records and waits until the buffer is written out.
// Handle must not be called after Close.
func (h *AsyncHandler) Close() {
	close(h.q.records)
	h.q.workers.Wait()
}
