// gatekeeper/audit/emitter.go
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/metrics"
)

// Sink receives audit events without blocking the caller.
type Sink interface {
	Record(ctx context.Context, log AuditLog)
}

// Emitter buffers audit events and writes them from a fixed worker pool.
// Record never blocks: when the buffer is full the event is dropped and
// counted.
type Emitter struct {
	svc          Service
	events       chan AuditLog
	workers      int
	writeTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

var _ Sink = &Emitter{}

func NewEmitter(svc Service, bufferSize, workers int, writeTimeout time.Duration) *Emitter {
	return &Emitter{
		svc:          svc,
		events:       make(chan AuditLog, bufferSize),
		workers:      workers,
		writeTimeout: writeTimeout,
	}
}

func (e *Emitter) Start() {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.run()
	}
}

func (e *Emitter) run() {
	defer e.wg.Done()
	for event := range e.events {
		ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
		if err := e.svc.LogAccess(ctx, event); err != nil {
			metrics.DependencyErrorsTotal.WithLabelValues("audit").Inc()
			logger.Error("Failed to write audit event",
				zap.Error(err),
				zap.String("class", "dependency"),
				zap.String("action", event.Action),
				zap.String("subject_id", event.SubjectID))
		}
		cancel()
	}
}

func (e *Emitter) Record(_ context.Context, event AuditLog) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(event)
		return
	}

	select {
	case e.events <- event:
	default:
		e.drop(event)
	}
}

func (e *Emitter) drop(event AuditLog) {
	e.dropped.Add(1)
	metrics.AuditDroppedTotal.Inc()
	logger.Warn("Audit buffer full, dropping event",
		zap.String("action", event.Action),
		zap.String("subject_id", event.SubjectID),
		zap.String("outcome", event.Outcome))
}

// Dropped returns how many events were discarded.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be written,
// or for ctx to end.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
