package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kyanz/pos-reservations/internal/metrics"
	"go.uber.org/zap"
)

// Async buffers events and appends them to a Sink from one goroutine.
// Emit never blocks: a full buffer drops the event and logs it.
type Async struct {
	sink    Sink
	log     *zap.Logger
	timeout time.Duration
	inbox   chan Event
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(sink Sink, buf int, log *zap.Logger) *Async {
	if buf <= 0 {
		buf = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Async{
		sink:    sink,
		log:     log,
		timeout: 5 * time.Second,
		inbox:   make(chan Event, buf),
		done:    make(chan struct{}),
	}
}

func (a *Async) Start() {
	go func() {
		defer close(a.done)
		for e := range a.inbox {
			a.append(e)
		}
	}()
}

func (a *Async) append(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("audit sink panic", zap.String("action", e.Action), zap.Any("panic", r))
			metrics.AuditEvents.WithLabelValues("failed").Inc()
		}
	}()
	if err := a.sink.Append(ctx, e); err != nil {
		a.log.Warn("audit append failed",
			zap.String("action", e.Action),
			zap.String("entity_id", e.EntityID),
			zap.Error(err))
		metrics.AuditEvents.WithLabelValues("failed").Inc()
		return
	}
	metrics.AuditEvents.WithLabelValues("recorded").Inc()
}

func (a *Async) Emit(_ context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.log.Warn("audit emitter closed, event dropped", zap.String("action", e.Action))
		metrics.AuditEvents.WithLabelValues("dropped").Inc()
		return
	}
	select {
	case a.inbox <- e:
	default:
		a.log.Warn("audit buffer full, event dropped", zap.String("action", e.Action), zap.String("entity_id", e.EntityID))
		metrics.AuditEvents.WithLabelValues("dropped").Inc()
	}
}

// Close stops accepting events and waits until the buffer is drained.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.inbox)
	}
	a.mu.Unlock()
	<-a.done
}
