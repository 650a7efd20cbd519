package blob

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type box struct{ s Store }

// Handle is a store that becomes available some time after startup.
// Until then Store returns ErrNotReady; callers never wait on it.
type Handle struct {
	v atomic.Pointer[box]
}

// Ready wraps an already open store.
func Ready(s Store) *Handle {
	h := &Handle{}
	h.Set(s)
	return h
}

func (h *Handle) Set(s Store) { h.v.Store(&box{s: s}) }

func (h *Handle) Ready() bool { return h.v.Load() != nil }

func (h *Handle) Store() (Store, error) {
	b := h.v.Load()
	if b == nil {
		return nil, ErrNotReady
	}
	return b.s, nil
}

// Init opens the store in the background, retrying with capped backoff
// until it succeeds or ctx is done.
func (h *Handle) Init(ctx context.Context, log *zap.Logger, open func(ctx context.Context) (Store, error)) {
	go func() {
		delay := 500 * time.Millisecond
		for attempt := 1; ; attempt++ {
			s, err := open(ctx)
			if err == nil {
				h.Set(s)
				log.Info("blob storage ready", zap.Int("attempt", attempt))
				return
			}
			log.Warn("blob storage not ready", zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay < 10*time.Second {
				delay *= 2
			}
		}
	}()
}
