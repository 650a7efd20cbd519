package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Sink and Searcher.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Append(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *Memory) Search(_ context.Context, q string, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lq := strings.ToLower(strings.TrimSpace(q))
	out := []Event{}
	for _, e := range m.events {
		if lq == "" ||
			strings.Contains(strings.ToLower(e.Actor), lq) ||
			strings.Contains(strings.ToLower(e.Action), lq) ||
			strings.Contains(strings.ToLower(e.EntityID), lq) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
