package blob

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memObject
}

type memObject struct {
	meta Meta
	data []byte
}

func NewMemory() *Memory {
	return &Memory{objects: map[string]memObject{}}
}

func (m *Memory) Put(_ context.Context, data []byte, meta Meta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := uuid.NewString()
	m.objects[ref] = memObject{meta: meta, data: append([]byte(nil), data...)}
	return ref, nil
}

func (m *Memory) Get(_ context.Context, ref string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[ref]
	if !ok {
		return Object{}, ErrNotFound
	}
	return Object{
		Meta: o.meta,
		Size: int64(len(o.data)),
		Body: io.NopCloser(bytes.NewReader(o.data)),
	}, nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
