package blob

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHandleReadiness(t *testing.T) {
	h := &Handle{}
	if h.Ready() {
		t.Fatal("zero handle is ready")
	}
	if _, err := h.Store(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}

	m := NewMemory()
	h.Set(m)
	s, err := h.Store()
	if err != nil || s != Store(m) {
		t.Fatalf("Store = %v, %v", s, err)
	}
}

func TestHandleInitRetries(t *testing.T) {
	h := &Handle{}
	var attempts atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.Init(ctx, zap.NewNop(), func(context.Context) (Store, error) {
		if attempts.Add(1) < 2 {
			return nil, errors.New("mongo down")
		}
		return NewMemory(), nil
	})

	deadline := time.Now().Add(3 * time.Second)
	for !h.Ready() {
		if time.Now().After(deadline) {
			t.Fatalf("not ready after %d attempts", attempts.Load())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	data := []byte("hello")

	ref, err := m.Put(ctx, data, Meta{Filename: "a.txt", ContentType: "text/plain"})
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 'J' // caller buffer reuse must not leak into the store

	obj, err := m.Get(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	defer obj.Body.Close()
	b, _ := io.ReadAll(obj.Body)
	if string(b) != "hello" || obj.Size != 5 || obj.Meta.Filename != "a.txt" {
		t.Errorf("object = %q %+v", b, obj.Meta)
	}
	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
