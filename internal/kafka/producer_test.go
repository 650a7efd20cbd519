package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, 4, zap.NewNop())
	p.Start(context.Background())

	for _, k := range []string{"a", "b", "c"} {
		if err := p.Publish(context.Background(), PartitionKey(k), []byte("v"), kafka.Header{Key: "x-event-type", Value: []byte("T")}); err != nil {
			t.Fatal(err)
		}
	}
	p.Close()
	p.Close()
	p.WaitClosed()

	if len(w.msgs) != 3 || !w.closed {
		t.Fatalf("msgs = %d closed = %v", len(w.msgs), w.closed)
	}
	if string(w.msgs[2].Key) != "c" || w.msgs[0].Headers[0].Key != "x-event-type" {
		t.Errorf("first = %+v", w.msgs[0])
	}
	if err := p.Publish(context.Background(), nil, nil); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("publish after close err = %v", err)
	}
}

func TestProducerSurvivesWriteErrors(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := NewProducerWithWriter(w, 1, zap.NewNop())
	p.Start(context.Background())
	if err := p.Publish(context.Background(), []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	p.Close()
	p.WaitClosed()
	if !w.closed {
		t.Error("writer not closed")
	}
}

func TestEnvelope(t *testing.T) {
	type payload struct {
		N int `json:"n"`
	}
	env := Envelope{EventID: "e1", EventType: "T", EventVersion: 1, Payload: MustMarshal(payload{N: 7})}
	got, err := UnmarshalEnvelope(MustMarshal(env))
	if err != nil {
		t.Fatal(err)
	}
	p, err := UnwrapPayload[payload](got.Payload)
	if err != nil || p.N != 7 || got.EventID != "e1" {
		t.Errorf("envelope = %+v payload = %+v err = %v", got, p, err)
	}
	if _, err := UnmarshalEnvelope([]byte("nope")); err == nil {
		t.Error("garbage decoded")
	}
}
