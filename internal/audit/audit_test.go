package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkax "github.com/kyanz/pos-reservations/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type flakySink struct {
	mu    sync.Mutex
	calls int
	ok    []Event
}

func (s *flakySink) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	switch e.Action {
	case "FAIL":
		return errors.New("sink down")
	case "PANIC":
		panic("sink exploded")
	}
	s.ok = append(s.ok, e)
	return nil
}

func TestAsyncSwallowsSinkFailures(t *testing.T) {
	sink := &flakySink{}
	a := NewAsync(sink, 16, zap.NewNop())
	a.Start()

	a.Emit(context.Background(), Event{Action: "FAIL"})
	a.Emit(context.Background(), Event{Action: "PANIC"})
	a.Emit(context.Background(), Event{Action: ActionOrderCancel, EntityID: "o1"})
	a.Close()

	if sink.calls != 3 {
		t.Errorf("calls = %d, want 3", sink.calls)
	}
	if len(sink.ok) != 1 {
		t.Fatalf("recorded = %d, want 1", len(sink.ok))
	}
	e := sink.ok[0]
	if e.ID == "" || e.At.IsZero() || e.Meta == nil {
		t.Errorf("defaults not filled: %+v", e)
	}

	// closed emitter drops without panicking
	a.Emit(context.Background(), Event{Action: ActionOrderEdit})
}

type blockingSink struct{ release chan struct{} }

func (s blockingSink) Append(context.Context, Event) error {
	<-s.release
	return nil
}

func TestAsyncNeverBlocks(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	a := NewAsync(sink, 1, zap.NewNop())
	a.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			a.Emit(context.Background(), Event{Action: ActionOrderEdit})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
	close(sink.release)
	a.Close()
}

func TestMemorySearch(t *testing.T) {
	m := &Memory{}
	base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	for i, e := range []Event{
		{Actor: "pat", Action: ActionOrderCreateReserve, EntityID: "o-1"},
		{Actor: "cass", Action: ActionOrderPaidReceipt, EntityID: "o-1"},
		{Actor: "system", Action: ActionEmailPlaceholder, EntityID: "o-2"},
	} {
		e.At = base.Add(time.Duration(i) * time.Minute)
		_ = m.Append(context.Background(), e)
	}

	tests := []struct {
		q    string
		want []string
	}{
		{"", []string{"system", "cass", "pat"}},
		{"CASS", []string{"cass"}},
		{"order_", []string{"cass", "pat"}},
		{"o-2", []string{"system"}},
	}
	for _, tt := range tests {
		got, _ := m.Search(context.Background(), tt.q, 0)
		var actors []string
		for _, e := range got {
			actors = append(actors, e.Actor)
		}
		if len(actors) != len(tt.want) {
			t.Errorf("q=%q actors = %v, want %v", tt.q, actors, tt.want)
			continue
		}
		for i := range actors {
			if actors[i] != tt.want[i] {
				t.Errorf("q=%q actors = %v, want %v", tt.q, actors, tt.want)
				break
			}
		}
	}
	if got, _ := m.Search(context.Background(), "", 1); len(got) != 1 {
		t.Errorf("limit ignored: %d", len(got))
	}
}

func TestTee(t *testing.T) {
	a, b := &Memory{}, &Memory{}
	err := Tee{a, &flakySink{}, b}.Append(context.Background(), Event{Action: "FAIL"})
	if err == nil {
		t.Error("tee hid the failing sink")
	}
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Error("tee skipped a sink")
	}
}

type capture struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (c *capture) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *capture) Close() error { return nil }

func TestKafkaRoundTripThroughConsumer(t *testing.T) {
	w := &capture{}
	prod := kafkax.NewProducerWithWriter(w, 8, zap.NewNop())
	prod.Start(context.Background())

	sink := &KafkaSink{Producer: prod, Service: "pos-api"}
	in := Event{
		ID: "ev-1", At: time.Date(2026, 3, 14, 1, 2, 3, 0, time.UTC),
		Actor: "cass", Role: "cashier", Action: ActionOrderCancel,
		EntityType: EntityOrder, EntityID: "o-9", Meta: map[string]any{"phone": "0111"},
	}
	if err := sink.Append(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	prod.Close()
	prod.WaitClosed()

	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "o-9" {
		t.Fatalf("messages = %+v", w.msgs)
	}

	mem := &Memory{}
	c := &Consumer{Sink: mem, ServiceName: "auditor", Log: zap.NewNop()}
	if err := c.HandleMessage(context.Background(), w.msgs[0]); err != nil {
		t.Fatal(err)
	}
	got := mem.Events()
	if len(got) != 1 {
		t.Fatalf("appended = %d", len(got))
	}
	out := got[0]
	if out.ID != in.ID || out.Actor != in.Actor || out.EntityID != in.EntityID || !out.At.Equal(in.At) || out.Meta["phone"] != "0111" {
		t.Errorf("event = %+v", out)
	}
}

func TestConsumerSkipsForeignAndBroken(t *testing.T) {
	mem := &Memory{}
	c := &Consumer{Sink: mem, ServiceName: "auditor", Log: zap.NewNop()}

	other, _ := json.Marshal(kafkax.Envelope{EventID: "x", EventType: "OrderCreated"})
	for _, v := range [][]byte{[]byte("{not json"), other} {
		if err := c.HandleMessage(context.Background(), kafkago.Message{Value: v}); err != nil {
			t.Errorf("err = %v, want nil (commit and skip)", err)
		}
	}
	if len(mem.Events()) != 0 {
		t.Errorf("appended %d events", len(mem.Events()))
	}
}
