package receipt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// scriptedRedis answers INCR and EXPIRE in-process so no server is needed.
type scriptedRedis struct {
	counters  map[string]int64
	expireErr error
	expires   int
}

func (h *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		switch c := cmd.(type) {
		case *redis.IntCmd:
			if c.Name() == "incr" {
				key := c.Args()[1].(string)
				h.counters[key]++
				c.SetVal(h.counters[key])
				return nil
			}
		case *redis.BoolCmd:
			if c.Name() == "expire" {
				h.expires++
				if h.expireErr != nil {
					c.SetErr(h.expireErr)
					return h.expireErr
				}
				c.SetVal(true)
				return nil
			}
		}
		return next(ctx, cmd)
	}
}

func (h *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newScripted(t *testing.T, expireErr error) (*redis.Client, *scriptedRedis) {
	t.Helper()
	h := &scriptedRedis{counters: map[string]int64{}, expireErr: expireErr}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	rdb.AddHook(h)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, h
}

func TestRedisSequencePerDay(t *testing.T) {
	rdb, h := newScripted(t, nil)
	s := &RedisSequence{Redis: rdb, Prefix: "KYZ", Loc: time.UTC}
	ctx := context.Background()
	day1 := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	want := []string{"KYZ-20260314-0001", "KYZ-20260314-0002", "KYZ-20260315-0001"}
	at := []time.Time{day1, day1.Add(time.Hour), day1.Add(24 * time.Hour)}
	for i := range want {
		got, err := s.Next(ctx, at[i])
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want[i] {
			t.Errorf("Next #%d = %q, want %q", i, got, want[i])
		}
	}
	if h.expires != 2 {
		t.Errorf("expire called %d times, want once per new day key", h.expires)
	}
}

func TestRedisSequenceLogsMissingTTL(t *testing.T) {
	rdb, _ := newScripted(t, errors.New("READONLY replica"))
	core, logs := observer.New(zap.WarnLevel)
	s := &RedisSequence{Redis: rdb, Prefix: "KYZ", Loc: time.UTC, Log: zap.New(core)}

	got, err := s.Next(context.Background(), issued)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != "KYZ-20260314-0001" {
		t.Errorf("Next = %q", got)
	}
	entries := logs.FilterMessage("receipt sequence ttl not set").All()
	if len(entries) != 1 {
		t.Fatalf("warn entries = %d, want 1", len(entries))
	}
	if key := entries[0].ContextMap()["key"]; key != "receipt:seq:KYZ:20260314" {
		t.Errorf("logged key = %v", key)
	}
}
