package receipt

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kyanz/pos-reservations/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Numberer allocates receipt numbers of the form PREFIX-YYYYMMDD-NNNN.
type Numberer interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

func format(prefix string, day string, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day, n)
}

// RedisSequence gives each day its own INCR counter, so numbers are unique
// per prefix and day. A number allocated for a payment that later aborts
// is not reused; receipt numbers may have gaps.
type RedisSequence struct {
	Redis  *redis.Client
	Prefix string
	Loc    *time.Location
	Log    *zap.Logger
}

func (s *RedisSequence) Next(ctx context.Context, at time.Time) (string, error) {
	loc := s.Loc
	if loc == nil {
		loc = time.Local
	}
	day := at.In(loc).Format("20060102")
	key := fmt.Sprintf(redisx.KeyReceiptSeq, s.Prefix, day)
	n, err := s.Redis.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("receipt sequence: %w", err)
	}
	if n == 1 {
		if err := s.Redis.Expire(ctx, key, redisx.TTLReceiptSeq).Err(); err != nil && s.Log != nil {
			// nomor tetap dipakai; key ini tidak akan kedaluwarsa sendiri
			s.Log.Warn("receipt sequence ttl not set", zap.String("key", key), zap.Error(err))
		}
	}
	return format(s.Prefix, day, n), nil
}

// Random picks a 4-digit suffix at random. Collisions within a day are
// possible and not detected.
type Random struct {
	Prefix string
	Loc    *time.Location
}

func (r Random) Next(_ context.Context, at time.Time) (string, error) {
	loc := r.Loc
	if loc == nil {
		loc = time.Local
	}
	return format(r.Prefix, at.In(loc).Format("20060102"), rand.Int64N(10000)), nil
}
