package audit

import (
	"context"
	"fmt"

	kafkax "github.com/kyanz/pos-reservations/internal/kafka"
	"github.com/kyanz/pos-reservations/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventTypeAudit = "AuditRecorded"

// KafkaSink publishes each event in an Envelope, keyed by entity id.
type KafkaSink struct {
	Producer *kafkax.Producer
	Service  string
}

func (s *KafkaSink) Append(ctx context.Context, e Event) error {
	env := kafkax.Envelope{
		EventID:       e.ID,
		EventType:     EventTypeAudit,
		EventVersion:  1,
		OccurredAt:    e.At,
		Producer:      s.Service,
		CorrelationID: e.EntityID,
		Payload:       kafkax.MustMarshal(e),
	}
	return s.Producer.Publish(ctx, kafkax.PartitionKey(e.EntityID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventTypeAudit)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// Consumer moves audit envelopes from kafka into a Sink.
type Consumer struct {
	Sink        Sink
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

// HandleMessage dipasang sebagai handler kafka consumer.
func (c *Consumer) HandleMessage(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// pesan rusak tidak akan pernah berhasil; commit saja
		c.Log.Error("audit envelope undecodable", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != EventTypeAudit {
		return nil
	} // ignore

	dkey := fmt.Sprintf(redisx.KeyDedup, c.ServiceName, env.EventID)
	if c.Redis != nil {
		if exists, _ := redisx.Exists(ctx, c.Redis, dkey); exists {
			return nil
		}
	}

	e, err := kafkax.UnwrapPayload[Event](env.Payload)
	if err != nil {
		c.Log.Error("audit payload undecodable", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if e.ID == "" {
		e.ID = env.EventID
	}
	if err := c.Sink.Append(ctx, e); err != nil {
		return fmt.Errorf("append audit %s: %w", e.ID, err)
	}
	if c.Redis != nil {
		_ = c.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}

// LogSink writes events to the log only.
type LogSink struct{ Log *zap.Logger }

func (s LogSink) Append(_ context.Context, e Event) error {
	s.Log.Info("audit",
		zap.String("id", e.ID),
		zap.Time("at", e.At),
		zap.String("actor", e.Actor),
		zap.String("role", e.Role),
		zap.String("action", e.Action),
		zap.String("entity_type", e.EntityType),
		zap.String("entity_id", e.EntityID),
		zap.Any("meta", e.Meta),
	)
	return nil
}
