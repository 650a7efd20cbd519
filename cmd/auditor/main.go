package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kyanz/pos-reservations/internal/audit"
	"github.com/kyanz/pos-reservations/internal/config"
	kafkax "github.com/kyanz/pos-reservations/internal/kafka"
	"github.com/kyanz/pos-reservations/internal/logx"
	"github.com/kyanz/pos-reservations/internal/postgres"
	"github.com/kyanz/pos-reservations/internal/redisx"
	"go.uber.org/zap"
)

// auditor moves audit events from kafka into the audit_log table.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	service := cfg.ServiceName + "-auditor"
	log, err := logx.New(service, cfg.LogLevel)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, 8)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis untuk dedup
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	h := &audit.Consumer{
		Sink:        &audit.PGSink{DB: db},
		Redis:       rdb,
		ServiceName: service,
		Log:         log,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, cfg.AuditTopic, cfg.AuditWorkers, log.Named("kafka"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("audit consumer started",
			zap.String("group", cfg.AuditGroup),
			zap.String("topic", cfg.AuditTopic),
			zap.Int("workers", cfg.AuditWorkers))
		if err := cons.Start(ctx, h.HandleMessage); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-done
}
