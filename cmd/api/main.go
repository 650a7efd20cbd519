package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kyanz/pos-reservations/internal/audit"
	"github.com/kyanz/pos-reservations/internal/auth"
	"github.com/kyanz/pos-reservations/internal/blob"
	"github.com/kyanz/pos-reservations/internal/config"
	"github.com/kyanz/pos-reservations/internal/httpx"
	"github.com/kyanz/pos-reservations/internal/inventory"
	kafkax "github.com/kyanz/pos-reservations/internal/kafka"
	"github.com/kyanz/pos-reservations/internal/logx"
	"github.com/kyanz/pos-reservations/internal/orders"
	"github.com/kyanz/pos-reservations/internal/orders/memstore"
	"github.com/kyanz/pos-reservations/internal/postgres"
	"github.com/kyanz/pos-reservations/internal/receipt"
	"github.com/kyanz/pos-reservations/internal/redisx"
	"github.com/kyanz/pos-reservations/internal/reservation"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logx.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET or JWT_SECRET_FILE is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var (
		store orders.Store
		pool  *pgxpool.Pool
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		store = memstore.New()
	default:
		pool, err = postgres.Connect(ctx, cfg.PostgresDSN, 16)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		store = &orders.Repo{DB: pool, TxOpts: postgres.TxOptions{
			LockTimeout: cfg.TxLockTimeout,
			MaxAttempts: cfg.TxMaxAttempts,
		}}
	}

	// Receipt numbering
	var numbers receipt.Numberer = receipt.Random{Prefix: cfg.ReceiptPrefix, Loc: cfg.Location}
	if cfg.ReceiptNumbering == "redis" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		numbers = &receipt.RedisSequence{Redis: rdb, Prefix: cfg.ReceiptPrefix, Loc: cfg.Location, Log: log.Named("receipt")}
	}

	// Blob storage, siap belakangan
	blobs := &blob.Handle{}
	if cfg.MongoURI == "memory" {
		blobs.Set(blob.NewMemory())
	} else {
		blobs.Init(ctx, log, func(ctx context.Context) (blob.Store, error) {
			octx, ocancel := context.WithTimeout(ctx, 5*time.Second)
			defer ocancel()
			return blob.OpenGridFS(octx, cfg.MongoURI, cfg.MongoDB, cfg.BlobBucket)
		})
	}

	// Audit
	sink, searcher, closeSink := auditStack(ctx, cfg, pool, log)
	emitter := audit.NewAsync(sink, cfg.AuditBuffer, log.Named("audit"))
	emitter.Start()

	coord := &reservation.Coordinator{
		Store:   store,
		Numbers: numbers,
		Issuer: &receipt.Issuer{
			Renderer: receipt.PDFRenderer{Title: "KYANZ Exhibition Receipt", Currency: "RM", Loc: cfg.Location},
			Blobs:    blobs,
		},
		Blobs: blobs,
		Audit: emitter,
		Log:   log.Named("reservation"),
	}
	inv := &inventory.Service{Store: store, Audit: emitter}

	router := httpx.NewRouter(log)
	(&httpx.PublicHandler{Orders: coord, Log: log}).Register(router)
	httpx.MountAPI(router, &httpx.Authenticator{Verifier: &auth.Verifier{Secret: []byte(cfg.JWTSecret)}},
		&httpx.OrdersHandler{
			Orders:         coord,
			Log:            log,
			MaxUploadBytes: cfg.UploadMaxBytes,
			MaxUploadFiles: cfg.UploadMaxFiles,
		},
		&httpx.ProductsHandler{Inventory: inv, Log: log},
		&httpx.AuditHandler{Search: searcher, Log: log},
	)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver), zap.String("audit_sink", cfg.AuditSink))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	emitter.Close() // drain audit buffer ke sink dulu
	closeSink()
	if s, err := blobs.Store(); err == nil {
		if g, ok := s.(*blob.GridFS); ok {
			_ = g.Close(ctx2)
		}
	}
	cancel()
}

// auditStack picks the sink events are appended to and the searcher behind
// GET /api/audit. Without postgres, searches run over an in-process log.
func auditStack(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, log *zap.Logger) (audit.Sink, audit.Searcher, func()) {
	var searcher audit.Searcher
	mem := &audit.Memory{}
	if pool != nil {
		searcher = &audit.PGSink{DB: pool}
	} else {
		searcher = mem
	}

	switch cfg.AuditSink {
	case "kafka":
		prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.AuditTopic, 1024, log.Named("kafka"))
		prod.Start(ctx)
		return &audit.KafkaSink{Producer: prod, Service: cfg.ServiceName}, searcher, func() {
			prod.Close()
			prod.WaitClosed()
		}
	case "postgres":
		if pool != nil {
			return &audit.PGSink{DB: pool}, searcher, func() {}
		}
		log.Warn("AUDIT_SINK=postgres without a postgres store; keeping audit in memory")
		return mem, mem, func() {}
	default:
		if pool == nil {
			return audit.Tee{audit.LogSink{Log: log.Named("audit")}, mem}, mem, func() {}
		}
		return audit.LogSink{Log: log.Named("audit")}, searcher, func() {}
	}
}
