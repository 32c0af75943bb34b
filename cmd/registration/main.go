package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/regmail/regmail/internal/config/registration"
	"github.com/regmail/regmail/internal/obs"
	"github.com/regmail/regmail/internal/obs/retry"
	"github.com/regmail/regmail/internal/outbox"
	"github.com/regmail/regmail/internal/repository/kafka"
	pg "github.com/regmail/regmail/internal/repository/postgres"
	"github.com/regmail/regmail/internal/services/registration"
)

func wire(cfg *config.Config, db *pg.DB, events *kafka.NotifyEventsKafka, l *zap.Logger) (*outbox.Runner, *registration.Server) {
	outboxRepo := pg.NewOutboxRepo(db)
	transactor := pg.NewTransactor(db, l)

	dispatch := outbox.MakeGlobalOutboxHandler(events, retry.OutboxPolicy(l))
	outboxRunner := outbox.NewOutboxRunner(
		l,
		outboxRepo,
		dispatch,
		cfg.Outbox.Workers,
		cfg.Outbox.BatchSize,
		cfg.Outbox.Tick,
		cfg.Outbox.InProgressTTL,
	)

	uc := &registration.Usecase{
		Log:   l,
		Users: pg.NewUserRepo(db),
		Box:   outboxRepo,
		Tx:    transactor,
	}

	return outboxRunner, &registration.Server{Log: l, UC: uc}
}

func main() {
	// init
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting registration",
		zap.String("http_addr", cfg.Server.HTTPAddr),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.Strings("kafka_brokers", cfg.Out.Brokers),
		zap.String("kafka_topic", cfg.Out.Topic),
	)

	// otel
	otelCloser, err := obs.SetupOTel(root, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(root, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// kafka
	prod := kafka.NewProducer(cfg.Out.Brokers, cfg.Out.Topic).WithLogger(l)
	defer func() { _ = prod.Close() }()
	events := kafka.NewNotifyEventsKafka(prod)

	// wiring
	outboxRunner, srv := wire(cfg, db, events, l)

	// start
	outboxRunner.Start(root)

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	// loop
	select {
	case <-root.Done():
		l.Info("shutdown signal")
	case err = <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http serve", zap.Error(err))
		}
	}

	// graceful shutdown
	stop() // cancels root so the relay workers wind down
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
	_ = ms.Shutdown(shCtx)
	outboxRunner.Wait()
	l.Info("bye")
}
