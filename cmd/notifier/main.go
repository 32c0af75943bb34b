package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/regmail/regmail/internal/config/notifier"
	"github.com/regmail/regmail/internal/obs"
	"github.com/regmail/regmail/internal/obs/retry"
	"github.com/regmail/regmail/internal/repository/kafka"
	pg "github.com/regmail/regmail/internal/repository/postgres"
	"github.com/regmail/regmail/internal/services/notifier"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func wire(cfg *config.Config, db *pg.DB, cons []*kafka.Consumer, dead *kafka.DeadLettersKafka, l *zap.Logger) *notifier.Runner {
	mailer := notifier.NewMailer(cfg.SMTP).WithLogger(l)

	uc := &notifier.Handler{
		Log:         l,
		Store:       pg.NewNotificationRepo(db),
		Mail:        mailer,
		Dead:        dead,
		Clock:       systemClock{},
		From:        cfg.SMTP.From,
		SendTimeout: cfg.SMTP.Timeout,
		Policy:      retry.MailPolicy(l, cfg.Retry.Attempts, cfg.Retry.Base, cfg.Retry.Max, cfg.Retry.Jitter),
	}

	return notifier.NewRunner(l, cons, uc)
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
	l.Info("starting notifier",
		zap.Any("kafka_in", cfg.In),
		zap.String("dlq_topic", cfg.DLQ.Topic),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.String("smtp_addr", cfg.SMTP.Addr),
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
	l.Info("db connected")

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// kafka
	workers := cfg.In.Workers
	if workers < 1 {
		workers = 1
	}
	cons := make([]*kafka.Consumer, 0, workers)
	for i := 0; i < workers; i++ {
		c := kafka.BootstrapConsumer(root, cfg.In.AsConsumerConfig(), l).WithLogger(l)
		defer func() { _ = c.Close() }()
		cons = append(cons, c)
	}
	l.Info("kafka consumers initialized", zap.Int("workers", workers))

	dlqProd := kafka.NewProducer(cfg.In.Brokers, cfg.DLQ.Topic).WithLogger(l)
	defer func() { _ = dlqProd.Close() }()
	dead := kafka.NewDeadLettersKafka(dlqProd)

	// start
	runner := wire(cfg, db, cons, dead, l)
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(root) }()

	// loop
	select {
	case <-root.Done():
		l.Info("shutdown signal")
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	// graceful metrics server shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
