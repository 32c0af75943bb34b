package notifier

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/regmail/regmail/internal/domain/notification"
	kafkax "github.com/regmail/regmail/internal/repository/kafka"
)

// Runner drives one consumer group worker per Consumer it is given. All
// consumers share the same group, so Kafka spreads partitions across them
// and ordering per user is preserved.
type Runner struct {
	log  *zap.Logger
	cons []*kafkax.Consumer
	uc   *Handler

	mConsumed     prometheus.Counter
	mSent         prometheus.Counter
	mDuplicates   prometheus.Counter
	mRejected     prometheus.Counter
	mDeadLettered prometheus.Counter
	mDropped      prometheus.Counter
	mErrors       prometheus.Counter
}

func NewRunner(log *zap.Logger, cons []*kafkax.Consumer, uc *Handler) *Runner {
	return &Runner{
		log:  log,
		cons: cons,
		uc:   uc,
		mConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_messages_consumed_total",
			Help: "Notification requests consumed",
		}),
		mSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_emails_sent_total",
			Help: "Emails sent",
		}),
		mDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_duplicates_skipped_total",
			Help: "Redeliveries skipped because the record was already finalized",
		}),
		mRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_permanent_failures_total",
			Help: "Requests finalized as ERROR on a permanent failure",
		}),
		mDeadLettered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_dead_lettered_total",
			Help: "Requests parked on the dead-letter topic",
		}),
		mDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_dropped_total",
			Help: "Undecodable or unroutable requests dropped as poison",
		}),
		mErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "notifier_errors_total",
			Help: "Handler errors (message left unacknowledged)",
		}),
	}
}

func (r *Runner) handle(ctx context.Context, _ []byte, req *notification.Request) error {
	r.mConsumed.Inc()
	out, err := r.uc.HandleRequest(ctx, req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.mErrors.Inc()
		}
		return err
	}
	switch out {
	case OutcomeSent:
		r.mSent.Inc()
	case OutcomeDuplicate:
		r.mDuplicates.Inc()
	case OutcomeRejected:
		r.mRejected.Inc()
	case OutcomeDeadLettered:
		r.mDeadLettered.Inc()
	case OutcomeDropped:
		r.mDropped.Inc()
	}
	return nil
}

// Run blocks until the context is canceled or a consumer fails.
func (r *Runner) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(r.log, r.handle)

	errCh := make(chan error, len(r.cons))
	for _, c := range r.cons {
		go func(c *kafkax.Consumer) {
			errCh <- c.Consume(ctx, handler)
		}(c)
	}

	var first error
	for range r.cons {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && first == nil {
			first = err
		}
	}
	if first != nil {
		r.log.Warn("kafka consume", zap.Error(first))
		return first
	}
	return ctx.Err()
}
