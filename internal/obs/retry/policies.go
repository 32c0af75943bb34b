package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/regmail/regmail/internal/domain/notification"
)

// OutboxPolicy governs relay publishes to Kafka. Every failure there is
// worth retrying.
func OutboxPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "outbox_publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("outbox retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox retries exhausted", zap.Error(err))
			}
		},
	}
}

// MailPolicy governs delivery attempts for one queued request. Permanent
// failures are never retried; the classification comes from the mailer and
// is not second-guessed here.
func MailPolicy(log *zap.Logger, attempts int, base, max time.Duration, jitter float64) Policy {
	return Policy{
		Name:     "mail_send",
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: base, Max: max, Jitter: jitter},
		Retryable: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return false
			}
			return !notification.IsPermanent(err)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("mail send retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}
