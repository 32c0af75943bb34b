package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/regmail/regmail/internal/domain/kafka"
	"github.com/regmail/regmail/internal/domain/notification"
	"github.com/regmail/regmail/internal/obs/retry"
)

// Outcome is what one delivery attempt cycle concluded for a request.
type Outcome int

const (
	OutcomeSent Outcome = iota
	// OutcomeDuplicate means the record was already finalized; nothing
	// was sent.
	OutcomeDuplicate
	// OutcomeRejected means the mail server refused the message for good
	// and the record was finalized as ERROR without dead-lettering.
	OutcomeRejected
	// OutcomeDeadLettered means transient retries ran out and the request
	// was parked on the dead-letter topic.
	OutcomeDeadLettered
	// OutcomeDropped means the payload was unusable and was acknowledged
	// without any record being written.
	OutcomeDropped
)

// Handler owns the per-request state machine: look up the record by
// idempotency key, skip finalized duplicates, mark PENDING, attempt
// delivery under the retry policy and finalize as SENT or ERROR. A
// returned error means the message must not be acknowledged.
type Handler struct {
	Log   *zap.Logger
	Store notification.Repo
	Mail  notification.Mailer
	Dead  kafka.DeadLetters
	Clock notification.Clock

	// From is stamped on every record as the sender identity in use when
	// the attempts were made.
	From string
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration
	Policy      retry.Policy
}

func (h *Handler) HandleRequest(ctx context.Context, req *notification.Request) (Outcome, error) {
	log := h.Log.With(
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.String("email_to", req.EmailTo),
	)

	if req.IdempotencyKey == "" || req.EmailTo == "" {
		log.Warn("request missing idempotency key or recipient; dropping")
		return OutcomeDropped, nil
	}

	existing, err := h.Store.FindByKey(ctx, req.IdempotencyKey)
	switch {
	case err == nil && existing.Status.Terminal():
		log.Info("record already finalized; skipping", zap.String("status", string(existing.Status)))
		return OutcomeDuplicate, nil
	case err != nil && !errors.Is(err, notification.ErrNotFound):
		return 0, fmt.Errorf("find record: %w", err)
	}

	rec := &notification.Record{
		IdempotencyKey: req.IdempotencyKey,
		UserID:         req.UserID,
		EmailTo:        req.EmailTo,
		Subject:        req.Subject,
		Text:           req.Text,
		EmailFrom:      h.From,
		Status:         notification.StatusPending,
	}
	if existing != nil {
		rec.SendDateEmail = existing.SendDateEmail
	}
	if rec.SendDateEmail == nil {
		now := h.Clock.Now().UTC()
		rec.SendDateEmail = &now
	}

	// The PENDING record goes in before the first attempt so that a crash
	// mid-send leaves a visible in-flight row instead of nothing.
	if err := h.Store.UpsertByKey(ctx, rec); err != nil {
		return 0, fmt.Errorf("mark pending: %w", err)
	}

	sendErr := retry.Do(ctx, func() error {
		actx, cancel := context.WithTimeout(ctx, h.SendTimeout)
		defer cancel()
		return h.Mail.Send(actx, req.EmailTo, req.Subject, req.Text)
	}, h.Policy)

	outcome := OutcomeSent
	switch {
	case sendErr == nil:
		rec.Status = notification.StatusSent
		rec.LastError = ""
	case errors.Is(sendErr, context.Canceled):
		// Shutdown mid-attempt: leave the record PENDING and let the next
		// delivery pick it up.
		return 0, sendErr
	case notification.IsPermanent(sendErr):
		outcome = OutcomeRejected
		rec.Status = notification.StatusError
		rec.LastError = sendErr.Error()
		log.Warn("permanent delivery failure", zap.Error(sendErr))
	default:
		outcome = OutcomeDeadLettered
		rec.Status = notification.StatusError
		rec.LastError = sendErr.Error()
		if err := h.Dead.PublishDeadLetter(ctx, req, sendErr.Error()); err != nil {
			// The request must not vanish: without the dead letter we keep
			// the message unacknowledged and go through another cycle.
			return 0, fmt.Errorf("publish dead letter: %w", err)
		}
		log.Warn("retries exhausted; request dead-lettered", zap.Error(sendErr))
	}

	if err := h.Store.UpsertByKey(ctx, rec); err != nil {
		if rec.Status == notification.StatusSent {
			// Redelivering now would mail the user twice. Acknowledge and
			// leave the stale PENDING row for operators.
			log.Error("record finalize failed after successful send; acknowledging anyway", zap.Error(err))
			return OutcomeSent, nil
		}
		return 0, fmt.Errorf("finalize record: %w", err)
	}
	return outcome, nil
}
