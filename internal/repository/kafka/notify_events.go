package kafka

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/regmail/regmail/internal/domain/kafka"
	"github.com/regmail/regmail/internal/domain/notification"
)

type NotifyEventsKafka struct {
	p *Producer
}

func NewNotifyEventsKafka(p *Producer) *NotifyEventsKafka { return &NotifyEventsKafka{p: p} }

var _ kafka.NotifyEvents = (*NotifyEventsKafka)(nil)

// PublishWelcomeEmail keys the message by user id so all notifications for
// one user land on one partition.
func (e *NotifyEventsKafka) PublishWelcomeEmail(ctx context.Context, req *notification.Request) error {
	return e.p.PublishJSON(ctx, []byte(req.UserID.String()), req)
}

type DeadLettersKafka struct {
	p *Producer
}

func NewDeadLettersKafka(p *Producer) *DeadLettersKafka { return &DeadLettersKafka{p: p} }

var _ kafka.DeadLetters = (*DeadLettersKafka)(nil)

// PublishDeadLetter forwards the original request unchanged; the final
// delivery error rides in a header for operator inspection.
func (e *DeadLettersKafka) PublishDeadLetter(ctx context.Context, req *notification.Request, reason string) error {
	return e.p.PublishJSON(ctx, []byte(req.UserID.String()), req,
		kafkago.Header{Key: "x-original-error", Value: []byte(reason)},
	)
}
