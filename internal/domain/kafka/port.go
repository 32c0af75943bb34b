package kafka

import (
	"context"

	"github.com/regmail/regmail/internal/domain/notification"
)

type NotifyEvents interface {
	PublishWelcomeEmail(ctx context.Context, req *notification.Request) error
}

type DeadLetters interface {
	PublishDeadLetter(ctx context.Context, req *notification.Request, reason string) error
}
