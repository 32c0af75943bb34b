package notification

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindByKey when no record exists for the key.
var ErrNotFound = errors.New("notification record not found")

// Repo is the notification record store. Writes are keyed by idempotency
// key and must be safe for concurrent use; a read after an upsert of the
// same key observes the write.
type Repo interface {
	UpsertByKey(ctx context.Context, r *Record) error
	FindByKey(ctx context.Context, key string) (*Record, error)
}

// Mailer sends a single email. Failures are classified through
// IsPermanent: permanent failures will not succeed on retry, everything
// else is assumed transient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Clock interface {
	Now() time.Time
}
