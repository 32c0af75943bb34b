package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/regmail/regmail/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepo)(nil)

type NotificationRepo struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

const (
	qNotifUpsert = `
INSERT INTO notifications (idempotency_key, user_id, email_to, subject, text, email_from, send_date_email, status, last_error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (idempotency_key) DO UPDATE SET
    email_from      = EXCLUDED.email_from,
    send_date_email = COALESCE(notifications.send_date_email, EXCLUDED.send_date_email),
    status          = EXCLUDED.status,
    last_error      = EXCLUDED.last_error,
    updated_at      = now()
RETURNING id, send_date_email, created_at, updated_at;`

	qNotifByKey = `
SELECT id, idempotency_key, user_id, email_to, subject, text, email_from, send_date_email, status, last_error, created_at, updated_at
FROM notifications
WHERE idempotency_key = $1;`
)

// UpsertByKey inserts or finalizes the record for one idempotency key.
// send_date_email is write-once: the first non-null value wins.
func (r *NotificationRepo) UpsertByKey(ctx context.Context, n *notification.Record) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qNotifUpsert,
		n.IdempotencyKey,
		n.UserID,
		n.EmailTo,
		n.Subject,
		n.Text,
		n.EmailFrom,
		n.SendDateEmail,
		n.Status,
		nullIfEmpty(n.LastError),
	).Scan(&n.ID, &n.SendDateEmail, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return fmt.Errorf("upsert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) FindByKey(ctx context.Context, key string) (*notification.Record, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var n notification.Record
	var lastErr *string
	err := r.db.Pool.QueryRow(ctx, qNotifByKey, key).Scan(
		&n.ID,
		&n.IdempotencyKey,
		&n.UserID,
		&n.EmailTo,
		&n.Subject,
		&n.Text,
		&n.EmailFrom,
		&n.SendDateEmail,
		&n.Status,
		&lastErr,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notification.ErrNotFound
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	if lastErr != nil {
		n.LastError = *lastErr
	}
	return &n, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
