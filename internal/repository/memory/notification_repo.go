// Package memory provides the reference in-memory notification record
// store. It is used by unit tests and by deployments that do not need the
// records to outlive the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/regmail/regmail/internal/domain/notification"
)

type NotificationRepo struct {
	mu     sync.RWMutex
	byKey  map[string]notification.Record
	nextID int64
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{byKey: make(map[string]notification.Record), nextID: 1}
}

var _ notification.Repo = (*NotificationRepo)(nil)

func (r *NotificationRepo) UpsertByKey(_ context.Context, n *notification.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if cur, ok := r.byKey[n.IdempotencyKey]; ok {
		n.ID = cur.ID
		n.CreatedAt = cur.CreatedAt
		// send_date_email is write-once
		if cur.SendDateEmail != nil {
			n.SendDateEmail = cur.SendDateEmail
		}
	} else {
		n.ID = r.nextID
		r.nextID++
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	r.byKey[n.IdempotencyKey] = *n
	return nil
}

func (r *NotificationRepo) FindByKey(_ context.Context, key string) (*notification.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byKey[key]
	if !ok {
		return nil, notification.ErrNotFound
	}
	cp := rec
	return &cp, nil
}
