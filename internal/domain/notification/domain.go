package notification

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusError   Status = "ERROR"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool { return s == StatusSent || s == StatusError }

// Request is the message published to the queue for one registration event.
// Fields are added in a forward-compatible way; consumers must ignore
// unknown keys.
type Request struct {
	IdempotencyKey string    `json:"idempotency_key"`
	UserID         uuid.UUID `json:"user_id"`
	EmailTo        string    `json:"email_to"`
	Subject        string    `json:"subject"`
	Text           string    `json:"text"`
}

// Record is the persisted outcome of delivery attempts for one request.
// SendDateEmail timestamps the first attempt, not the outcome.
type Record struct {
	ID             int64      `json:"id"`
	IdempotencyKey string     `json:"idempotency_key"`
	UserID         uuid.UUID  `json:"user_id"`
	EmailTo        string     `json:"email_to"`
	Subject        string     `json:"subject"`
	Text           string     `json:"text"`
	EmailFrom      string     `json:"email_from"`
	SendDateEmail  *time.Time `json:"send_date_email,omitempty"`
	Status         Status     `json:"status"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
