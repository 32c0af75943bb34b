package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/regmail/regmail/internal/domain/notification"
	"github.com/regmail/regmail/internal/domain/outbox"
	"github.com/regmail/regmail/internal/domain/user"
	"github.com/regmail/regmail/internal/repository/postgres"
)

var (
	ErrEmailExists  = errors.New("email already registered")
	ErrInvalidInput = errors.New("name and a valid email are required")
)

const welcomeSubject = "Registration completed successfully!"

func welcomeText(name string) string {
	return name + ", welcome! Thank you for registering."
}

// Usecase registers a user and stages the welcome notification in one
// database transaction. The relay publishes staged messages afterwards, so
// either both the user row and the queued notification exist or neither
// does.
type Usecase struct {
	Log   *zap.Logger
	Users user.Repo
	Box   outbox.Repository
	Tx    postgres.Transactor
}

func (u *Usecase) Register(ctx context.Context, name, email string) (*user.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidInput
	}

	newUser := &user.User{
		ID:    uuid.New(),
		Name:  name,
		Email: email,
	}
	req := &notification.Request{
		IdempotencyKey: uuid.NewString(),
		UserID:         newUser.ID,
		EmailTo:        email,
		Subject:        welcomeSubject,
		Text:           welcomeText(name),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode notification request: %w", err)
	}

	err = u.Tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := u.Users.Create(txCtx, newUser); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := u.Box.Enqueue(txCtx, req.IdempotencyKey, outbox.KindWelcomeEmail, data); err != nil {
			return fmt.Errorf("enqueue welcome email: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, postgres.ErrConflict) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	u.Log.Info("user registered",
		zap.String("user_id", newUser.ID.String()),
		zap.String("idempotency_key", req.IdempotencyKey),
	)
	return newUser, nil
}

func (u *Usecase) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return u.Users.GetByID(ctx, id)
}
