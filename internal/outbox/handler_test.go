package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regmail/regmail/internal/domain/notification"
	"github.com/regmail/regmail/internal/domain/outbox"
	"github.com/regmail/regmail/internal/obs/retry"
)

type fakePublisher struct {
	published []*notification.Request
	script    []error
}

func (p *fakePublisher) PublishWelcomeEmail(_ context.Context, req *notification.Request) error {
	if len(p.script) > 0 {
		err := p.script[0]
		p.script = p.script[1:]
		if err != nil {
			return err
		}
	}
	p.published = append(p.published, req)
	return nil
}

func fastPolicy(attempts int) retry.Policy {
	p := retry.OutboxPolicy(zap.NewNop())
	p.Attempts = attempts
	p.Backoff = retry.ExpoJitter{Base: time.Millisecond, Max: 2 * time.Millisecond}
	return p
}

func TestGlobalHandler_WelcomeEmail_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	dispatch := MakeGlobalOutboxHandler(pub, fastPolicy(3))

	h, err := dispatch(outbox.KindWelcomeEmail)
	require.NoError(t, err)

	req := &notification.Request{
		IdempotencyKey: uuid.NewString(),
		UserID:         uuid.New(),
		EmailTo:        "a@example.com",
		Subject:        "Registration completed successfully!",
		Text:           "A, welcome! Thank you for registering.",
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	require.NoError(t, h(context.Background(), data))
	require.Len(t, pub.published, 1)
	require.Equal(t, req.IdempotencyKey, pub.published[0].IdempotencyKey)
	require.Equal(t, req.EmailTo, pub.published[0].EmailTo)
}

func TestGlobalHandler_RetriesTransientPublishFailure(t *testing.T) {
	pub := &fakePublisher{script: []error{errors.New("broker unavailable"), nil}}
	dispatch := MakeGlobalOutboxHandler(pub, fastPolicy(3))

	h, err := dispatch(outbox.KindWelcomeEmail)
	require.NoError(t, err)

	data, _ := json.Marshal(&notification.Request{IdempotencyKey: "k"})
	require.NoError(t, h(context.Background(), data))
	require.Len(t, pub.published, 1)
}

func TestGlobalHandler_ExhaustedReturnsError(t *testing.T) {
	boom := errors.New("broker down")
	pub := &fakePublisher{script: []error{boom, boom}}
	dispatch := MakeGlobalOutboxHandler(pub, fastPolicy(2))

	h, err := dispatch(outbox.KindWelcomeEmail)
	require.NoError(t, err)

	data, _ := json.Marshal(&notification.Request{IdempotencyKey: "k"})
	require.ErrorIs(t, h(context.Background(), data), boom)
	require.Empty(t, pub.published)
}

func TestGlobalHandler_MalformedPayload(t *testing.T) {
	pub := &fakePublisher{}
	dispatch := MakeGlobalOutboxHandler(pub, fastPolicy(1))

	h, err := dispatch(outbox.KindWelcomeEmail)
	require.NoError(t, err)
	require.Error(t, h(context.Background(), []byte("{not json")))
	require.Empty(t, pub.published)
}

func TestGlobalHandler_UnknownKind(t *testing.T) {
	dispatch := MakeGlobalOutboxHandler(&fakePublisher{}, fastPolicy(1))
	_, err := dispatch(outbox.Kind(99))
	require.Error(t, err)
}
