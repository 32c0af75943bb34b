package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regmail/regmail/internal/domain/notification"
)

func TestExpoJitter_GrowsAndCaps(t *testing.T) {
	b := ExpoJitter{Base: 100 * time.Millisecond, Max: time.Second}

	require.Equal(t, 100*time.Millisecond, b.Next(0))
	require.Equal(t, 200*time.Millisecond, b.Next(1))
	require.Equal(t, 400*time.Millisecond, b.Next(2))
	require.Equal(t, time.Second, b.Next(10))
	require.Equal(t, 100*time.Millisecond, b.Next(-3))
}

func TestExpoJitter_JitterStaysInBounds(t *testing.T) {
	b := ExpoJitter{Base: 100 * time.Millisecond, Max: time.Second, Jitter: 0.2}
	for i := 0; i < 100; i++ {
		d := b.Next(1)
		require.GreaterOrEqual(t, d, 160*time.Millisecond)
		require.LessOrEqual(t, d, 240*time.Millisecond)
	}
}

func TestDo_StopsAfterAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("nope")
	}, Policy{Name: "t", Attempts: 3, Backoff: ExpoJitter{Base: time.Millisecond}})

	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_SucceedsMidway(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("nope")
		}
		return nil
	}, Policy{Name: "t", Attempts: 5, Backoff: ExpoJitter{Base: time.Millisecond}})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	exhausted := false
	sentinel := errors.New("fatal")
	err := Do(context.Background(), func() error {
		calls++
		return sentinel
	}, Policy{
		Name:      "t",
		Attempts:  5,
		Backoff:   ExpoJitter{Base: time.Millisecond},
		Retryable: func(err error) bool { return !errors.Is(err, sentinel) },
		OnExhaust: func(error) { exhausted = true },
	})

	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
	require.True(t, exhausted)
}

func TestDo_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, func() error {
		calls++
		return errors.New("nope")
	}, Policy{Name: "t", Attempts: 10, Backoff: ExpoJitter{Base: time.Hour}})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestMailPolicy_PermanentNotRetryable(t *testing.T) {
	p := MailPolicy(zap.NewNop(), 5, time.Millisecond, time.Millisecond, 0)

	require.False(t, p.Retryable(nil))
	require.False(t, p.Retryable(context.Canceled))
	require.False(t, p.Retryable(notification.Permanent("rejected", errors.New("550"))))
	require.True(t, p.Retryable(errors.New("connection refused")))
}

func TestOutboxPolicy_RetriesEverythingButCancel(t *testing.T) {
	p := OutboxPolicy(zap.NewNop())

	require.False(t, p.Retryable(nil))
	require.False(t, p.Retryable(context.Canceled))
	require.True(t, p.Retryable(errors.New("broker unavailable")))
}
