package notification

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermanentError(t *testing.T) {
	inner := errors.New("550 no such user")
	err := Permanent("smtp rejected message", inner)

	require.True(t, IsPermanent(err))
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "smtp rejected message")

	wrapped := fmt.Errorf("send email: %w", err)
	require.True(t, IsPermanent(wrapped))

	require.False(t, IsPermanent(nil))
	require.False(t, IsPermanent(errors.New("connection refused")))
}

func TestStatusTerminal(t *testing.T) {
	require.False(t, StatusPending.Terminal())
	require.True(t, StatusSent.Terminal())
	require.True(t, StatusError.Terminal())
}
