package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	Name string `json:"name"`
}

func TestJSONHandler_DecodesAndDelegates(t *testing.T) {
	var got *testEvent
	h := JSONHandler(zap.NewNop(), func(_ context.Context, _ []byte, ev *testEvent) error {
		got = ev
		return nil
	})

	require.NoError(t, h(context.Background(), []byte("key"), []byte(`{"name":"hello"}`)))
	require.NotNil(t, got)
	require.Equal(t, "hello", got.Name)
}

func TestJSONHandler_UnknownFieldsIgnored(t *testing.T) {
	called := false
	h := JSONHandler(zap.NewNop(), func(_ context.Context, _ []byte, _ *testEvent) error {
		called = true
		return nil
	})

	require.NoError(t, h(context.Background(), nil, []byte(`{"name":"x","extra":42}`)))
	require.True(t, called)
}

func TestJSONHandler_MalformedDroppedWithoutError(t *testing.T) {
	called := false
	h := JSONHandler(zap.NewNop(), func(_ context.Context, _ []byte, _ *testEvent) error {
		called = true
		return nil
	})

	require.NoError(t, h(context.Background(), nil, []byte(`{broken`)))
	require.False(t, called)
}

func TestJSONHandler_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	h := JSONHandler(zap.NewNop(), func(_ context.Context, _ []byte, _ *testEvent) error {
		return boom
	})

	require.ErrorIs(t, h(context.Background(), nil, []byte(`{"name":"x"}`)), boom)
}
