package notifier

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regmail/regmail/internal/domain/notification"
)

// One runner per test binary: the constructor registers its metrics in the
// default prometheus registry.
func TestRunnerHandle_CountsOutcomes(t *testing.T) {
	store := newFakeStore()
	mail := &fakeMailer{}
	dead := &fakeDead{}
	r := NewRunner(zap.NewNop(), nil, newHandler(store, mail, dead, 3))

	req := newRequest()
	require.NoError(t, r.handle(context.Background(), nil, req))
	require.Equal(t, float64(1), testutil.ToFloat64(r.mSent))

	// A request without an idempotency key is poison and must show up in
	// the dropped counter rather than vanish.
	require.NoError(t, r.handle(context.Background(), nil, &notification.Request{EmailTo: "x@example.com"}))
	require.Equal(t, float64(1), testutil.ToFloat64(r.mDropped))

	require.Equal(t, float64(2), testutil.ToFloat64(r.mConsumed))
	require.Equal(t, float64(0), testutil.ToFloat64(r.mErrors))
}
