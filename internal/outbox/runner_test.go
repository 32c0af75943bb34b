package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/regmail/regmail/internal/domain/outbox"
)

type fakeOutboxRepo struct {
	mu      sync.Mutex
	batches [][]outbox.Message
	marked  [][]string
}

func (f *fakeOutboxRepo) Enqueue(context.Context, string, outbox.Kind, []byte) error { return nil }

func (f *fakeOutboxRepo) PickBatch(_ context.Context, _ int, _ time.Duration) ([]outbox.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeOutboxRepo) MarkSuccess(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(keys) > 0 {
		f.marked = append(f.marked, keys)
	}
	return nil
}

func (f *fakeOutboxRepo) markedKeys() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.marked))
	copy(out, f.marked)
	return out
}

// One runner per test binary: the constructor registers its metrics in the
// default prometheus registry.
func TestRunner_DispatchRestoresTraceAndDrainsOnStop(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	repo := &fakeOutboxRepo{batches: [][]outbox.Message{{{
		IdempotencyKey: "key-1",
		Kind:           outbox.KindWelcomeEmail,
		Data:           []byte(`{}`),
		Traceparent:    "00-" + traceID + "-00f067aa0ba902b7-01",
	}}}}

	type seen struct {
		traceID trace.TraceID
		data    []byte
	}
	got := make(chan seen, 1)
	dispatch := func(kind outbox.Kind) (outbox.KindHandler, error) {
		return func(ctx context.Context, data []byte) error {
			got <- seen{traceID: trace.SpanContextFromContext(ctx).TraceID(), data: data}
			return nil
		}, nil
	}

	r := NewOutboxRunner(zap.NewNop(), repo, dispatch, 1, 10, 5*time.Millisecond, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	select {
	case s := <-got:
		require.Equal(t, traceID, s.traceID.String())
		require.Equal(t, []byte(`{}`), s.data)
	case <-time.After(5 * time.Second):
		t.Fatal("message was not dispatched")
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(repo.markedKeys()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("message was not marked successful")
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, [][]string{{"key-1"}}, repo.markedKeys())

	cancel()
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not drain after cancel")
	}
}
