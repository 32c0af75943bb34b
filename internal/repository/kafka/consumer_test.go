package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	next    int
	commits []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.next < len(f.msgs) {
		m := f.msgs[f.next]
		f.next++
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.commits = append(f.commits, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.commits...)
}

func newTestConsumer(r reader) *Consumer {
	return &Consumer{reader: r, log: zap.NewNop(), cfg: &ConsumerConfig{Topic: "t", GroupID: "g"}}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// A failing message is retried in place; the consumer never commits a
// later offset over it, so nothing on the partition is skipped.
func TestConsume_RetriesFailedMessageBeforeAdvancing(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Partition: 0, Offset: 5, Key: []byte("a"), Value: []byte("first")},
		{Partition: 0, Offset: 6, Key: []byte("b"), Value: []byte("second")},
	}}
	c := newTestConsumer(r)

	var mu sync.Mutex
	attempts := map[string]int{}
	var order []string
	h := func(_ context.Context, key, _ []byte) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[string(key)]++
		order = append(order, string(key))
		if string(key) == "a" && attempts["a"] < 3 {
			return errors.New("store temporarily down")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx, h) }()

	waitFor(t, 5*time.Second, func() bool { return len(r.committed()) == 2 })
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.Equal(t, []int64{5, 6}, r.committed())
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, attempts["a"])
	require.Equal(t, 1, attempts["b"])
	// The second message is not touched until the first one succeeds.
	require.Equal(t, []string{"a", "a", "a", "b"}, order)
}

func TestConsume_FailingMessageNeverCommitted(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Partition: 0, Offset: 9, Key: []byte("a"), Value: []byte("poisoned db")},
	}}
	c := newTestConsumer(r)

	var calls int
	var mu sync.Mutex
	h := func(_ context.Context, _, _ []byte) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("still failing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx, h) }()

	waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	})
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	// The offset stays uncommitted, so the message is redelivered after a
	// restart instead of being lost.
	require.Empty(t, r.committed())
}

func TestConsume_ContextCancelStopsPromptly(t *testing.T) {
	r := &fakeReader{}
	c := newTestConsumer(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx, func(context.Context, []byte, []byte) error { return nil }) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop on cancel")
	}
}
