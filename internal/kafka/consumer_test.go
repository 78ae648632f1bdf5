package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader hands out msgs once, then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
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
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) offsets(partition int) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for _, m := range f.committed {
		if m.Partition == partition {
			out = append(out, m.Offset)
		}
	}
	return out
}

func testConsumer(r reader, workers int) *Consumer {
	c := newConsumer(r, workers, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.minBackoff = time.Millisecond
	c.maxBackoff = 5 * time.Millisecond
	return c
}

func msg(partition int, offset int64, key string) kafka.Message {
	return kafka.Message{Partition: partition, Offset: offset, Key: []byte(key)}
}

func TestConsumerRetriesFailedMessageBeforeCommitting(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		msg(0, 10, "o-1"), msg(0, 11, "o-1"), msg(0, 12, "o-2"),
		msg(1, 5, "o-3"),
	}}
	c := testConsumer(r, 4)

	var (
		mu       sync.Mutex
		handled  []int64
		failures = 2
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			mu.Lock()
			defer mu.Unlock()
			if m.Partition == 0 && m.Offset == 10 && failures > 0 {
				failures--
				return errors.New("redis down")
			}
			if m.Partition == 0 {
				handled = append(handled, m.Offset)
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return len(r.offsets(0)) == 3 && len(r.offsets(1)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{10, 11, 12}, r.offsets(0))
	assert.Equal(t, []int64{5}, r.offsets(1))
	mu.Lock()
	assert.Equal(t, []int64{10, 11, 12}, handled)
	assert.Equal(t, 0, failures)
	mu.Unlock()
}

func TestConsumerStopsRetryingOnShutdown(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{msg(0, 1, "o-1"), msg(0, 2, "o-1")}}
	c := testConsumer(r, 2)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := make(chan struct{}, 100)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			select {
			case attempts <- struct{}{}:
			default:
			}
			return errors.New("always fails")
		})
	}()

	<-attempts
	<-attempts
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, r.offsets(0))
}
