package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       reader
	workers int
	log     *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log.With("topic", topic, "group", group))
}

func newConsumer(r reader, workers int, log *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log, minBackoff: 200 * time.Millisecond, maxBackoff: 5 * time.Second}
}

// Start blocks until ctx is cancelled or the reader fails, then waits for
// in-flight messages to finish.
//
// A partition is always served by the same worker, so messages of one
// partition are handled and committed in offset order. A failing message is
// retried until it succeeds or ctx ends; nothing after it is committed.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.handle(ctx, id, h, m) {
					// ctx ended mid-retry; leave the rest uncommitted
					for range in {
					}
					return
				}
			}
		}(i, jobs[i])
	}
	defer wg.Wait()
	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs h until it succeeds and commits m. It reports false when ctx
// ended first.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	backoff := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		c.log.Error("handler failed", "worker", worker, "partition", m.Partition, "offset", m.Offset,
			"attempt", attempt, "retry_in", backoff, "error", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.Error("commit failed", "worker", worker, "partition", m.Partition, "offset", m.Offset, "error", err)
	}
	return ctx.Err() == nil
}
