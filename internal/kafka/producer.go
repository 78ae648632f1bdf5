package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer buffers messages in memory and writes them from one goroutine.
// Publish never blocks the request path: a full buffer drops the message.
type Producer struct {
	w       *kafka.Writer
	log     *slog.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	p := &Producer{
		log:     log.With("topic", topic),
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true, // delivery errors arrive in Completion
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				p.log.Error("kafka delivery failed", "messages", len(msgs), "error", err)
			}
		},
	}
	return p
}

func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.log.Error("kafka write failed", "key", string(m.Key), "error", err)
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Error("kafka writer close", "error", err)
		}
	}()
}

// Publish reports whether the message was queued.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("publish after close dropped", "key", string(key))
		return false
	}

	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return true
	default:
		p.log.Warn("producer buffer full, message dropped", "key", string(key))
		return false
	}
}

// Close stops accepting messages; the writer goroutine flushes what is
// buffered and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

func (p *Producer) WaitClosed() { <-p.closeCh }
