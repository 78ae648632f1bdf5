package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the fanout exchange every order event goes through.
const Exchange = "pos_events_fanout"

type AMQP struct {
	conn    *amqp.Connection
	log     *slog.Logger
	service string

	mu  sync.Mutex // guards pub
	pub *amqp.Channel
}

func DialAMQP(url, service string, log *slog.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &AMQP{conn: conn, pub: ch, service: service, log: log}, nil
}

func (a *AMQP) Publish(ctx context.Context, event string, payload any) {
	env, err := NewEnvelope(ctx, a.service, event, payload)
	if err != nil {
		a.log.Error("build event", "event", event, "error", err)
		return
	}
	body, err := json.Marshal(env)
	if err != nil {
		a.log.Error("encode envelope", "event", event, "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.pub.PublishWithContext(ctx, Exchange, event, false, false, amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     env.EventID,
		CorrelationId: env.CorrelationID,
		Type:          event,
		Timestamp:     env.OccurredAt,
		Body:          body,
	})
	if err != nil {
		a.log.Error("amqp publish failed", "event", event, "event_id", env.EventID, "error", err)
	}
}

// Consume binds a private queue to the exchange and feeds every message
// body to handle until ctx ends or the channel closes. A failed message is
// requeued once.
func (a *AMQP) Consume(ctx context.Context, queue string, handle func(ctx context.Context, body []byte) error) error {
	ch, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))

	if err := ch.ExchangeDeclare(Exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	// Named queues survive relay restarts; an empty name gives a temporary one.
	q, err := ch.QueueDeclare(queue, queue != "", queue == "", queue == "", false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed")
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}
			if err := handle(ctx, msg.Body); err != nil {
				a.log.Error("handle amqp message", "message_id", msg.MessageId, "error", err)
				_ = msg.Nack(false, !msg.Redelivered)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.pub.Close()
	if a.conn.IsClosed() {
		return nil
	}
	return a.conn.Close()
}
