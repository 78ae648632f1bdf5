package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/segmentio/kafka-go"
)

type producer interface {
	Publish(key, value []byte, headers ...kafka.Header) bool
}

// Kafka publishes envelopes to the order events topic, keyed by order id.
type Kafka struct {
	Producer producer
	Service  string
	Log      *slog.Logger
}

func (k *Kafka) Publish(ctx context.Context, event string, payload any) {
	env, err := NewEnvelope(ctx, k.Service, event, payload)
	if err != nil {
		k.Log.Error("build event", "event", event, "error", err)
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		k.Log.Error("encode envelope", "event", event, "error", err)
		return
	}

	key := orders.PartitionKey(env.CorrelationID)
	if env.CorrelationID == "" {
		key = []byte(env.EventID)
	}
	k.Producer.Publish(key, value,
		kafka.Header{Key: "x-event-type", Value: []byte(event)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}
