// Package notify delivers order events to the broker picked in config.
// Every sink wraps the payload in the same orders.Envelope.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const envelopeVersion = 1

type correlated interface {
	CorrelationID() string
}

// NewEnvelope wraps payload for event. The trace id is the HTTP request id
// when ctx carries one.
func NewEnvelope(ctx context.Context, producer, event string, payload any) (orders.Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return orders.Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	env := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    event,
		EventVersion: envelopeVersion,
		OccurredAt:   time.Now().UTC(),
		Producer:     producer,
		TraceID:      middleware.GetReqID(ctx),
		Payload:      body,
	}
	if c, ok := payload.(correlated); ok {
		env.CorrelationID = c.CorrelationID()
	}
	return env, nil
}

// Nop drops every event. Used when NOTIFY_BROKER=none.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) {}
