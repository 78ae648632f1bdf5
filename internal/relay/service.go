// Package relay forwards order events from the broker to role rooms.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/cafe-pos/internal/orders"
)

const (
	RoomCashier = "role_cashier"
	RoomBarista = "role_barista"
	RoomManager = "role_manager"
)

// RoomsFor returns the rooms an event is delivered to. Unknown events go nowhere.
func RoomsFor(event string) []string {
	switch event {
	case orders.EventNewOrder:
		return []string{RoomBarista, RoomManager}
	case orders.EventOrderStatusUpdated:
		return []string{RoomBarista, RoomCashier, RoomManager}
	case orders.EventProductStockChanged:
		return []string{RoomCashier, RoomBarista, RoomManager}
	}
	return nil
}

// RoomMessage is what subscribers of a room receive.
type RoomMessage struct {
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(ctx context.Context, room string, msg []byte) error
}

type Service struct {
	Dedup Deduper
	Rooms Publisher
	Log   *slog.Logger
}

// Handle decodes one envelope and publishes it to its rooms. Malformed
// messages are logged and acknowledged; a failed publish clears the dedup
// mark and is returned so the consumer retries it.
func (s *Service) Handle(ctx context.Context, body []byte) error {
	var env orders.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.Log.Warn("skip malformed event", "error", err)
		return nil
	}
	rooms := RoomsFor(env.EventType)
	if len(rooms) == 0 {
		return nil
	}

	first, err := s.Dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		s.Log.Debug("duplicate event", "event_id", env.EventID)
		return nil
	}

	msg, err := json.Marshal(RoomMessage{Event: env.EventType, Data: env.Payload, OccurredAt: env.OccurredAt})
	if err != nil {
		return err
	}
	for _, room := range rooms {
		if err := s.Rooms.Publish(ctx, room, msg); err != nil {
			if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
				s.Log.Error("forget event", "event_id", env.EventID, "error", ferr)
			}
			return fmt.Errorf("publish %s to %s: %w", env.EventType, room, err)
		}
	}
	s.Log.Info("event relayed", "event", env.EventType, "event_id", env.EventID,
		"correlation_id", env.CorrelationID, "rooms", rooms)
	return nil
}
