package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Rooms fans messages out to role rooms over Redis pub/sub. Front-end
// gateways subscribe to the channels of the rooms their users belong to.
type Rooms struct {
	rdb *redis.Client
}

func NewRooms(rdb *redis.Client) *Rooms { return &Rooms{rdb: rdb} }

func RoomChannel(room string) string { return fmt.Sprintf(KeyRoom, room) }

func (r *Rooms) Publish(ctx context.Context, room string, msg []byte) error {
	return r.rdb.Publish(ctx, RoomChannel(room), msg).Err()
}

func (r *Rooms) Subscribe(ctx context.Context, rooms ...string) *redis.PubSub {
	channels := make([]string, 0, len(rooms))
	for _, room := range rooms {
		channels = append(channels, RoomChannel(room))
	}
	return r.rdb.Subscribe(ctx, channels...)
}

// Dedup remembers processed event ids for one consumer service.
type Dedup struct {
	rdb     *redis.Client
	service string
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

// FirstSeen marks id as processed and reports whether it was new.
func (d *Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, id), "1", TTLDedup).Result()
}

// Forget clears id so a redelivery is processed again.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, id)).Err()
}
