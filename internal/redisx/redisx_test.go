package redisx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomChannel(t *testing.T) {
	assert.Equal(t, "pos:room:role_barista", RoomChannel("role_barista"))
}

func setupRedis(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := New(addr)
	require.NoError(t, Ping(context.Background(), rdb))
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb)
}

func TestIdempotencyKey(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()
	key := uuid.NewString()

	_, ok, err := c.LookupOrder(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.RememberOrder(ctx, key, "order-1"))
	require.NoError(t, c.RememberOrder(ctx, key, "order-2"))

	id, ok, err := c.LookupOrder(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order-1", id)
}

func TestStatusCache(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()
	id := uuid.NewString()
	e := StatusEntry{OrderID: id, OrderNumber: "ORD-20261019-0001", Status: orders.StatusInProgress, UpdatedAt: time.Now().UTC().Truncate(time.Second)}

	require.NoError(t, c.CacheStatus(ctx, e))
	got, ok, err := c.CachedStatus(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e.Status, got.Status)
	assert.True(t, e.UpdatedAt.Equal(got.UpdatedAt))

	require.NoError(t, c.DropStatus(ctx, id))
	_, ok, err = c.CachedStatus(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDedup(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()
	d := NewDedup(c.rdb, "test")
	id := uuid.NewString()

	first, err := d.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Forget(ctx, id))
	first, err = d.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestRoomsPublishSubscribe(t *testing.T) {
	c := setupRedis(t)
	rooms := NewRooms(c.rdb)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room := "role_test_" + uuid.NewString()
	sub := rooms.Subscribe(ctx, room)
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, rooms.Publish(ctx, room, []byte(`{"event":"new_order"}`)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, RoomChannel(room), msg.Channel)
	assert.JSONEq(t, `{"event":"new_order"}`, msg.Payload)
}
