package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/cafe-pos/internal/orders"
	"github.com/redis/go-redis/v9"
)

// Cache holds the idempotency keys and the order status cache.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache { return &Cache{rdb: rdb} }

// StatusEntry is what GET /orders/{id}/status returns.
type StatusEntry struct {
	OrderID     string        `json:"orderId"`
	OrderNumber string        `json:"orderNumber"`
	Status      orders.Status `json:"status"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// LookupOrder returns the order created earlier under key.
func (c *Cache) LookupOrder(ctx context.Context, key string) (string, bool, error) {
	id, err := c.rdb.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// RememberOrder binds key to orderID unless another request got there first.
func (c *Cache) RememberOrder(ctx context.Context, key, orderID string) error {
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, TTLIdempotency).Err()
}

func (c *Cache) CacheStatus(ctx context.Context, e StatusEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, e.OrderID), b, TTLStatusCache).Err()
}

func (c *Cache) CachedStatus(ctx context.Context, orderID string) (StatusEntry, bool, error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return StatusEntry{}, false, nil
	}
	if err != nil {
		return StatusEntry{}, false, err
	}
	var e StatusEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return StatusEntry{}, false, err
	}
	return e, true, nil
}

func (c *Cache) DropStatus(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}
