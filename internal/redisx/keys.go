package redisx

import "time"

const (
	// Idempotent order creation: idem:order:create:{Idempotency-Key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Order status cache: order_status:{order_id} -> {"status": "...", "updatedAt": "..."}
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Role room pub/sub channel: pos:room:{room}
	KeyRoom = "pos:room:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
