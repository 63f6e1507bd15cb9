package redisx

import "time"

const (
	// Cache status order buat polling read: order_status:{order_id} -> JSON
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}. Fast path saja;
	// kebenaran idempotency tetap di natural key DB.
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
