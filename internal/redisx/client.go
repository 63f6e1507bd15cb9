package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Seen: apakah event_id ini sudah pernah sukses diproses service ini.
// Error redis dianggap "belum"; handler toh idempotent di level DB.
func Seen(ctx context.Context, rdb *redis.Client, service, eventID string) bool {
	if rdb == nil || eventID == "" {
		return false
	}
	ok, _ := Exists(ctx, rdb, fmt.Sprintf(KeyDedup, service, eventID))
	return ok
}

// MarkSeen dipanggil setelah side effect commit, bukan sebelum.
func MarkSeen(ctx context.Context, rdb *redis.Client, service, eventID string) {
	if rdb == nil || eventID == "" {
		return
	}
	_ = rdb.Set(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Err()
}

// Deduper: fast path dedup per consumer. Sumber kebenaran tetap natural key
// di DB; implementasi boleh bohong "belum" kapan pun.
type Deduper interface {
	Seen(ctx context.Context, eventID string) bool
	MarkSeen(ctx context.Context, eventID string)
}

type redisDeduper struct {
	rdb     *redis.Client
	service string
}

func NewDeduper(rdb *redis.Client, service string) Deduper {
	return redisDeduper{rdb: rdb, service: service}
}

func (d redisDeduper) Seen(ctx context.Context, eventID string) bool {
	return Seen(ctx, d.rdb, d.service, eventID)
}

func (d redisDeduper) MarkSeen(ctx context.Context, eventID string) {
	MarkSeen(ctx, d.rdb, d.service, eventID)
}
