package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSetsTimeouts(t *testing.T) {
	r := New("localhost:6379")
	defer r.Close()
	assert.Equal(t, 2*time.Second, r.Options().ReadTimeout)
	assert.Equal(t, 2*time.Second, r.Options().WriteTimeout)
}

func TestDeduperWithoutRedis(t *testing.T) {
	ctx := context.Background()
	d := NewDeduper(nil, "svc")

	assert.False(t, d.Seen(ctx, "evt-1"), "tanpa redis semua dianggap belum")
	d.MarkSeen(ctx, "evt-1")
	assert.False(t, d.Seen(ctx, "evt-1"))

	assert.False(t, d.Seen(ctx, ""), "event id kosong tidak pernah seen")
}
