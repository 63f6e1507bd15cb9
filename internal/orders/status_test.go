package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAwaitingPayment, true},
		{StatusPending, StatusShipped, true}, // event boleh skip maju
		{StatusAwaitingPayment, StatusProcessed, true},
		{StatusProcessed, StatusPartiallyConfirmed, true},
		{StatusShipped, StatusProcessed, false}, // tidak pernah mundur
		{StatusDelivered, StatusShipped, false},
		{StatusShipped, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, false}, // terminal beku
		{StatusCancelled, StatusPending, false},
		{StatusPending, StatusFailed, true},
		{StatusProcessed, StatusFailed, false}, // FAILED cuma dari PENDING
		{StatusPending, StatusPending, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestCanTransitionItem(t *testing.T) {
	assert.True(t, CanTransitionItem(status.ItemPlaced, status.ItemPacked))
	assert.True(t, CanTransitionItem(status.ItemPacked, status.ItemCancelled))
	assert.False(t, CanTransitionItem(status.ItemShipped, status.ItemCancelled), "setelah shipped jalurnya return")
	assert.False(t, CanTransitionItem(status.ItemDelivered, status.ItemShipped))
	assert.True(t, CanTransitionItem(status.ItemDelivered, status.ItemReturnRequested))
	assert.False(t, CanTransitionItem(status.ItemCancelled, status.ItemPacked))
}

func TestAggregateFromItems(t *testing.T) {
	st, ok := AggregateFromItems([]status.Item{status.ItemDelivered, status.ItemDelivered})
	assert.True(t, ok)
	assert.Equal(t, StatusDelivered, st)

	st, ok = AggregateFromItems([]status.Item{status.ItemShipped, status.ItemPacked})
	assert.True(t, ok)
	assert.Equal(t, StatusPartiallyConfirmed, st, "progress campuran")

	_, ok = AggregateFromItems([]status.Item{status.ItemPlaced, status.ItemPlaced})
	assert.False(t, ok, "belum ada progress, jangan sentuh status order")

	_, ok = AggregateFromItems(nil)
	assert.False(t, ok)

	st, ok = AggregateFromItems([]status.Item{status.ItemCancelled})
	assert.True(t, ok)
	assert.Equal(t, StatusCancelled, st)

	// Item cancelled tidak boleh nge-gantung order: sisa item yang menentukan.
	st, ok = AggregateFromItems([]status.Item{status.ItemCancelled, status.ItemDelivered})
	assert.True(t, ok)
	assert.Equal(t, StatusDelivered, st, "item cancelled tidak dihitung milestone")

	st, ok = AggregateFromItems([]status.Item{status.ItemCancelled, status.ItemShipped})
	assert.True(t, ok)
	assert.Equal(t, StatusShipped, st)

	st, ok = AggregateFromItems([]status.Item{status.ItemCancelled, status.ItemCancelled})
	assert.True(t, ok)
	assert.Equal(t, StatusCancelled, st)

	_, ok = AggregateFromItems([]status.Item{status.ItemCancelled, status.ItemPlaced})
	assert.False(t, ok, "sisa item belum ada progress")
}
