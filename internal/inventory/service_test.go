package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
)

// memRepo model semantik repo postgres: all-or-nothing + reservation natural key.
type memRepo struct {
	mu       sync.Mutex
	current  map[string]int
	reserved map[string]int
	resv     map[string]string // "order/product" -> RESERVED|RELEASED
}

func newMemRepo(stock map[string]int) *memRepo {
	cur := map[string]int{}
	for k, v := range stock {
		cur[k] = v
	}
	return &memRepo{current: cur, reserved: map[string]int{}, resv: map[string]string{}}
}

func rkey(orderID, productID string) string { return orderID + "/" + productID }

func (m *memRepo) AllReserved(ctx context.Context, orderID string, itemCount int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, st := range m.resv {
		if st == "RESERVED" && len(k) > len(orderID) && k[:len(orderID)] == orderID {
			n++
		}
	}
	return n == itemCount, nil
}

func (m *memRepo) ReserveAll(ctx context.Context, orderID string, items []ItemQty) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		cur, ok := m.current[it.ProductID]
		if !ok {
			return false, fmt.Sprintf("Product %s not found", it.ProductID), nil
		}
		if cur < it.Qty {
			return false, fmt.Sprintf("Insufficient stock for Product %s", it.ProductID), nil
		}
	}
	for _, it := range items {
		if m.resv[rkey(orderID, it.ProductID)] == "RESERVED" {
			continue
		}
		m.current[it.ProductID] -= it.Qty
		m.reserved[it.ProductID] += it.Qty
		m.resv[rkey(orderID, it.ProductID)] = "RESERVED"
	}
	return true, "", nil
}

func (m *memRepo) Release(ctx context.Context, orderID, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if orderID != "" {
		if m.resv[rkey(orderID, productID)] != "RESERVED" {
			return nil
		}
		m.resv[rkey(orderID, productID)] = "RELEASED"
	}
	m.reserved[productID] -= qty
	if m.reserved[productID] < 0 {
		m.reserved[productID] = 0
	}
	m.current[productID] += qty
	return nil
}

func (m *memRepo) Upsert(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[rec.ProductID] += rec.CurrentStock
	return nil
}

func (m *memRepo) GetByProduct(ctx context.Context, productID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.current[productID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return Record{ProductID: productID, CurrentStock: cur, ReservedStock: m.reserved[productID]}, nil
}

type published struct {
	Queue string
	Event string
}

type fakePub struct {
	mu   sync.Mutex
	sent []published
}

func (p *fakePub) Publish(ctx context.Context, queue, event, key string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{queue, event})
	return nil
}

func (p *fakePub) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.sent {
		if s.Event == event {
			n++
		}
	}
	return n
}

func orderCreated(t *testing.T, orderID string, items ...events.OrderItemRef) events.Envelope {
	t.Helper()
	raw, err := json.Marshal(events.OrderCreatedPayload{
		OrderID: orderID, UserID: "u-1", PaymentMode: "COD", FinalAmount: 100, Items: items,
	})
	require.NoError(t, err)
	return events.Envelope{Event: events.EventOrderCreated, Data: raw, EventID: "evt-" + orderID}
}

func TestReserveSufficientStock(t *testing.T) {
	repo := newMemRepo(map[string]int{"p-1": 10, "p-2": 5})
	pub := &fakePub{}
	svc := &Service{Repo: repo, Pub: pub, Log: zap.NewNop()}

	env := orderCreated(t, "ord-1",
		events.OrderItemRef{ProductID: "p-1", Quantity: 3},
		events.OrderItemRef{ProductID: "p-2", Quantity: 2},
	)
	require.NoError(t, svc.HandleOrderCreated(context.Background(), env))

	r1, _ := repo.GetByProduct(context.Background(), "p-1")
	r2, _ := repo.GetByProduct(context.Background(), "p-2")
	assert.Equal(t, 7, r1.CurrentStock)
	assert.Equal(t, 3, r1.ReservedStock)
	assert.Equal(t, 3, r2.CurrentStock)
	assert.Equal(t, 2, r2.ReservedStock)
	assert.Equal(t, 1, pub.count(events.EventStockReserved))
	assert.Equal(t, 0, pub.count(events.EventOrderFailed))
}

func TestReserveInsufficientStockIsAtomic(t *testing.T) {
	repo := newMemRepo(map[string]int{"p-1": 10, "p-2": 1})
	pub := &fakePub{}
	svc := &Service{Repo: repo, Pub: pub, Log: zap.NewNop()}

	// p-2 kurang: p-1 juga tidak boleh berubah.
	env := orderCreated(t, "ord-1",
		events.OrderItemRef{ProductID: "p-1", Quantity: 3},
		events.OrderItemRef{ProductID: "p-2", Quantity: 2},
	)
	require.NoError(t, svc.HandleOrderCreated(context.Background(), env))

	r1, _ := repo.GetByProduct(context.Background(), "p-1")
	r2, _ := repo.GetByProduct(context.Background(), "p-2")
	assert.Equal(t, 10, r1.CurrentStock)
	assert.Equal(t, 0, r1.ReservedStock)
	assert.Equal(t, 1, r2.CurrentStock)
	assert.Equal(t, 1, pub.count(events.EventOrderFailed))
	assert.Equal(t, 0, pub.count(events.EventStockReserved))
}

func TestReserveReplayDoesNotDoubleDecrement(t *testing.T) {
	repo := newMemRepo(map[string]int{"p-1": 10})
	pub := &fakePub{}
	svc := &Service{Repo: repo, Pub: pub, Log: zap.NewNop()}

	env := orderCreated(t, "ord-1", events.OrderItemRef{ProductID: "p-1", Quantity: 3})
	require.NoError(t, svc.HandleOrderCreated(context.Background(), env))
	require.NoError(t, svc.HandleOrderCreated(context.Background(), env))

	r1, _ := repo.GetByProduct(context.Background(), "p-1")
	assert.Equal(t, 7, r1.CurrentStock, "replay tidak decrement lagi")
	assert.Equal(t, 3, r1.ReservedStock)
	// Publish ulang boleh, downstream idempotent.
	assert.GreaterOrEqual(t, pub.count(events.EventStockReserved), 1)
}

func TestReleaseOnItemCancelled(t *testing.T) {
	repo := newMemRepo(map[string]int{"p-1": 10})
	pub := &fakePub{}
	svc := &Service{Repo: repo, Pub: pub, Log: zap.NewNop()}

	require.NoError(t, svc.HandleOrderCreated(context.Background(),
		orderCreated(t, "ord-1", events.OrderItemRef{ProductID: "p-1", Quantity: 3})))

	raw, _ := json.Marshal(events.OrderItemCancelledPayload{
		OrderID: "ord-1", ProductID: "p-1", Quantity: 3,
	})
	cancel := events.Envelope{Event: events.EventOrderItemCancelled, Data: raw}
	require.NoError(t, svc.HandleOrderItemCancelled(context.Background(), cancel))

	r1, _ := repo.GetByProduct(context.Background(), "p-1")
	assert.Equal(t, 10, r1.CurrentStock)
	assert.Equal(t, 0, r1.ReservedStock)

	// Replay release: no-op, tidak bikin reserved negatif / current dobel.
	require.NoError(t, svc.HandleOrderItemCancelled(context.Background(), cancel))
	r1, _ = repo.GetByProduct(context.Background(), "p-1")
	assert.Equal(t, 10, r1.CurrentStock)
	assert.Equal(t, 0, r1.ReservedStock)
}

type seenDedup struct{ seen map[string]bool }

func (d *seenDedup) Seen(ctx context.Context, eventID string) bool { return d.seen[eventID] }
func (d *seenDedup) MarkSeen(ctx context.Context, eventID string) {
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[eventID] = true
}

func TestDedupFastPathSkipsReservation(t *testing.T) {
	repo := newMemRepo(map[string]int{"p-1": 10})
	pub := &fakePub{}
	dedup := &seenDedup{}
	svc := &Service{Repo: repo, Pub: pub, Dedup: dedup, Log: zap.NewNop()}

	env := orderCreated(t, "ord-dd", events.OrderItemRef{ProductID: "p-1", Quantity: 2})
	require.NoError(t, svc.HandleOrderCreated(context.Background(), env))
	require.True(t, dedup.seen[env.EventID], "MarkSeen setelah publish sukses")
	require.Equal(t, 1, pub.count(events.EventStockReserved))

	// Redelivery berhenti di fast path: stok tidak disentuh, tidak re-publish.
	require.NoError(t, svc.HandleOrderCreated(context.Background(), env))
	rec, err := repo.GetByProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 8, rec.CurrentStock)
	assert.Equal(t, 2, rec.ReservedStock)
	assert.Equal(t, 1, pub.count(events.EventStockReserved))
}
