package seller

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/catalog"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

type fakeRepo struct {
	mu    sync.Mutex
	byKey map[string]*SellerOrder // parent/seller
	byID  map[string]*SellerOrder
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byKey: map[string]*SellerOrder{}, byID: map[string]*SellerOrder{}}
}

func key(parent, seller string) string { return parent + "/" + seller }

func (r *fakeRepo) FindByParentAndSeller(ctx context.Context, parentOrderID, sellerID string) (SellerOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	so, ok := r.byKey[key(parentOrderID, sellerID)]
	if !ok {
		return SellerOrder{}, ErrNotFound
	}
	return *so, nil
}

func (r *fakeRepo) Create(ctx context.Context, so *SellerOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(so.ParentOrderID, so.SellerID)
	if existing, ok := r.byKey[k]; ok {
		so.ID = existing.ID
		return nil
	}
	so.ID = uuid.NewString()
	so.Status = status.SellerOrderPlaced
	cp := *so
	r.byKey[k] = &cp
	r.byID[so.ID] = &cp
	return nil
}

func (r *fakeRepo) SetStatus(ctx context.Context, id string, to status.SellerOrder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	so, ok := r.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if so.Status == to || so.Status == status.SellerOrderCancelled {
		return false, nil
	}
	so.Status = to
	so.History = append(so.History, StatusChange{Status: string(to)})
	return true, nil
}

func (r *fakeRepo) Get(ctx context.Context, id string) (SellerOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	so, ok := r.byID[id]
	if !ok {
		return SellerOrder{}, ErrNotFound
	}
	return *so, nil
}

func (r *fakeRepo) ListBySeller(ctx context.Context, sellerID string) ([]SellerOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SellerOrder
	for _, so := range r.byID {
		if so.SellerID == sellerID {
			out = append(out, *so)
		}
	}
	return out, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type fakeCatalog struct{ products map[string]catalog.Product }

func (c *fakeCatalog) ListByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	out := map[string]catalog.Product{}
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type published struct {
	Queue string
	Event string
	Data  any
}

type fakePub struct {
	mu   sync.Mutex
	sent []published
}

func (p *fakePub) Publish(ctx context.Context, queue, event, key string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{queue, event, data})
	return nil
}

func (p *fakePub) byEvent(event string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, s := range p.sent {
		if s.Event == event {
			out = append(out, s)
		}
	}
	return out
}

func newService(repo Repository, cat Catalog, pub *fakePub) *Service {
	return &Service{Repo: repo, Catalog: cat, Pub: pub, Log: zap.NewNop()}
}

func stockReserved(t *testing.T, orderID string, items ...events.OrderItemRef) events.Envelope {
	t.Helper()
	raw, err := json.Marshal(events.StockReservedPayload{
		OrderID: orderID, UserID: "u-1", PaymentMode: "COD", FinalAmount: 250, Items: items,
	})
	require.NoError(t, err)
	return events.Envelope{Event: events.EventStockReserved, Data: raw, EventID: "evt-1"}
}

func TestSplitBySeller(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePub{}
	svc := newService(repo, &fakeCatalog{}, pub)

	env := stockReserved(t, "ord-1",
		events.OrderItemRef{ProductID: "p-1", SellerID: "s-a", Title: "Kaos", Price: 100, Quantity: 1},
		events.OrderItemRef{ProductID: "p-2", SellerID: "s-b", Title: "Topi", Price: 50, Quantity: 3},
		events.OrderItemRef{ProductID: "p-3", SellerID: "s-a", Title: "Jaket", Price: 100, Quantity: 1},
	)
	require.NoError(t, svc.HandleStockReserved(context.Background(), env))

	assert.Equal(t, 2, repo.count(), "satu seller order per seller")

	soA, err := repo.FindByParentAndSeller(context.Background(), "ord-1", "s-a")
	require.NoError(t, err)
	assert.Len(t, soA.Items, 2)
	assert.Equal(t, status.SellerOrderPlaced, soA.Status)

	created := pub.byEvent(events.EventSellerOrdersCreated)
	require.Len(t, created, 1)
	assert.Equal(t, events.QueueOrder, created[0].Queue)
	payload := created[0].Data.(events.SellerOrdersCreatedPayload)
	assert.Equal(t, "AWAITING_PAYMENT", payload.Status)
	assert.Len(t, payload.SellerOrders, 3, "satu ref per order item")

	pay := pub.byEvent(events.EventPaymentInitiated)
	require.Len(t, pay, 1)
	assert.Equal(t, events.QueuePayment, pay[0].Queue)
	pp := pay[0].Data.(events.PaymentInitiatedPayload)
	assert.Equal(t, "COD", pp.PaymentMethod)
	assert.Equal(t, 250.0, pp.FinalAmount)
}

func TestStockReservedReplayCreatesNoDuplicates(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePub{}
	svc := newService(repo, &fakeCatalog{}, pub)

	env := stockReserved(t, "ord-1",
		events.OrderItemRef{ProductID: "p-1", SellerID: "s-a", Price: 100, Quantity: 1},
		events.OrderItemRef{ProductID: "p-2", SellerID: "s-b", Price: 50, Quantity: 1},
	)
	require.NoError(t, svc.HandleStockReserved(context.Background(), env))
	require.NoError(t, svc.HandleStockReserved(context.Background(), env))

	assert.Equal(t, 2, repo.count(), "replay tidak boleh bikin seller order kedua")

	// Dua publish boleh, tapi ids harus sama.
	created := pub.byEvent(events.EventSellerOrdersCreated)
	require.Len(t, created, 2)
	first := created[0].Data.(events.SellerOrdersCreatedPayload)
	second := created[1].Data.(events.SellerOrdersCreatedPayload)
	assert.Equal(t, first.SellerOrders, second.SellerOrders)
}

func TestMissingSellerFallsBackToCatalogThenPlatform(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePub{}
	cat := &fakeCatalog{products: map[string]catalog.Product{
		"p-1": {ID: "p-1", SellerID: "s-x", Title: "Sepatu", Price: 200},
	}}
	svc := newService(repo, cat, pub)

	env := stockReserved(t, "ord-1",
		events.OrderItemRef{ProductID: "p-1", Quantity: 1}, // sellerId dari catalog
		events.OrderItemRef{ProductID: "p-9", Quantity: 1}, // tidak ketemu -> platform
	)
	require.NoError(t, svc.HandleStockReserved(context.Background(), env))

	_, err := repo.FindByParentAndSeller(context.Background(), "ord-1", "s-x")
	assert.NoError(t, err)
	_, err = repo.FindByParentAndSeller(context.Background(), "ord-1", PlatformSellerID)
	assert.NoError(t, err)
}

func TestShipmentStatusMapsToSellerOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeCatalog{}, &fakePub{})

	so := &SellerOrder{ParentOrderID: "ord-1", SellerID: "s-a", UserID: "u-1"}
	require.NoError(t, repo.Create(context.Background(), so))

	apply := func(event, st string) {
		raw, _ := json.Marshal(events.ShipmentEventPayload{SellerOrderID: so.ID, Status: st})
		env := events.Envelope{Event: event, Data: raw}
		var err error
		switch event {
		case events.EventShipmentCreated:
			err = svc.HandleShipmentCreated(context.Background(), env)
		case events.EventShipmentStatusUpdated:
			err = svc.HandleShipmentStatusUpdated(context.Background(), env)
		}
		require.NoError(t, err)
	}

	apply(events.EventShipmentCreated, "CREATED")
	got, _ := repo.Get(context.Background(), so.ID)
	assert.Equal(t, status.SellerOrderPacked, got.Status)

	apply(events.EventShipmentStatusUpdated, "OUT_FOR_DELIVERY")
	got, _ = repo.Get(context.Background(), so.ID)
	assert.Equal(t, status.SellerOrderOutForDelivery, got.Status, "seller order punya OUT_FOR_DELIVERY sendiri")
}

func TestReturnReceivedMapsToReturnReceived(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeCatalog{}, &fakePub{})

	so := &SellerOrder{ParentOrderID: "ord-1", SellerID: "s-a"}
	require.NoError(t, repo.Create(context.Background(), so))

	raw, _ := json.Marshal(events.ReturnEventPayload{SellerOrderID: so.ID, Status: "RETURN_RECEIVED"})
	require.NoError(t, svc.HandleReturnStatusUpdated(context.Background(),
		events.Envelope{Event: events.EventReturnStatusUpdated, Data: raw}))

	got, _ := repo.Get(context.Background(), so.ID)
	assert.Equal(t, status.SellerOrderReturnReceived, got.Status)

	// REJECTED -> ignore.
	raw, _ = json.Marshal(events.ReturnEventPayload{SellerOrderID: so.ID, Status: "REJECTED"})
	require.NoError(t, svc.HandleReturnStatusUpdated(context.Background(),
		events.Envelope{Event: events.EventReturnStatusUpdated, Data: raw}))
	got, _ = repo.Get(context.Background(), so.ID)
	assert.Equal(t, status.SellerOrderReturnReceived, got.Status)
}

func TestSellerOrderNotFoundIsAcked(t *testing.T) {
	svc := newService(newFakeRepo(), &fakeCatalog{}, &fakePub{})
	raw, _ := json.Marshal(events.ShipmentEventPayload{SellerOrderID: "nope", Status: "DELIVERED"})
	assert.NoError(t, svc.HandleShipmentDelivered(context.Background(),
		events.Envelope{Event: events.EventShipmentDelivered, Data: raw}),
		"lookup gagal: log lalu ack, jangan retry")
}
