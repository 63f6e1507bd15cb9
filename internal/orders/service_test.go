package orders

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

// ---- fakes ----

type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]*Order
}

func newFakeRepo(os ...*Order) *fakeRepo {
	r := &fakeRepo{orders: map[string]*Order{}}
	for _, o := range os {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeRepo) CreateOrder(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.Status = StatusPending
	r.orders[o.ID] = o
	return nil
}

func (r *fakeRepo) GetOrder(ctx context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return *o, nil
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return nil, nil
}

func (r *fakeRepo) AttachSellerOrders(ctx context.Context, orderID string, refs []events.SellerOrderRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	seen := map[string]bool{}
	o.SellerOrderIDs = nil
	for _, ref := range refs {
		for i := range o.Items {
			if o.Items[i].ProductID == ref.ProductID {
				o.Items[i].SellerOrderID = ref.SellerOrderID
			}
		}
		if !seen[ref.SellerOrderID] {
			seen[ref.SellerOrderID] = true
			o.SellerOrderIDs = append(o.SellerOrderIDs, ref.SellerOrderID)
		}
	}
	return nil
}

func (r *fakeRepo) LinkPayment(ctx context.Context, orderID, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.PaymentID == "" || o.PaymentID == paymentID {
		o.PaymentID = paymentID
	}
	return nil
}

func (r *fakeRepo) AdvanceStatus(ctx context.Context, orderID string, to Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return false, ErrNotFound
	}
	if !CanTransition(o.Status, to) {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *fakeRepo) GetItem(ctx context.Context, itemID string) (OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		for _, it := range o.Items {
			if it.ID == itemID {
				return it, nil
			}
		}
	}
	return OrderItem{}, ErrNotFound
}

func (r *fakeRepo) ItemHistory(ctx context.Context, itemID string) ([]StatusChange, error) {
	it, err := r.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return it.History, nil
}

func (r *fakeRepo) SetItemStatus(ctx context.Context, itemID string, to status.Item) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				if !CanTransitionItem(o.Items[i].Status, to) {
					return false, nil
				}
				o.Items[i].Status = to
				return true, nil
			}
		}
	}
	return false, ErrNotFound
}

func (r *fakeRepo) SetItemStatusBySellerOrder(ctx context.Context, sellerOrderID string, to status.Item) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.orders {
		for i := range o.Items {
			if o.Items[i].SellerOrderID == sellerOrderID && CanTransitionItem(o.Items[i].Status, to) {
				o.Items[i].Status = to
				n++
			}
		}
	}
	return n, nil
}

func (r *fakeRepo) ItemStatuses(ctx context.Context, orderID string) ([]status.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	var out []status.Item
	for _, it := range o.Items {
		out = append(out, it.Status)
	}
	return out, nil
}

type published struct {
	Queue string
	Event string
	Key   string
	Data  any
}

type fakePub struct {
	mu   sync.Mutex
	sent []published
}

func (p *fakePub) Publish(ctx context.Context, queue, event, key string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{queue, event, key, data})
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

func envelope(t *testing.T, event string, payload any) events.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Envelope{Event: event, Data: raw, EventID: "evt-" + event}
}

func newService(repo Repository, pub *fakePub) *Service {
	return &Service{
		Repo: repo,
		Pub:  pub,
		Log:  zap.NewNop(),
	}
}

// ---- tests ----

func TestHandleSellerOrdersCreated(t *testing.T) {
	repo := newFakeRepo(&Order{
		ID:     "ord-1",
		Status: StatusPending,
		Items: []OrderItem{
			{ID: "it-1", ProductID: "p-1", Status: status.ItemPlaced},
			{ID: "it-2", ProductID: "p-2", Status: status.ItemPlaced},
		},
	})
	svc := newService(repo, &fakePub{})

	env := envelope(t, events.EventSellerOrdersCreated, events.SellerOrdersCreatedPayload{
		OrderID: "ord-1",
		SellerOrders: []events.SellerOrderRef{
			{SellerOrderID: "so-a", ProductID: "p-1"},
			{SellerOrderID: "so-b", ProductID: "p-2"},
		},
		Status: "AWAITING_PAYMENT",
	})
	require.NoError(t, svc.HandleSellerOrdersCreated(context.Background(), env))

	o, err := repo.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"so-a", "so-b"}, o.SellerOrderIDs)
	assert.Equal(t, StatusAwaitingPayment, o.Status)
	assert.Equal(t, "so-a", o.Items[0].SellerOrderID)
	assert.Equal(t, "so-b", o.Items[1].SellerOrderID)

	// Replay: state identik, tidak dobel.
	require.NoError(t, svc.HandleSellerOrdersCreated(context.Background(), env))
	o, _ = repo.GetOrder(context.Background(), "ord-1")
	assert.Len(t, o.SellerOrderIDs, 2)
	assert.Equal(t, StatusAwaitingPayment, o.Status)
}

func TestHandlePaymentInitiatedLinksPayment(t *testing.T) {
	repo := newFakeRepo(&Order{ID: "ord-1", Status: StatusAwaitingPayment})
	svc := newService(repo, &fakePub{})

	env := envelope(t, events.EventPaymentInitiated, events.PaymentInitiatedPayload{
		OrderID: "ord-1", PaymentID: "pay-1", Status: "INITIATED",
	})
	require.NoError(t, svc.HandlePaymentInitiated(context.Background(), env))

	o, _ := repo.GetOrder(context.Background(), "ord-1")
	assert.Equal(t, "pay-1", o.PaymentID)
	assert.Equal(t, StatusProcessed, o.Status)

	// Replay dengan paymentId sama: no-op.
	require.NoError(t, svc.HandlePaymentInitiated(context.Background(), env))
	o, _ = repo.GetOrder(context.Background(), "ord-1")
	assert.Equal(t, "pay-1", o.PaymentID)
}

func TestHandleShipmentDeliveredAggregates(t *testing.T) {
	repo := newFakeRepo(&Order{
		ID:     "ord-1",
		Status: StatusProcessed,
		Items: []OrderItem{
			{ID: "it-1", SellerOrderID: "so-a", Status: status.ItemShipped},
			{ID: "it-2", SellerOrderID: "so-b", Status: status.ItemShipped},
		},
	})
	pub := &fakePub{}
	svc := newService(repo, pub)

	deliver := func(so string) events.Envelope {
		return envelope(t, events.EventShipmentDelivered, events.ShipmentEventPayload{
			ParentOrderID: "ord-1", SellerOrderID: so, Status: "DELIVERED",
		})
	}

	require.NoError(t, svc.HandleShipmentDelivered(context.Background(), deliver("so-a")))
	o, _ := repo.GetOrder(context.Background(), "ord-1")
	assert.Equal(t, StatusPartiallyConfirmed, o.Status, "baru satu seller order sampai")

	require.NoError(t, svc.HandleShipmentDelivered(context.Background(), deliver("so-b")))
	o, _ = repo.GetOrder(context.Background(), "ord-1")
	assert.Equal(t, StatusDelivered, o.Status)

	notifs := pub.byEvent(events.EventOrderDelivered)
	require.Len(t, notifs, 1)
	assert.Equal(t, events.QueueNotification, notifs[0].Queue)

	// Replay delivery: item sudah DELIVERED, tidak ada notifikasi kedua.
	require.NoError(t, svc.HandleShipmentDelivered(context.Background(), deliver("so-b")))
	assert.Len(t, pub.byEvent(events.EventOrderDelivered), 1)
}

func TestHandleShipmentStatusUpdatedIgnoresUnmapped(t *testing.T) {
	repo := newFakeRepo(&Order{
		ID:     "ord-1",
		Status: StatusShipped,
		Items:  []OrderItem{{ID: "it-1", SellerOrderID: "so-a", Status: status.ItemShipped}},
	})
	svc := newService(repo, &fakePub{})

	// OUT_FOR_DELIVERY tidak punya mapping ke status item.
	env := envelope(t, events.EventShipmentStatusUpdated, events.ShipmentEventPayload{
		ParentOrderID: "ord-1", SellerOrderID: "so-a", Status: "OUT_FOR_DELIVERY",
	})
	require.NoError(t, svc.HandleShipmentStatusUpdated(context.Background(), env))

	o, _ := repo.GetOrder(context.Background(), "ord-1")
	assert.Equal(t, status.ItemShipped, o.Items[0].Status)
}

func TestHandleReturnStatusUpdated(t *testing.T) {
	repo := newFakeRepo(&Order{
		ID:     "ord-1",
		Status: StatusDelivered,
		Items:  []OrderItem{{ID: "it-1", SellerOrderID: "so-a", Status: status.ItemDelivered}},
	})
	svc := newService(repo, &fakePub{})

	env := envelope(t, events.EventReturnStatusUpdated, events.ReturnEventPayload{
		SellerOrderID: "so-a", ParentOrderID: "ord-1", Status: "RETURN_RECEIVED",
	})
	require.NoError(t, svc.HandleReturnStatusUpdated(context.Background(), env))

	o, _ := repo.GetOrder(context.Background(), "ord-1")
	assert.Equal(t, status.ItemReturned, o.Items[0].Status)

	// REJECTED -> ignore, item tetap.
	env = envelope(t, events.EventReturnStatusUpdated, events.ReturnEventPayload{
		SellerOrderID: "so-a", ParentOrderID: "ord-1", Status: "REJECTED",
	})
	require.NoError(t, svc.HandleReturnStatusUpdated(context.Background(), env))
	o, _ = repo.GetOrder(context.Background(), "ord-1")
	assert.Equal(t, status.ItemReturned, o.Items[0].Status)
}

func TestMalformedPayloadDropped(t *testing.T) {
	svc := newService(newFakeRepo(), &fakePub{})
	env := events.Envelope{Event: events.EventSellerOrdersCreated, Data: []byte(`{"orderId":123}`)}
	assert.NoError(t, svc.HandleSellerOrdersCreated(context.Background(), env), "payload rusak di-drop, bukan retry")
}

func TestHandleOrderFailed(t *testing.T) {
	repo := newFakeRepo(&Order{ID: "ord-1", Status: StatusPending})
	svc := newService(repo, &fakePub{})

	env := envelope(t, events.EventOrderFailed, events.OrderFailedPayload{
		OrderID: "ord-1", Reason: "OUT_OF_STOCK",
	})
	require.NoError(t, svc.HandleOrderFailed(context.Background(), env))

	o, _ := repo.GetOrder(context.Background(), "ord-1")
	assert.Equal(t, StatusFailed, o.Status)
}
