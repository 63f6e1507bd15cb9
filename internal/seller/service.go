package seller

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/bus"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/catalog"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/redisx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

type Catalog interface {
	ListByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// Service: splitter + handler status seller order.
type Service struct {
	Repo    Repository
	Catalog Catalog
	Pub     bus.Publisher
	Dedup   redisx.Deduper
	Log     *zap.Logger
}

func (s *Service) Register(d *bus.Dispatcher) {
	d.Handle(events.EventStockReserved, s.HandleStockReserved)
	d.Handle(events.EventShipmentCreated, s.HandleShipmentCreated)
	d.Handle(events.EventShipmentStatusUpdated, s.HandleShipmentStatusUpdated)
	d.Handle(events.EventShipmentDelivered, s.HandleShipmentDelivered)
	d.Handle(events.EventReturnRequested, s.HandleReturnRequested)
	d.Handle(events.EventReturnStatusUpdated, s.HandleReturnStatusUpdated)
	d.Handle(events.EventOrderItemCancelled, s.HandleOrderItemCancelled)
	d.Handle(events.EventOrderItemUpdate, s.HandleOrderItemUpdate)
}

// HandleStockReserved: group item per seller, satu SellerOrder per group.
// Snapshot-first: harga/judul dari event; lookup catalog cuma kalau sellerId
// tidak ada di snapshot. Lookup natural key sebelum insert bikin replay aman.
// Setelah semua group beres: SELLER_ORDERS_CREATED ke order_queue dan
// PAYMENT_INITIATED ke payment_queue.
func (s *Service) HandleStockReserved(ctx context.Context, env events.Envelope) error {
	if s.Dedup != nil && s.Dedup.Seen(ctx, env.EventID) {
		return nil
	}
	p, err := events.Unwrap[events.StockReservedPayload](env)
	if err != nil {
		s.Log.Error("bad STOCK_RESERVED payload, dropping", zap.Error(err))
		return nil
	}
	if p.OrderID == "" || len(p.Items) == 0 {
		s.Log.Warn("STOCK_RESERVED without orderId/items, dropping")
		return nil
	}

	items, err := s.resolveSellers(ctx, p.Items)
	if err != nil {
		return fmt.Errorf("resolve sellers order=%s: %w", p.OrderID, err)
	}

	groups := map[string][]events.OrderItemRef{}
	for _, it := range items {
		groups[it.SellerID] = append(groups[it.SellerID], it)
	}
	// Urutan deterministik supaya replay menghasilkan publish yang sama.
	sellerIDs := make([]string, 0, len(groups))
	for id := range groups {
		sellerIDs = append(sellerIDs, id)
	}
	sort.Strings(sellerIDs)

	var refs []events.SellerOrderRef
	for _, sellerID := range sellerIDs {
		group := groups[sellerID]

		so, err := s.Repo.FindByParentAndSeller(ctx, p.OrderID, sellerID)
		if errors.Is(err, ErrNotFound) {
			so = SellerOrder{
				ParentOrderID: p.OrderID,
				SellerID:      sellerID,
				UserID:        p.UserID,
			}
			for _, it := range group {
				so.Items = append(so.Items, Item{
					ProductID:     it.ProductID,
					TitleSnapshot: it.Title,
					PriceSnapshot: it.Price,
					Quantity:      it.Quantity,
				})
			}
			if err := s.Repo.Create(ctx, &so); err != nil {
				return fmt.Errorf("create seller order order=%s seller=%s: %w", p.OrderID, sellerID, err)
			}
			s.Log.Info("seller order created",
				zap.String("order_id", p.OrderID),
				zap.String("seller_id", sellerID),
				zap.String("seller_order_id", so.ID))
		} else if err != nil {
			return fmt.Errorf("lookup seller order order=%s seller=%s: %w", p.OrderID, sellerID, err)
		}

		for _, it := range group {
			refs = append(refs, events.SellerOrderRef{
				SellerOrderID: so.ID,
				ProductID:     it.ProductID,
				Quantity:      it.Quantity,
				Price:         it.Price,
				Title:         it.Title,
			})
		}
	}

	if err := s.Pub.Publish(ctx, events.QueueOrder, events.EventSellerOrdersCreated, p.OrderID, events.SellerOrdersCreatedPayload{
		OrderID:      p.OrderID,
		SellerOrders: refs,
		Status:       "AWAITING_PAYMENT",
	}); err != nil {
		return fmt.Errorf("publish SELLER_ORDERS_CREATED order=%s: %w", p.OrderID, err)
	}

	if err := s.Pub.Publish(ctx, events.QueuePayment, events.EventPaymentInitiated, p.OrderID, events.PaymentInitiatedPayload{
		OrderID:       p.OrderID,
		UserID:        p.UserID,
		PaymentMethod: p.PaymentMode,
		FinalAmount:   p.FinalAmount,
	}); err != nil {
		return fmt.Errorf("publish PAYMENT_INITIATED order=%s: %w", p.OrderID, err)
	}

	if s.Dedup != nil {
		s.Dedup.MarkSeen(ctx, env.EventID)
	}
	return nil
}

// resolveSellers: isi sellerId yang kosong. Batch lookup sekali, item yang
// tetap tidak ketemu dianggap milik platform.
func (s *Service) resolveSellers(ctx context.Context, items []events.OrderItemRef) ([]events.OrderItemRef, error) {
	var missing []string
	for _, it := range items {
		if it.SellerID == "" {
			missing = append(missing, it.ProductID)
		}
	}
	if len(missing) == 0 {
		return items, nil
	}

	products, err := s.Catalog.ListByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	out := make([]events.OrderItemRef, len(items))
	copy(out, items)
	for i := range out {
		if out[i].SellerID != "" {
			continue
		}
		if p, ok := products[out[i].ProductID]; ok && p.SellerID != "" {
			out[i].SellerID = p.SellerID
			if out[i].Title == "" {
				out[i].Title = p.Title
			}
			if out[i].Price == 0 {
				out[i].Price = p.EffectivePrice()
			}
		} else {
			out[i].SellerID = PlatformSellerID
		}
	}
	return out, nil
}

func (s *Service) HandleShipmentCreated(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ShipmentEventPayload](env)
	if err != nil {
		s.Log.Error("bad SHIPMENT_CREATED payload, dropping", zap.Error(err))
		return nil
	}
	return s.applyShipment(ctx, p.SellerOrderID, status.ShipmentCreated)
}

func (s *Service) HandleShipmentStatusUpdated(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ShipmentEventPayload](env)
	if err != nil {
		s.Log.Error("bad SHIPMENT_STATUS_UPDATED payload, dropping", zap.Error(err))
		return nil
	}
	return s.applyShipment(ctx, p.SellerOrderID, status.Shipment(p.Status))
}

func (s *Service) HandleShipmentDelivered(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ShipmentEventPayload](env)
	if err != nil {
		s.Log.Error("bad SHIPMENT_DELIVERED payload, dropping", zap.Error(err))
		return nil
	}
	return s.applyShipment(ctx, p.SellerOrderID, status.ShipmentDelivered)
}

func (s *Service) applyShipment(ctx context.Context, sellerOrderID string, sh status.Shipment) error {
	target, apply := status.SellerOrderFromShipment(sh)
	if !apply {
		s.Log.Debug("shipment status has no seller-order mapping, skipping",
			zap.String("status", string(sh)))
		return nil
	}
	return s.setStatus(ctx, sellerOrderID, target)
}

func (s *Service) HandleReturnRequested(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ReturnEventPayload](env)
	if err != nil {
		s.Log.Error("bad RETURN_REQUESTED payload, dropping", zap.Error(err))
		return nil
	}
	return s.setStatus(ctx, p.SellerOrderID, status.SellerOrderReturnRequested)
}

func (s *Service) HandleReturnStatusUpdated(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ReturnEventPayload](env)
	if err != nil {
		s.Log.Error("bad RETURN_STATUS_UPDATED payload, dropping", zap.Error(err))
		return nil
	}
	target, apply := status.SellerOrderFromReturn(status.Return(p.Status))
	if !apply {
		s.Log.Debug("return status has no seller-order mapping, skipping",
			zap.String("status", p.Status))
		return nil
	}
	return s.setStatus(ctx, p.SellerOrderID, target)
}

func (s *Service) HandleOrderItemCancelled(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.OrderItemCancelledPayload](env)
	if err != nil {
		s.Log.Error("bad ORDER_ITEM_CANCELLED payload, dropping", zap.Error(err))
		return nil
	}
	if p.SellerOrderID == "" {
		// Item batal sebelum split; tidak ada seller order yang perlu disentuh.
		return nil
	}
	return s.setStatus(ctx, p.SellerOrderID, status.SellerOrderCancelled)
}

// itemToSellerOrder: vocab item -> vocab seller order untuk ORDER_ITEM_UPDATE.
var itemToSellerOrder = map[status.Item]status.SellerOrder{
	status.ItemConfirmed:       status.SellerOrderConfirmed,
	status.ItemPacked:          status.SellerOrderPacked,
	status.ItemShipped:         status.SellerOrderShipped,
	status.ItemDelivered:       status.SellerOrderDelivered,
	status.ItemReturnRequested: status.SellerOrderReturnRequested,
	status.ItemReturned:        status.SellerOrderReturnReceived,
	status.ItemRefunded:        status.SellerOrderReturnReceived,
}

func (s *Service) HandleOrderItemUpdate(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.OrderItemCancelledPayload](env)
	if err != nil {
		s.Log.Error("bad ORDER_ITEM_UPDATE payload, dropping", zap.Error(err))
		return nil
	}
	if p.SellerOrderID == "" || p.Status == "" {
		return nil
	}
	target, ok := itemToSellerOrder[status.Item(p.Status)]
	if !ok {
		s.Log.Debug("item status has no seller-order mapping, skipping", zap.String("status", p.Status))
		return nil
	}
	return s.setStatus(ctx, p.SellerOrderID, target)
}

func (s *Service) setStatus(ctx context.Context, sellerOrderID string, to status.SellerOrder) error {
	if sellerOrderID == "" {
		s.Log.Warn("event without sellerOrderId, dropping")
		return nil
	}
	_, err := s.Repo.SetStatus(ctx, sellerOrderID, to)
	if errors.Is(err, ErrNotFound) {
		// Telemetry non-kritis: log lalu ack, seller order mungkin belum dibuat.
		s.Log.Warn("seller order not found", zap.String("seller_order_id", sellerOrderID))
		return nil
	}
	return err
}
