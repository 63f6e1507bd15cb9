package inventory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/bus"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/redisx"
)

// Service meng-handle inventory_queue.
type Service struct {
	Repo  Repository
	Pub   bus.Publisher
	Dedup redisx.Deduper
	Log   *zap.Logger
}

func (s *Service) Register(d *bus.Dispatcher) {
	d.Handle(events.EventOrderCreated, s.HandleOrderCreated)
	d.Handle(events.EventOrderItemCancelled, s.HandleOrderItemCancelled)
}

// HandleOrderCreated: cek + reserve all-or-nothing, lalu publish hasil.
// Sukses -> STOCK_RESERVED ke seller_queue (bawa snapshot item supaya seller
// tidak perlu balik nanya); gagal -> ORDER_FAILED ke order_queue, stok utuh.
func (s *Service) HandleOrderCreated(ctx context.Context, env events.Envelope) error {
	if s.Dedup != nil && s.Dedup.Seen(ctx, env.EventID) {
		return nil
	}
	p, err := events.Unwrap[events.OrderCreatedPayload](env)
	if err != nil {
		s.Log.Error("bad ORDER_CREATED payload, dropping", zap.Error(err))
		return nil
	}

	items := make([]ItemQty, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}

	// Replay yang sudah beres: publish ulang STOCK_RESERVED saja, downstream
	// idempotent.
	if done, err := s.Repo.AllReserved(ctx, p.OrderID, len(items)); err != nil {
		return fmt.Errorf("check reservations order=%s: %w", p.OrderID, err)
	} else if done {
		return s.publishReserved(ctx, p)
	}

	ok, reason, err := s.Repo.ReserveAll(ctx, p.OrderID, items)
	if err != nil {
		return fmt.Errorf("reserve order=%s: %w", p.OrderID, err)
	}
	if !ok {
		s.Log.Warn("reservation rejected",
			zap.String("order_id", p.OrderID), zap.String("reason", reason))
		if err := s.Pub.Publish(ctx, events.QueueOrder, events.EventOrderFailed, p.OrderID, events.OrderFailedPayload{
			OrderID: p.OrderID,
			Reason:  reason,
		}); err != nil {
			s.Log.Error("publish ORDER_FAILED failed", zap.String("order_id", p.OrderID), zap.Error(err))
		}
		return nil
	}

	s.Log.Info("stock reserved", zap.String("order_id", p.OrderID), zap.Int("items", len(items)))
	if err := s.publishReserved(ctx, p); err != nil {
		return err
	}
	if s.Dedup != nil {
		s.Dedup.MarkSeen(ctx, env.EventID)
	}
	return nil
}

func (s *Service) publishReserved(ctx context.Context, p events.OrderCreatedPayload) error {
	return s.Pub.Publish(ctx, events.QueueSeller, events.EventStockReserved, p.OrderID, events.StockReservedPayload{
		OrderID:     p.OrderID,
		UserID:      p.UserID,
		PaymentMode: p.PaymentMode,
		FinalAmount: p.FinalAmount,
		Items:       p.Items,
	})
}

// HandleOrderItemCancelled: release reserved -> current. Floor di 0 + status
// reservation jadi guard replay.
func (s *Service) HandleOrderItemCancelled(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.OrderItemCancelledPayload](env)
	if err != nil {
		s.Log.Error("bad ORDER_ITEM_CANCELLED payload, dropping", zap.Error(err))
		return nil
	}
	if p.ProductID == "" || p.Quantity <= 0 {
		s.Log.Warn("ORDER_ITEM_CANCELLED missing productId/quantity, dropping")
		return nil
	}

	if err := s.Repo.Release(ctx, p.OrderID, p.ProductID, p.Quantity); err != nil {
		return fmt.Errorf("release product=%s order=%s: %w", p.ProductID, p.OrderID, err)
	}
	s.Log.Info("stock released",
		zap.String("product_id", p.ProductID), zap.Int("qty", p.Quantity))
	return nil
}
