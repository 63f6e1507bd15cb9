package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/bus"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/redisx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

// Service meng-handle semua event masuk order_queue. Semua handler idempotent:
// transition guard + natural key di repo yang jaga, redis dedup cuma fast path.
type Service struct {
	Repo  Repository
	Pub   bus.Publisher
	Dedup redisx.Deduper
	Log   *zap.Logger
}

// Register pasang semua handler order_queue ke dispatcher.
func (s *Service) Register(d *bus.Dispatcher) {
	d.Handle(events.EventSellerOrdersCreated, s.HandleSellerOrdersCreated)
	d.Handle(events.EventPaymentInitiated, s.HandlePaymentInitiated)
	d.Handle(events.EventPaymentSuccess, s.HandlePaymentSuccess)
	d.Handle(events.EventPaymentFailed, s.HandlePaymentFailed)
	d.Handle(events.EventOrderFailed, s.HandleOrderFailed)
	d.Handle(events.EventShipmentCreated, s.HandleShipmentCreated)
	d.Handle(events.EventShipmentStatusUpdated, s.HandleShipmentStatusUpdated)
	d.Handle(events.EventShipmentDelivered, s.HandleShipmentDelivered)
	d.Handle(events.EventReturnRequested, s.HandleReturnRequested)
	d.Handle(events.EventReturnStatusUpdated, s.HandleReturnStatusUpdated)
}

// HandleSellerOrdersCreated: attach seller order ids ke parent + item, lalu
// majukan status. Payment TIDAK di-trigger dari sini, seller service yang
// publish PAYMENT_INITIATED, jadi replay event ini tidak double-charge.
func (s *Service) HandleSellerOrdersCreated(ctx context.Context, env events.Envelope) error {
	if s.Dedup != nil && s.Dedup.Seen(ctx, env.EventID) {
		return nil
	}
	p, err := events.Unwrap[events.SellerOrdersCreatedPayload](env)
	if err != nil {
		s.Log.Error("bad SELLER_ORDERS_CREATED payload, dropping", zap.Error(err))
		return nil
	}

	if err := s.Repo.AttachSellerOrders(ctx, p.OrderID, p.SellerOrders); err != nil {
		return fmt.Errorf("attach seller orders order=%s: %w", p.OrderID, err)
	}

	to := StatusAwaitingPayment
	if p.Status != "" {
		to = Status(p.Status)
	}
	if _, err := s.Repo.AdvanceStatus(ctx, p.OrderID, to); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("advance order %s to %s: %w", p.OrderID, to, err)
	}

	if s.Dedup != nil {
		s.Dedup.MarkSeen(ctx, env.EventID)
	}
	return nil
}

// HandlePaymentInitiated: payment service lapor balik payment record-nya.
// Cuma linking id; status jalan ke PROCESSED.
func (s *Service) HandlePaymentInitiated(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.PaymentInitiatedPayload](env)
	if err != nil {
		s.Log.Error("bad PAYMENT_INITIATED payload, dropping", zap.Error(err))
		return nil
	}
	if p.PaymentID == "" {
		s.Log.Warn("PAYMENT_INITIATED without paymentId, dropping", zap.String("order_id", p.OrderID))
		return nil
	}

	if err := s.Repo.LinkPayment(ctx, p.OrderID, p.PaymentID); err != nil {
		return fmt.Errorf("link payment %s to order %s: %w", p.PaymentID, p.OrderID, err)
	}
	if _, err := s.Repo.AdvanceStatus(ctx, p.OrderID, StatusProcessed); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) HandlePaymentSuccess(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.PaymentSuccessPayload](env)
	if err != nil {
		s.Log.Error("bad PAYMENT_SUCCESS payload, dropping", zap.Error(err))
		return nil
	}
	s.Log.Info("payment collected",
		zap.String("order_id", p.OrderID), zap.String("payment_id", p.PaymentID))
	if _, err := s.Repo.AdvanceStatus(ctx, p.OrderID, StatusProcessed); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) HandlePaymentFailed(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.PaymentFailedPayload](env)
	if err != nil {
		s.Log.Error("bad PAYMENT_FAILED payload, dropping", zap.Error(err))
		return nil
	}
	s.Log.Warn("payment failed",
		zap.String("order_id", p.OrderID), zap.String("reason", p.Reason))
	if _, err := s.Repo.AdvanceStatus(ctx, p.OrderID, StatusCancelled); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// HandleOrderFailed: stok tidak cukup, inventory batalkan order sebelum ada
// efek downstream.
func (s *Service) HandleOrderFailed(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.OrderFailedPayload](env)
	if err != nil {
		s.Log.Error("bad ORDER_FAILED payload, dropping", zap.Error(err))
		return nil
	}
	s.Log.Warn("order failed at reservation",
		zap.String("order_id", p.OrderID), zap.String("reason", p.Reason))
	if _, err := s.Repo.AdvanceStatus(ctx, p.OrderID, StatusFailed); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) HandleShipmentCreated(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ShipmentEventPayload](env)
	if err != nil {
		s.Log.Error("bad SHIPMENT_CREATED payload, dropping", zap.Error(err))
		return nil
	}
	return s.applyShipmentStatus(ctx, p, status.ShipmentCreated)
}

func (s *Service) HandleShipmentStatusUpdated(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ShipmentEventPayload](env)
	if err != nil {
		s.Log.Error("bad SHIPMENT_STATUS_UPDATED payload, dropping", zap.Error(err))
		return nil
	}
	return s.applyShipmentStatus(ctx, p, status.Shipment(p.Status))
}

func (s *Service) HandleShipmentDelivered(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ShipmentEventPayload](env)
	if err != nil {
		s.Log.Error("bad SHIPMENT_DELIVERED payload, dropping", zap.Error(err))
		return nil
	}
	return s.applyShipmentStatus(ctx, p, status.ShipmentDelivered)
}

// applyShipmentStatus: translate vocab shipment -> vocab item lewat tabel
// mapping, update item di seller order tsb, lalu recompute status parent.
func (s *Service) applyShipmentStatus(ctx context.Context, p events.ShipmentEventPayload, sh status.Shipment) error {
	target, apply := status.ItemFromShipment(sh)
	if !apply {
		s.Log.Debug("shipment status has no item mapping, skipping",
			zap.String("status", string(sh)), zap.String("seller_order_id", p.SellerOrderID))
		return nil
	}

	n, err := s.Repo.SetItemStatusBySellerOrder(ctx, p.SellerOrderID, target)
	if err != nil {
		return fmt.Errorf("update items seller_order=%s: %w", p.SellerOrderID, err)
	}
	if n == 0 {
		// Replay atau event telat; item sudah lebih maju.
		return nil
	}
	return s.recomputeOrderStatus(ctx, p.ParentOrderID)
}

func (s *Service) HandleReturnRequested(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ReturnEventPayload](env)
	if err != nil {
		s.Log.Error("bad RETURN_REQUESTED payload, dropping", zap.Error(err))
		return nil
	}
	return s.applyReturnStatus(ctx, p, status.ReturnRequested)
}

func (s *Service) HandleReturnStatusUpdated(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ReturnEventPayload](env)
	if err != nil {
		s.Log.Error("bad RETURN_STATUS_UPDATED payload, dropping", zap.Error(err))
		return nil
	}
	return s.applyReturnStatus(ctx, p, status.Return(p.Status))
}

func (s *Service) applyReturnStatus(ctx context.Context, p events.ReturnEventPayload, ret status.Return) error {
	target, apply := status.ItemFromReturn(ret)
	if !apply {
		s.Log.Debug("return status has no item mapping, skipping",
			zap.String("status", string(ret)), zap.String("seller_order_id", p.SellerOrderID))
		return nil
	}

	n, err := s.Repo.SetItemStatusBySellerOrder(ctx, p.SellerOrderID, target)
	if err != nil {
		return fmt.Errorf("update items seller_order=%s: %w", p.SellerOrderID, err)
	}
	if n > 0 && p.ParentOrderID != "" {
		return s.recomputeOrderStatus(ctx, p.ParentOrderID)
	}
	return nil
}

// recomputeOrderStatus: status parent diturunkan dari agregat status item.
// Campuran progress -> PARTIALLY_CONFIRMED.
func (s *Service) recomputeOrderStatus(ctx context.Context, orderID string) error {
	items, err := s.Repo.ItemStatuses(ctx, orderID)
	if err != nil {
		return fmt.Errorf("item statuses order=%s: %w", orderID, err)
	}
	to, ok := AggregateFromItems(items)
	if !ok {
		return nil
	}
	changed, err := s.Repo.AdvanceStatus(ctx, orderID, to)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.Log.Warn("parent order not found on recompute", zap.String("order_id", orderID))
			return nil
		}
		return err
	}
	if changed {
		s.notifyStatus(ctx, orderID, to)
	}
	return nil
}

// notifyStatus: notifikasi user, fire-and-forget.
func (s *Service) notifyStatus(ctx context.Context, orderID string, st Status) {
	var event string
	switch st {
	case StatusShipped:
		event = events.EventOrderShipped
	case StatusOutForDelivery:
		event = events.EventOrderOutForDelivery
	case StatusDelivered:
		event = events.EventOrderDelivered
	default:
		return
	}
	if err := s.Pub.Publish(ctx, events.QueueNotification, event, orderID, events.NotificationPayload{
		OrderID: orderID,
		Status:  string(st),
	}); err != nil {
		s.Log.Warn("notify failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
