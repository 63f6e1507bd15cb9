package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/bus"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/redisx"
)

// Service: ledger pembayaran. Tidak pernah memanggil gateway sungguhan;
// COD dan refund diselesaikan in-process.
type Service struct {
	Repo  Repository
	Pub   bus.Publisher
	Dedup redisx.Deduper
	Log   *zap.Logger
}

func (s *Service) Register(d *bus.Dispatcher) {
	d.Handle(events.EventPaymentInitiated, s.HandlePaymentInitiated)
	d.Handle(events.EventCODPaymentReceived, s.HandleCODPaymentReceived)
	d.Handle(events.EventProcessRefund, s.HandleProcessRefund)
	d.Handle(events.EventOrderItemCancelled, s.HandleOrderItemCancelled)
}

// HandlePaymentInitiated bikin payment record sekali per order (unique
// order_id) lalu balas PAYMENT_INITIATED ke order_queue dengan paymentId.
// Replay tetap publish ulang dari baris existing, isinya sama.
func (s *Service) HandlePaymentInitiated(ctx context.Context, env events.Envelope) error {
	if s.Dedup != nil && s.Dedup.Seen(ctx, env.EventID) {
		return nil
	}
	p, err := events.Unwrap[events.PaymentInitiatedPayload](env)
	if err != nil {
		s.Log.Error("bad PAYMENT_INITIATED payload, dropping", zap.Error(err))
		return nil
	}
	if p.OrderID == "" {
		s.Log.Warn("PAYMENT_INITIATED without orderId, dropping")
		return nil
	}

	gateway := GatewayFor(p.PaymentMethod)
	st := StatusInitiated
	if gateway == GatewayCOD {
		st = StatusPendingCollection
	}

	pay := Payment{
		OrderID:  p.OrderID,
		UserID:   p.UserID,
		Gateway:  gateway,
		Currency: "INR",
		Amount:   MinorUnits(p.FinalAmount),
		Status:   st,
	}
	created, err := s.Repo.CreateIfAbsent(ctx, &pay)
	if err != nil {
		// Selama belum ada paymentId, order service nggak bisa lanjut;
		// kabari supaya order bisa di-FAIL-kan.
		if pubErr := s.Pub.Publish(ctx, events.QueueOrder, events.EventPaymentFailed, p.OrderID, events.PaymentFailedPayload{
			OrderID: p.OrderID,
			Reason:  "payment processing error",
		}); pubErr != nil {
			s.Log.Error("publish PAYMENT_FAILED failed", zap.Error(pubErr))
		}
		return fmt.Errorf("create payment order=%s: %w", p.OrderID, err)
	}
	if created {
		s.Log.Info("payment record created",
			zap.String("order_id", p.OrderID),
			zap.String("payment_id", pay.ID),
			zap.String("gateway", pay.Gateway),
			zap.Int64("amount", pay.Amount))
	}

	if err := s.Pub.Publish(ctx, events.QueueOrder, events.EventPaymentInitiated, p.OrderID, events.PaymentInitiatedPayload{
		OrderID:   p.OrderID,
		PaymentID: pay.ID,
		Status:    string(pay.Status),
		Gateway:   pay.Gateway,
	}); err != nil {
		return fmt.Errorf("publish PAYMENT_INITIATED order=%s: %w", p.OrderID, err)
	}
	if s.Dedup != nil {
		s.Dedup.MarkSeen(ctx, env.EventID)
	}
	return nil
}

// HandleCODPaymentReceived: kurir setor uang saat delivered. Full amount
// dianggap terkumpul; PAYMENT_SUCCESS hanya terbit saat transisi pertama.
func (s *Service) HandleCODPaymentReceived(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.CODPaymentReceivedPayload](env)
	if err != nil {
		s.Log.Error("bad COD_PAYMENT_RECEIVED payload, dropping", zap.Error(err))
		return nil
	}
	if p.OrderID == "" {
		s.Log.Warn("COD_PAYMENT_RECEIVED without orderId, dropping")
		return nil
	}

	pay, changed, err := s.Repo.MarkCollected(ctx, p.OrderID, Transaction{
		SellerOrderID: p.SellerOrderID,
		Method:        MethodCOD,
		Status:        TxnSuccess,
	})
	if errors.Is(err, ErrNotFound) {
		s.Log.Error("payment record missing for COD collection, dropping",
			zap.String("order_id", p.OrderID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark collected order=%s: %w", p.OrderID, err)
	}
	if !changed {
		return nil
	}

	s.Log.Info("payment collected",
		zap.String("order_id", p.OrderID),
		zap.String("payment_id", pay.ID),
		zap.Int64("amount", pay.Amount))

	if err := s.Pub.Publish(ctx, events.QueueOrder, events.EventPaymentSuccess, p.OrderID, events.PaymentSuccessPayload{
		OrderID:   p.OrderID,
		PaymentID: pay.ID,
		Amount:    pay.Amount,
		Method:    MethodCOD,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("publish PAYMENT_SUCCESS order=%s: %w", p.OrderID, err)
	}
	return nil
}

// HandleProcessRefund: refund hanya untuk seller order yang uangnya sudah
// masuk (ada transaksi SUCCESS), dan maksimal satu refund per seller order.
func (s *Service) HandleProcessRefund(ctx context.Context, env events.Envelope) error {
	if s.Dedup != nil && s.Dedup.Seen(ctx, env.EventID) {
		return nil
	}
	p, err := events.Unwrap[events.ProcessRefundPayload](env)
	if err != nil {
		s.Log.Error("bad PROCESS_REFUND payload, dropping", zap.Error(err))
		return nil
	}
	if p.OrderID == "" || p.SellerOrderID == "" {
		s.Log.Warn("PROCESS_REFUND without orderId/sellerOrderId, dropping")
		return nil
	}

	pay, err := s.Repo.GetByOrder(ctx, p.OrderID)
	if errors.Is(err, ErrNotFound) {
		s.Log.Error("refund rejected: payment not found",
			zap.String("order_id", p.OrderID),
			zap.String("seller_order_id", p.SellerOrderID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup payment order=%s: %w", p.OrderID, err)
	}

	ok, err := s.Repo.HasSuccessTransaction(ctx, pay.ID, p.SellerOrderID)
	if err != nil {
		return fmt.Errorf("check success txn payment=%s: %w", pay.ID, err)
	}
	if !ok {
		s.Log.Error("refund rejected: payment not collected for seller order",
			zap.String("order_id", p.OrderID),
			zap.String("seller_order_id", p.SellerOrderID))
		return nil
	}

	rf := Refund{
		PaymentID:     pay.ID,
		OrderID:       p.OrderID,
		SellerOrderID: p.SellerOrderID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Reason:        p.Reason,
		Status:        RefundInitiated,
	}
	if err := s.Repo.CreateRefund(ctx, &rf); errors.Is(err, ErrRefundExists) {
		s.Log.Info("refund already initiated, dropping",
			zap.String("seller_order_id", p.SellerOrderID))
		return nil
	} else if err != nil {
		return fmt.Errorf("create refund sellerOrder=%s: %w", p.SellerOrderID, err)
	}

	if err := s.Pub.Publish(ctx, events.QueueNotification, events.EventRefundInitiated, p.OrderID, events.RefundPayload{
		RefundID: rf.ID,
		OrderID:  p.OrderID,
		UserID:   p.UserID,
		Amount:   rf.Amount,
		Reason:   rf.Reason,
	}); err != nil {
		s.Log.Error("publish REFUND_INITIATED failed", zap.Error(err))
	}

	// Tidak ada gateway callback; refund langsung dianggap selesai.
	if err := s.Repo.SetRefundStatus(ctx, rf.ID, RefundCompleted); err != nil {
		return fmt.Errorf("complete refund %s: %w", rf.ID, err)
	}
	s.Log.Info("refund completed",
		zap.String("refund_id", rf.ID),
		zap.String("seller_order_id", p.SellerOrderID),
		zap.Int64("amount", rf.Amount))

	if err := s.Pub.Publish(ctx, events.QueueNotification, events.EventRefundCompleted, p.OrderID, events.RefundPayload{
		RefundID: rf.ID,
		OrderID:  p.OrderID,
		UserID:   p.UserID,
		Amount:   rf.Amount,
	}); err != nil {
		s.Log.Error("publish REFUND_COMPLETED failed", zap.Error(err))
	}
	if s.Dedup != nil {
		s.Dedup.MarkSeen(ctx, env.EventID)
	}
	return nil
}

// HandleOrderItemCancelled menyesuaikan ledger saat satu item dibatalkan:
// sudah lunas -> refund senilai item; belum -> kurangi kewajiban + transaksi
// ORDER_CANCELLED. pending 0 setelah pengurangan berarti sisa order lunas.
func (s *Service) HandleOrderItemCancelled(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.OrderItemCancelledPayload](env)
	if err != nil {
		s.Log.Error("bad ORDER_ITEM_CANCELLED payload, dropping", zap.Error(err))
		return nil
	}
	orderID := p.ParentOrderID
	if orderID == "" {
		orderID = p.OrderID
	}
	if orderID == "" || p.OrderItemID == "" {
		s.Log.Warn("ORDER_ITEM_CANCELLED without orderId/orderItemId, dropping")
		return nil
	}
	amount := MinorUnits(p.Price * float64(p.Quantity))

	pay, err := s.Repo.GetByOrder(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		s.Log.Error("payment record missing for item cancellation, dropping",
			zap.String("order_id", orderID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup payment order=%s: %w", orderID, err)
	}

	if pay.IsFullyPaid() {
		rf := Refund{
			PaymentID:     pay.ID,
			OrderID:       orderID,
			SellerOrderID: p.SellerOrderID,
			OrderItemID:   p.OrderItemID,
			UserID:        p.UserID,
			Amount:        amount,
			Reason:        "Order Item Cancelled",
			Status:        RefundInitiated,
		}
		if err := s.Repo.CreateRefund(ctx, &rf); errors.Is(err, ErrRefundExists) {
			return nil
		} else if err != nil {
			return fmt.Errorf("create item refund item=%s: %w", p.OrderItemID, err)
		}
		if err := s.Repo.SetRefundStatus(ctx, rf.ID, RefundCompleted); err != nil {
			return fmt.Errorf("complete refund %s: %w", rf.ID, err)
		}
		s.Log.Info("item refund completed",
			zap.String("order_id", orderID),
			zap.String("order_item_id", p.OrderItemID),
			zap.Int64("amount", amount))
		if err := s.Pub.Publish(ctx, events.QueueNotification, events.EventRefundCompleted, orderID, events.RefundPayload{
			RefundID: rf.ID,
			OrderID:  orderID,
			UserID:   p.UserID,
			Amount:   amount,
		}); err != nil {
			s.Log.Error("publish REFUND_COMPLETED failed", zap.Error(err))
		}
		return nil
	}

	pay, applied, err := s.Repo.ReduceForCancelledItem(ctx, orderID, p.OrderItemID, amount)
	if err != nil {
		return fmt.Errorf("reduce payment order=%s: %w", orderID, err)
	}
	if applied {
		s.Log.Info("payment obligation reduced",
			zap.String("order_id", orderID),
			zap.String("order_item_id", p.OrderItemID),
			zap.Int64("reduced_by", amount),
			zap.Int64("pending", pay.PendingAmount))
	}
	return nil
}
