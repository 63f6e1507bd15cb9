package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/bus"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/orderclient"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

var (
	ErrUnknownStatus      = errors.New("unknown shipment status")
	ErrInvalidReturnState = errors.New("return request is not in a valid state for pickup")
)

type Orders interface {
	GetOrder(ctx context.Context, id string) (orderclient.OrderDetail, error)
}

// Service: sumber kebenaran shipment + return, dan satu-satunya producer
// event SHIPMENT_* / RETURN_* di saga. Mutasi masuk lewat HTTP, bukan queue.
type Service struct {
	Repo   Repository
	Orders Orders
	Pub    bus.Publisher
	Log    *zap.Logger
}

type CreateShipmentInput struct {
	SellerOrderID     string
	ParentOrderID     string
	SellerID          string
	UserID            string
	Courier           string
	WarehouseLocation string
}

func (s *Service) CreateShipment(ctx context.Context, in CreateShipmentInput) (Shipment, error) {
	courier := NormalizeCourier(in.Courier)
	sh := Shipment{
		SellerOrderID:  in.SellerOrderID,
		ParentOrderID:  in.ParentOrderID,
		SellerID:       in.SellerID,
		Courier:        courier,
		TrackingNumber: NewTrackingNumber(in.SellerOrderID, in.ParentOrderID, courier),
		Status:         status.ShipmentCreated,
		History: []TrackingEvent{{
			Status:   status.ShipmentCreated,
			Slug:     slugFor(status.ShipmentCreated),
			Location: in.WarehouseLocation,
			Remark:   "Shipment created",
		}},
	}
	if err := s.Repo.CreateShipment(ctx, &sh); err != nil {
		return Shipment{}, fmt.Errorf("create shipment sellerOrder=%s: %w", in.SellerOrderID, err)
	}
	s.Log.Info("shipment created",
		zap.String("shipment_id", sh.ID),
		zap.String("seller_order_id", sh.SellerOrderID),
		zap.String("tracking_number", sh.TrackingNumber))

	s.fanOutShipment(ctx, events.EventShipmentCreated, sh, "", "")
	s.notify(ctx, events.EventOrderShipped, events.NotificationPayload{
		OrderID:        sh.ParentOrderID,
		UserID:         in.UserID,
		SellerOrderID:  sh.SellerOrderID,
		Status:         "SHIPPED",
		TrackingNumber: sh.TrackingNumber,
		Courier:        sh.Courier,
		Timestamp:      time.Now().UTC(),
	})
	return sh, nil
}

func (s *Service) UpdateShipmentStatus(ctx context.Context, id string, to status.Shipment, location, remark string) (Shipment, error) {
	if !knownShipmentStatus(to) {
		return Shipment{}, ErrUnknownStatus
	}
	sh, err := s.Repo.AppendShipmentStatus(ctx, id, TrackingEvent{
		Status:   to,
		Slug:     slugFor(to),
		Location: location,
		Remark:   remark,
	})
	if err != nil {
		return Shipment{}, err
	}

	s.fanOutShipment(ctx, events.EventShipmentStatusUpdated, sh, location, remark)

	// Milestone yang menarik buat user dapat notifikasi sendiri.
	var notif string
	switch to {
	case status.ShipmentPickedUp:
		notif = events.EventOrderShipped
	case status.ShipmentOutForDelivery:
		notif = events.EventOrderOutForDelivery
	case status.ShipmentDelivered:
		notif = events.EventOrderDelivered
	}
	if notif != "" {
		s.notify(ctx, notif, events.NotificationPayload{
			OrderID:        sh.ParentOrderID,
			SellerOrderID:  sh.SellerOrderID,
			Status:         string(to),
			TrackingNumber: sh.TrackingNumber,
			Courier:        sh.Courier,
			Timestamp:      time.Now().UTC(),
		})
	}
	return sh, nil
}

// MarkDelivered: konfirmasi kurir. Lookup sinkron ke order service buat tahu
// payment method; khusus COD setoran kurir memicu pelunasan di payment.
func (s *Service) MarkDelivered(ctx context.Context, orderID, sellerOrderID string) (Shipment, error) {
	sh, err := s.Repo.GetShipmentBySellerOrder(ctx, sellerOrderID)
	if errors.Is(err, ErrShipmentNotFound) && orderID != "" {
		shipments, listErr := s.Repo.ListShipmentsByOrder(ctx, orderID)
		if listErr != nil || len(shipments) == 0 {
			return Shipment{}, ErrShipmentNotFound
		}
		sh = shipments[0]
	} else if err != nil {
		return Shipment{}, err
	}

	sh, err = s.Repo.AppendShipmentStatus(ctx, sh.ID, TrackingEvent{
		Status:   status.ShipmentDelivered,
		Slug:     slugFor(status.ShipmentDelivered),
		Location: "Customer Address",
		Remark:   "Package delivered to customer",
	})
	if err != nil {
		return Shipment{}, err
	}

	paymentMethod, userID := "", ""
	if od, err := s.Orders.GetOrder(ctx, sh.ParentOrderID); err != nil {
		// Notifikasi jalan terus tanpa userId; COD collection yang rugi.
		s.Log.Error("order lookup failed at delivery",
			zap.String("order_id", sh.ParentOrderID), zap.Error(err))
	} else {
		paymentMethod, userID = od.PaymentMethod, od.UserID
	}

	s.fanOutShipment(ctx, events.EventShipmentDelivered, sh, "", "")
	s.notify(ctx, events.EventOrderDelivered, events.NotificationPayload{
		OrderID:       sh.ParentOrderID,
		UserID:        userID,
		SellerOrderID: sh.SellerOrderID,
		Status:        string(status.ShipmentDelivered),
		Timestamp:     time.Now().UTC(),
	})

	if paymentMethod == "COD" {
		if err := s.Pub.Publish(ctx, events.QueuePayment, events.EventCODPaymentReceived, sh.ParentOrderID, events.CODPaymentReceivedPayload{
			OrderID:       sh.ParentOrderID,
			SellerOrderID: sh.SellerOrderID,
			UserID:        userID,
		}); err != nil {
			s.Log.Error("publish COD_PAYMENT_RECEIVED failed",
				zap.String("order_id", sh.ParentOrderID), zap.Error(err))
		}
	}
	return sh, nil
}

type RequestReturnInput struct {
	SellerOrderID string
	UserID        string
	Reason        string
	Description   string
	Images        []string
	RefundAmount  int64
}

func (s *Service) RequestReturn(ctx context.Context, in RequestReturnInput) (ReturnRequest, error) {
	sh, err := s.Repo.GetShipmentBySellerOrder(ctx, in.SellerOrderID)
	if err != nil {
		return ReturnRequest{}, err
	}

	rr := ReturnRequest{
		SellerOrderID: in.SellerOrderID,
		ShipmentID:    sh.ID,
		UserID:        in.UserID,
		Reason:        in.Reason,
		Description:   in.Description,
		Images:        in.Images,
		RefundAmount:  in.RefundAmount,
	}
	if err := s.Repo.CreateReturn(ctx, &rr); err != nil {
		return ReturnRequest{}, fmt.Errorf("create return sellerOrder=%s: %w", in.SellerOrderID, err)
	}
	s.Log.Info("return requested",
		zap.String("return_id", rr.ID),
		zap.String("seller_order_id", rr.SellerOrderID))

	s.fanOutReturn(ctx, events.EventReturnRequested, rr, sh.ParentOrderID, "")
	return rr, nil
}

func (s *Service) UpdateReturnStatus(ctx context.Context, id string, to status.Return, remark string) (ReturnRequest, error) {
	if !knownReturnStatus(to) {
		return ReturnRequest{}, ErrUnknownStatus
	}
	rr, err := s.Repo.AppendReturnStatus(ctx, id, to, remark)
	if err != nil {
		return ReturnRequest{}, err
	}
	s.fanOutReturn(ctx, events.EventReturnStatusUpdated, rr, "", remark)
	return rr, nil
}

// ConfirmPickup: kondisi A berarti barang layak, lanjut refund otomatis.
// Kondisi lain jadi dispute dan berhenti di situ untuk penanganan manual.
func (s *Service) ConfirmPickup(ctx context.Context, id, condition, remark string) (ReturnRequest, error) {
	rr, err := s.Repo.GetReturn(ctx, id)
	if err != nil {
		return ReturnRequest{}, err
	}
	if rr.Status != status.ReturnApproved && rr.Status != status.ReturnPickupScheduled {
		return ReturnRequest{}, ErrInvalidReturnState
	}

	if condition != "A" {
		if remark == "" {
			remark = fmt.Sprintf("Item picked up in condition %s", condition)
		}
		rr, err = s.Repo.AppendReturnStatus(ctx, id, status.ReturnDisputeRaised, remark)
		if err != nil {
			return ReturnRequest{}, err
		}
		s.fanOutReturn(ctx, events.EventReturnStatusUpdated, rr, "", remark)
		return rr, nil
	}

	if remark == "" {
		remark = "Item picked up in good condition"
	}
	rr, err = s.Repo.AppendReturnStatus(ctx, id, status.ReturnReceived, remark)
	if err != nil {
		return ReturnRequest{}, err
	}

	sh, err := s.Repo.GetShipment(ctx, rr.ShipmentID)
	if err != nil {
		return ReturnRequest{}, fmt.Errorf("shipment lookup for return %s: %w", rr.ID, err)
	}

	if err := s.Pub.Publish(ctx, events.QueuePayment, events.EventProcessRefund, sh.ParentOrderID, events.ProcessRefundPayload{
		OrderID:       sh.ParentOrderID,
		SellerOrderID: rr.SellerOrderID,
		UserID:        rr.UserID,
		Amount:        rr.RefundAmount,
		Reason:        "Return picked up in good condition",
	}); err != nil {
		s.Log.Error("publish PROCESS_REFUND failed",
			zap.String("return_id", rr.ID), zap.Error(err))
	}

	s.fanOutReturn(ctx, events.EventReturnStatusUpdated, rr, sh.ParentOrderID, remark)
	s.notify(ctx, events.EventReturnReceived, events.NotificationPayload{
		OrderID:       sh.ParentOrderID,
		UserID:        rr.UserID,
		SellerOrderID: rr.SellerOrderID,
		Status:        string(status.ReturnReceived),
		Timestamp:     time.Now().UTC(),
	})
	return rr, nil
}

// Fan-out shipment event ke order dan seller. Kegagalan satu queue tidak
// menahan queue lain; masing-masing dicatat.
func (s *Service) fanOutShipment(ctx context.Context, event string, sh Shipment, location, remark string) {
	p := events.ShipmentEventPayload{
		ShipmentID:     sh.ID,
		ParentOrderID:  sh.ParentOrderID,
		SellerOrderID:  sh.SellerOrderID,
		Status:         string(sh.Status),
		TrackingNumber: sh.TrackingNumber,
		Courier:        sh.Courier,
		Remark:         remark,
		Location:       location,
		Timestamp:      time.Now().UTC(),
	}
	for _, q := range []string{events.QueueOrder, events.QueueSeller} {
		if err := s.Pub.Publish(ctx, q, event, sh.ParentOrderID, p); err != nil {
			s.Log.Error("shipment fan-out failed",
				zap.String("queue", q), zap.String("event", event), zap.Error(err))
		}
	}
}

func (s *Service) fanOutReturn(ctx context.Context, event string, rr ReturnRequest, parentOrderID, remark string) {
	p := events.ReturnEventPayload{
		ReturnID:      rr.ID,
		SellerOrderID: rr.SellerOrderID,
		ParentOrderID: parentOrderID,
		Status:        string(rr.Status),
		Reason:        rr.Reason,
		Remark:        remark,
		RefundAmount:  rr.RefundAmount,
	}
	for _, q := range []string{events.QueueOrder, events.QueueSeller} {
		if err := s.Pub.Publish(ctx, q, event, rr.SellerOrderID, p); err != nil {
			s.Log.Error("return fan-out failed",
				zap.String("queue", q), zap.String("event", event), zap.Error(err))
		}
	}
}

func (s *Service) notify(ctx context.Context, event string, p events.NotificationPayload) {
	if err := s.Pub.Publish(ctx, events.QueueNotification, event, p.OrderID, p); err != nil {
		s.Log.Error("notification publish failed", zap.String("event", event), zap.Error(err))
	}
}

func knownShipmentStatus(st status.Shipment) bool {
	for _, s := range status.AllShipment {
		if s == st {
			return true
		}
	}
	return false
}

func knownReturnStatus(st status.Return) bool {
	for _, s := range status.AllReturn {
		if s == st {
			return true
		}
	}
	return false
}
