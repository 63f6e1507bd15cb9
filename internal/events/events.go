package events

import (
	"encoding/json"
	"time"
)

// Queue names. Setiap service consume dari satu queue miliknya sendiri;
// competing consumers share satu consumer group per queue.
const (
	QueueInventory    = "inventory_queue"
	QueueOrder        = "order_queue"
	QueueSeller       = "seller_queue"
	QueuePayment      = "payment_queue"
	QueueNotification = "notification_queue"

	// Poison messages pindah ke sini setelah retry habis.
	QueueDeadLetter = "saga_dlq"
)

// Saga events.
const (
	EventOrderCreated       = "ORDER_CREATED"
	EventOrderFailed        = "ORDER_FAILED"
	EventOrderItemCancelled = "ORDER_ITEM_CANCELLED"
	EventOrderItemUpdate    = "ORDER_ITEM_UPDATE"

	EventStockReserved       = "STOCK_RESERVED"
	EventSellerOrdersCreated = "SELLER_ORDERS_CREATED"

	EventPaymentInitiated   = "PAYMENT_INITIATED"
	EventPaymentSuccess     = "PAYMENT_SUCCESS"
	EventPaymentFailed      = "PAYMENT_FAILED"
	EventCODPaymentReceived = "COD_PAYMENT_RECEIVED"
	EventProcessRefund      = "PROCESS_REFUND"
	EventRefundInitiated    = "REFUND_INITIATED"
	EventRefundCompleted    = "REFUND_COMPLETED"

	EventShipmentCreated       = "SHIPMENT_CREATED"
	EventShipmentStatusUpdated = "SHIPMENT_STATUS_UPDATED"
	EventShipmentDelivered     = "SHIPMENT_DELIVERED"
	EventReturnRequested       = "RETURN_REQUESTED"
	EventReturnStatusUpdated   = "RETURN_STATUS_UPDATED"
)

// User-facing notification events (fire-and-forget, notification_queue saja).
const (
	EventOrderConfirmed      = "ORDER_CONFIRMED"
	EventOrderShipped        = "ORDER_SHIPPED"
	EventOrderOutForDelivery = "ORDER_OUT_FOR_DELIVERY"
	EventOrderDelivered      = "ORDER_DELIVERED"
	EventReturnReceived      = "RETURN_RECEIVED"
)

// Envelope: wire format {event, data} + metadata buat dedup/logging.
type Envelope struct {
	Event      string          `json:"event"`
	Data       json.RawMessage `json:"data"`
	EventID    string          `json:"eventId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt,omitempty"`
	Producer   string          `json:"producer,omitempty"`
}

// Unwrap decode payload spesifik dari envelope.
func Unwrap[T any](e Envelope) (T, error) {
	var t T
	err := json.Unmarshal(e.Data, &t)
	return t, err
}

// Key = orderId (atau id korelasi lain) supaya event 1 order tetap se-partition.
func Key(id string) []byte { return []byte(id) }
