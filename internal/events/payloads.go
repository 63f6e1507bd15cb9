package events

import "time"

// ---- Payload tipe per event ----

type OrderItemRef struct {
	ProductID string  `json:"productId"`
	SellerID  string  `json:"sellerId,omitempty"`
	Title     string  `json:"title,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Quantity  int     `json:"quantity"`
}

type OrderCreatedPayload struct {
	OrderID     string         `json:"orderId"`
	UserID      string         `json:"userId"`
	PaymentMode string         `json:"paymentMode"`
	FinalAmount float64        `json:"finalAmount"`
	Items       []OrderItemRef `json:"items"`
}

type OrderFailedPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// StockReserved membawa snapshot item lengkap supaya seller service tidak perlu
// balik nanya ke order/catalog service.
type StockReservedPayload struct {
	OrderID     string         `json:"orderId"`
	UserID      string         `json:"userId"`
	PaymentMode string         `json:"paymentMode"`
	FinalAmount float64        `json:"finalAmount"`
	Items       []OrderItemRef `json:"items"`
}

// Satu entry per order item: item mana masuk seller order mana.
type SellerOrderRef struct {
	SellerOrderID string  `json:"sellerOrderId"`
	ProductID     string  `json:"productId"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	Title         string  `json:"title,omitempty"`
}

type SellerOrdersCreatedPayload struct {
	OrderID      string           `json:"orderId"`
	SellerOrders []SellerOrderRef `json:"sellerOrderIds"`
	Status       string           `json:"status"`
}

// Dipakai dua arah: seller -> payment (inisiasi, pakai PaymentMethod+FinalAmount)
// dan payment -> order (linking, pakai PaymentID+Status).
type PaymentInitiatedPayload struct {
	OrderID       string  `json:"orderId"`
	UserID        string  `json:"userId,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	FinalAmount   float64 `json:"finalAmount,omitempty"`
	PaymentID     string  `json:"paymentId,omitempty"`
	Status        string  `json:"status,omitempty"`
	Gateway       string  `json:"gateway,omitempty"`
}

type PaymentSuccessPayload struct {
	OrderID   string    `json:"orderId"`
	PaymentID string    `json:"paymentId"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentFailedPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

type CODPaymentReceivedPayload struct {
	OrderID       string `json:"orderId"`
	SellerOrderID string `json:"sellerOrderId,omitempty"`
	UserID        string `json:"userId"`
}

type ProcessRefundPayload struct {
	OrderID       string `json:"orderId"`
	SellerOrderID string `json:"sellerOrderId"`
	UserID        string `json:"userId"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
}

type RefundPayload struct {
	RefundID string `json:"refundId"`
	OrderID  string `json:"orderId"`
	UserID   string `json:"userId"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason,omitempty"`
}

// Fan-out dari order service saat satu item dibatalkan. Inventory cuma butuh
// productId+quantity, payment butuh harga, seller butuh sellerOrderId; satu
// payload dipakai tiga queue.
type OrderItemCancelledPayload struct {
	OrderItemID   string  `json:"orderItemId"`
	OrderID       string  `json:"orderId"`
	ParentOrderID string  `json:"parentOrderId"`
	SellerOrderID string  `json:"sellerOrderId,omitempty"`
	ProductID     string  `json:"productId"`
	SellerID      string  `json:"sellerId,omitempty"`
	UserID        string  `json:"userId"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	Status        string  `json:"status"`
}

type ShipmentEventPayload struct {
	ShipmentID     string    `json:"shipmentId,omitempty"`
	ParentOrderID  string    `json:"parentOrderId"`
	SellerOrderID  string    `json:"sellerOrderId"`
	Status         string    `json:"status"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	Courier        string    `json:"courierName,omitempty"`
	Remark         string    `json:"remark,omitempty"`
	Location       string    `json:"location,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type ReturnEventPayload struct {
	ReturnID      string `json:"returnId"`
	SellerOrderID string `json:"sellerOrderId"`
	ParentOrderID string `json:"parentOrderId,omitempty"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	Remark        string `json:"remark,omitempty"`
	RefundAmount  int64  `json:"refundAmount,omitempty"`
}

type NotificationPayload struct {
	OrderID        string    `json:"orderId"`
	UserID         string    `json:"userId,omitempty"`
	SellerOrderID  string    `json:"sellerOrderId,omitempty"`
	Status         string    `json:"status,omitempty"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	Courier        string    `json:"courierName,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
