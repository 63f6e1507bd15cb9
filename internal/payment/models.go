package payment

import (
	"math"
	"time"
)

// Semua nominal di ledger ini dalam minor unit (paise). Konversi dari rupee
// float dilakukan sekali di pintu masuk, setelah itu hanya aritmetika integer.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type Status string

const (
	StatusInitiated         Status = "INITIATED"
	StatusPendingCollection Status = "PENDING_COLLECTION"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
)

// Gateway yang didukung. Payment method di luar daftar jatuh ke default.
const (
	GatewayCOD      = "COD"
	GatewayRazorpay = "RAZORPAY"
	GatewayStripe   = "STRIPE"
	GatewayPaypal   = "PAYPAL"
	GatewayPhonePe  = "PHONEPE"
)

func GatewayFor(paymentMethod string) string {
	switch paymentMethod {
	case GatewayCOD, GatewayRazorpay, GatewayStripe, GatewayPaypal, GatewayPhonePe:
		return paymentMethod
	default:
		return GatewayRazorpay
	}
}

// Payment: satu baris per order (unique order_id). Invariant ledger:
// collected_amount + pending_amount == amount setiap saat.
type Payment struct {
	ID              string
	OrderID         string
	UserID          string
	Gateway         string
	Currency        string
	Amount          int64
	CollectedAmount int64
	PendingAmount   int64
	Status          Status
	Transactions    []Transaction
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p Payment) IsFullyPaid() bool {
	return p.CollectedAmount == p.Amount && p.PendingAmount == 0
}

// Transaction statuses / methods.
const (
	TxnSuccess = "SUCCESS"
	TxnFailed  = "FAILED"

	MethodCOD            = "COD"
	MethodOrderCancelled = "ORDER_CANCELLED"
)

type Transaction struct {
	TransactionID string
	PaymentID     string
	SellerOrderID string
	OrderItemID   string
	Amount        int64
	Method        string
	Status        string
	CreatedAt     time.Time
}

// Refund statuses.
const (
	RefundInitiated = "INITIATED"
	RefundCompleted = "COMPLETED"
	RefundFailed    = "FAILED"
)

// Refund unik per seller order (atau per order item untuk pembatalan item).
type Refund struct {
	ID            string
	PaymentID     string
	OrderID       string
	SellerOrderID string
	OrderItemID   string
	UserID        string
	Amount        int64
	Reason        string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
