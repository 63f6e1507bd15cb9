package orders

import (
	"time"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

const (
	PaymentMethodOnline = "ONLINE"
	PaymentMethodCOD    = "COD"
)

type Order struct {
	ID                string
	UserID            string
	ShippingAddressID string
	PaymentMethod     string // ONLINE | COD
	Status            Status // lihat status.go
	TotalAmount       float64
	FinalAmount       float64
	SellerOrderIDs    []string
	PaymentID         string
	Items             []OrderItem
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type OrderItem struct {
	ID            string
	ParentOrderID string
	SellerOrderID string // kosong sampai seller split selesai
	ProductID     string
	SellerID      string
	TitleSnapshot string
	Price         float64 // snapshot saat checkout, harga diskon kalau ada
	Quantity      int
	Status        status.Item
	RefundAmount  float64
	History       []StatusChange
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StatusChange: satu baris history. Append-only.
type StatusChange struct {
	Status string
	At     time.Time
}
