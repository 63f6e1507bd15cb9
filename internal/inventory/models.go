package inventory

import "time"

// Record: stok per product (+variant) per seller. current + reserved konstan
// sepanjang reserve/release, cuma pindah kolom.
type Record struct {
	ID                string
	ProductID         string
	SellerID          string
	VariantID         string
	CurrentStock      int
	ReservedStock     int
	WarehouseLocation string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StockLog: audit trail mutasi stok.
type StockLog struct {
	ID        string
	ProductID string
	RecordID  string
	Change    int    // -2, +3
	Type      string // INITIAL_STOCK, ORDER_PLACED, CANCELLED, RETURNED
	OrderID   string
	CreatedAt time.Time
}

const (
	LogInitialStock = "INITIAL_STOCK"
	LogOrderPlaced  = "ORDER_PLACED"
	LogCancelled    = "CANCELLED"
)

// Reservation row per (order, product). Natural key buat replay ORDER_CREATED.
type Reservation struct {
	OrderID   string
	ProductID string
	Qty       int
	Status    string // RESERVED | RELEASED
	CreatedAt time.Time
}
