package seller

import (
	"time"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

// PlatformSellerID: sentinel untuk item yang dijual platform sendiri
// (snapshot tanpa sellerId).
const PlatformSellerID = "ADMIN"

// SellerOrder: partisi per-seller dari satu parent order, unit fulfillment.
// Natural key (parent_order_id, seller_id): replay STOCK_RESERVED tidak boleh
// bikin baris kedua.
type SellerOrder struct {
	ID            string
	ParentOrderID string
	SellerID      string
	UserID        string
	Items         []Item
	Status        status.SellerOrder
	History       []StatusChange
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Item struct {
	ProductID     string
	VariantID     string
	TitleSnapshot string
	PriceSnapshot float64
	Quantity      int
}

type StatusChange struct {
	Status string
	At     time.Time
}
