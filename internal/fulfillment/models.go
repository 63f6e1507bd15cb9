package fulfillment

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

// Kurir yang didukung beserta prefix tracking number.
var courierPrefixes = map[string]string{
	"Delhivery":    "DH",
	"Ecom Express": "EE",
	"India Post":   "IP",
	"BlueDart":     "BD",
	"Ekart":        "EK",
	"Other":        "OT",
}

const defaultCourier = "Other"

func NormalizeCourier(name string) string {
	if _, ok := courierPrefixes[name]; ok {
		return name
	}
	return defaultCourier
}

// NewTrackingNumber: prefix kurir + 6 char awal sellerOrderId + 6 char awal
// parentOrderId + epoch millis. Cukup unik dan masih kebaca manusia.
func NewTrackingNumber(sellerOrderID, parentOrderID, courier string) string {
	return fmt.Sprintf("%s-%s-%s-%d",
		courierPrefixes[NormalizeCourier(courier)],
		head(sellerOrderID, 6), head(parentOrderID, 6),
		time.Now().UnixMilli())
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func slugFor(st status.Shipment) string {
	return strings.ReplaceAll(strings.ToLower(string(st)), "_", "-")
}

type TrackingEvent struct {
	Status   status.Shipment
	Slug     string
	Location string
	Remark   string
	At       time.Time
}

// Shipment: satu per seller order. trackingHistory append-only.
type Shipment struct {
	ID             string
	SellerOrderID  string
	ParentOrderID  string
	SellerID       string
	Courier        string
	TrackingNumber string
	Status         status.Shipment
	History        []TrackingEvent
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ReturnEvent struct {
	Status status.Return
	Remark string
	At     time.Time
}

// ReturnRequest mengacu ke shipment yang sudah ada; refund amount disimpan
// dalam minor unit supaya langsung bisa diteruskan ke payment.
type ReturnRequest struct {
	ID            string
	SellerOrderID string
	ShipmentID    string
	UserID        string
	Reason        string
	Description   string
	Images        []string
	RefundAmount  int64
	Status        status.Return
	Events        []ReturnEvent
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
