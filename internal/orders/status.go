package orders

import "github.com/ariefcatur/go-marketplace-saga.git/internal/status"

type Status string

const (
	StatusPending            Status = "PENDING"
	StatusAwaitingPayment    Status = "AWAITING_PAYMENT"
	StatusProcessed          Status = "PROCESSED"
	StatusPartiallyConfirmed Status = "PARTIALLY_CONFIRMED"
	StatusShipped            Status = "SHIPPED"
	StatusOutForDelivery     Status = "OUT_FOR_DELIVERY"
	StatusDelivered          Status = "DELIVERED"
	StatusCancelled          Status = "CANCELLED"
	StatusFailed             Status = "FAILED"
)

// rank menentukan arah maju. Event bisa datang out-of-order (at-least-once,
// multi consumer), jadi transisi valid = lompat ke state mana pun yang lebih
// maju, tidak pernah mundur.
var rank = map[Status]int{
	StatusPending:            0,
	StatusAwaitingPayment:    1,
	StatusProcessed:          2,
	StatusPartiallyConfirmed: 3,
	StatusShipped:            4,
	StatusOutForDelivery:     5,
	StatusDelivered:          6,
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusFailed
}

// CanTransition: maju saja. CANCELLED boleh dari semua state non-terminal,
// FAILED hanya dari PENDING (stok gagal sebelum ada efek downstream).
func CanTransition(from, to Status) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	if to == StatusFailed {
		return from == StatusPending
	}
	rf, okf := rank[from]
	rt, okt := rank[to]
	return okf && okt && rt > rf
}

// itemRank: state machine kecil per order item, mirror status shipment.
var itemRank = map[status.Item]int{
	status.ItemPlaced:          0,
	status.ItemConfirmed:       1,
	status.ItemPacked:          2,
	status.ItemShipped:         3,
	status.ItemDelivered:       4,
	status.ItemReturnRequested: 5,
	status.ItemReturned:        6,
	status.ItemRefunded:        7,
}

// CanTransitionItem: CANCELLED cuma boleh sebelum barang jalan; setelah
// SHIPPED jalurnya lewat return, bukan cancel.
func CanTransitionItem(from, to status.Item) bool {
	if from == status.ItemCancelled || from == to {
		return false
	}
	if to == status.ItemCancelled {
		return itemRank[from] < itemRank[status.ItemShipped]
	}
	rf, okf := itemRank[from]
	rt, okt := itemRank[to]
	return okf && okt && rt > rf
}

// AggregateFromItems menghitung status parent order dari kumpulan status item.
// Item CANCELLED tidak ikut hitung milestone: sisa item yang menentukan, jadi
// [CANCELLED, DELIVERED] tetap bisa tutup order di DELIVERED. Semua item
// cancelled -> CANCELLED; campuran progress -> PARTIALLY_CONFIRMED.
func AggregateFromItems(items []status.Item) (Status, bool) {
	if len(items) == 0 {
		return "", false
	}

	active := items[:0:0]
	for _, it := range items {
		if it != status.ItemCancelled {
			active = append(active, it)
		}
	}
	if len(active) == 0 {
		return StatusCancelled, true
	}
	items = active

	all := func(want status.Item) bool {
		for _, it := range items {
			if it != want {
				return false
			}
		}
		return true
	}

	switch {
	case all(status.ItemDelivered):
		return StatusDelivered, true
	case all(status.ItemShipped):
		return StatusShipped, true
	case all(status.ItemPacked):
		return StatusProcessed, true
	case all(status.ItemPlaced), all(status.ItemConfirmed):
		return "", false // belum ada progress fulfillment, biarkan status order apa adanya
	}

	// Campuran: sebagian sudah jalan, sebagian belum (atau return sebagian).
	return StatusPartiallyConfirmed, true
}
