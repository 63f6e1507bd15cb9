// Package status adalah satu-satunya tempat vocabulary status lintas service
// didefinisikan dan dipetakan. Shipment, order-item, seller-order, dan return
// punya enumerasi yang mirip tapi tidak identik; penerjemahannya eksplisit di
// tabel bawah, bukan string equality.
package status

// Shipment vocabulary (fulfillment service).
type Shipment string

const (
	ShipmentCreated         Shipment = "CREATED"
	ShipmentPickedUp        Shipment = "PICKED_UP"
	ShipmentInTransit       Shipment = "IN_TRANSIT"
	ShipmentOutForDelivery  Shipment = "OUT_FOR_DELIVERY"
	ShipmentDelivered       Shipment = "DELIVERED"
	ShipmentCancelled       Shipment = "CANCELLED"
	ShipmentReturnRequested Shipment = "RETURN_REQUESTED"
	ShipmentReturned        Shipment = "RETURNED"
)

// Order-item vocabulary (order service).
type Item string

const (
	ItemPlaced          Item = "PLACED"
	ItemConfirmed       Item = "CONFIRMED"
	ItemPacked          Item = "PACKED"
	ItemShipped         Item = "SHIPPED"
	ItemDelivered       Item = "DELIVERED"
	ItemCancelled       Item = "CANCELLED"
	ItemReturnRequested Item = "RETURN_REQUESTED"
	ItemReturned        Item = "RETURNED"
	ItemRefunded        Item = "REFUNDED"
)

// Seller-order vocabulary (seller service).
type SellerOrder string

const (
	SellerOrderPlaced          SellerOrder = "PLACED"
	SellerOrderConfirmed       SellerOrder = "CONFIRMED"
	SellerOrderPacked          SellerOrder = "PACKED"
	SellerOrderShipped         SellerOrder = "SHIPPED"
	SellerOrderOutForDelivery  SellerOrder = "OUT_FOR_DELIVERY"
	SellerOrderDelivered       SellerOrder = "DELIVERED"
	SellerOrderReturnRequested SellerOrder = "RETURN_REQUESTED"
	SellerOrderReturnReceived  SellerOrder = "RETURN_RECEIVED"
	SellerOrderCancelled       SellerOrder = "CANCELLED"
)

// Return vocabulary (fulfillment service).
type Return string

const (
	ReturnRequested       Return = "REQUESTED"
	ReturnApproved        Return = "APPROVED"
	ReturnRejected        Return = "REJECTED"
	ReturnPickupScheduled Return = "PICKUP_SCHEDULED"
	ReturnReceived        Return = "RETURN_RECEIVED"
	ReturnDisputeRaised   Return = "DISPUTE_RAISED"
	ReturnRefundInitiated Return = "REFUND_INITIATED"
	ReturnRefunded        Return = "REFUNDED"
)

// AllShipment dkk dipakai test totality: setiap source status wajib punya
// entry di semua tabel tujuannya.
var (
	AllShipment = []Shipment{
		ShipmentCreated, ShipmentPickedUp, ShipmentInTransit, ShipmentOutForDelivery,
		ShipmentDelivered, ShipmentCancelled, ShipmentReturnRequested, ShipmentReturned,
	}
	AllReturn = []Return{
		ReturnRequested, ReturnApproved, ReturnRejected, ReturnPickupScheduled,
		ReturnReceived, ReturnDisputeRaised, ReturnRefundInitiated, ReturnRefunded,
	}
)
