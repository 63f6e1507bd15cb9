package status

// ignore = entry sengaja tidak menghasilkan update di target. Berbeda dengan
// "tidak ada di tabel" (unknown) yang dianggap bug dan ketahuan di test.
const (
	ignoreItem        Item        = ""
	ignoreSellerOrder SellerOrder = ""
)

var shipmentToItem = map[Shipment]Item{
	ShipmentCreated:         ItemPacked,
	ShipmentPickedUp:        ItemShipped,
	ShipmentInTransit:       ItemShipped,
	ShipmentOutForDelivery:  ignoreItem, // item tidak membedakan OFD dari SHIPPED
	ShipmentDelivered:       ItemDelivered,
	ShipmentCancelled:       ItemCancelled,
	ShipmentReturnRequested: ItemReturnRequested,
	ShipmentReturned:        ItemReturned,
}

var shipmentToSellerOrder = map[Shipment]SellerOrder{
	ShipmentCreated:         SellerOrderPacked,
	ShipmentPickedUp:        SellerOrderShipped,
	ShipmentInTransit:       SellerOrderShipped,
	ShipmentOutForDelivery:  SellerOrderOutForDelivery,
	ShipmentDelivered:       SellerOrderDelivered,
	ShipmentCancelled:       SellerOrderCancelled,
	ShipmentReturnRequested: SellerOrderReturnRequested,
	ShipmentReturned:        SellerOrderReturnReceived,
}

var returnToItem = map[Return]Item{
	ReturnRequested:       ItemReturnRequested,
	ReturnApproved:        ItemReturnRequested,
	ReturnRejected:        ignoreItem, // item tetap DELIVERED, sengketa manual
	ReturnPickupScheduled: ItemReturnRequested,
	ReturnReceived:        ItemReturned,
	ReturnDisputeRaised:   ignoreItem,
	ReturnRefundInitiated: ItemRefunded,
	ReturnRefunded:        ItemRefunded,
}

var returnToSellerOrder = map[Return]SellerOrder{
	ReturnRequested:       SellerOrderReturnRequested,
	ReturnApproved:        SellerOrderReturnRequested,
	ReturnRejected:        ignoreSellerOrder,
	ReturnPickupScheduled: SellerOrderReturnRequested,
	ReturnReceived:        SellerOrderReturnReceived,
	ReturnDisputeRaised:   ignoreSellerOrder,
	ReturnRefundInitiated: SellerOrderReturnReceived,
	ReturnRefunded:        SellerOrderReturnReceived,
}

// ItemFromShipment: target status item untuk status shipment. ok=false berarti
// jangan update (ignore atau source tidak dikenal).
func ItemFromShipment(s Shipment) (Item, bool) {
	t, known := shipmentToItem[s]
	return t, known && t != ignoreItem
}

func SellerOrderFromShipment(s Shipment) (SellerOrder, bool) {
	t, known := shipmentToSellerOrder[s]
	return t, known && t != ignoreSellerOrder
}

func ItemFromReturn(s Return) (Item, bool) {
	t, known := returnToItem[s]
	return t, known && t != ignoreItem
}

func SellerOrderFromReturn(s Return) (SellerOrder, bool) {
	t, known := returnToSellerOrder[s]
	return t, known && t != ignoreSellerOrder
}
