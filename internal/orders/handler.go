package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/bus"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/catalog"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/events"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/httpx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/redisx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

// Catalog: subset client product service yang dibutuhkan checkout.
type Catalog interface {
	ListByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type Handler struct {
	Repo    Repository
	Catalog Catalog
	Pub     bus.Publisher
	Redis   *redis.Client
	Log     *zap.Logger
}

type checkoutItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type checkoutReq struct {
	UserID        string            `json:"userId"`
	AddressID     string            `json:"addressId"`
	PaymentMethod string            `json:"paymentMethod"`
	Items         []checkoutItemReq `json:"items"`
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/orders", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Get("/orders/user/{userId}", h.listByUser)
	r.Get("/orders/items/{id}", h.getItem)
	r.Patch("/orders/items/{id}/status", h.updateItemStatus)
}

// checkout: validasi -> batch lookup catalog -> snapshot harga -> insert satu tx
// -> publish ORDER_CREATED ke inventory + notifikasi. Fail fast 4xx kalau
// produk tidak ketemu atau stok katalog kurang; downstream tidak pernah lihat
// order yang tidak valid.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || len(req.Items) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "userId and items are required")
		return
	}
	if req.PaymentMethod != PaymentMethodOnline && req.PaymentMethod != PaymentMethodCOD {
		httpx.WriteError(w, http.StatusBadRequest, "paymentMethod must be ONLINE or COD")
		return
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid quantity")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := h.Catalog.ListByIDs(ctx, ids)
	if err != nil {
		h.Log.Error("catalog lookup failed", zap.Error(err))
		httpx.WriteError(w, http.StatusBadGateway, "product lookup failed")
		return
	}

	o := Order{
		UserID:            req.UserID,
		ShippingAddressID: req.AddressID,
		PaymentMethod:     req.PaymentMethod,
	}
	for _, it := range req.Items {
		p, ok := products[it.ProductID]
		if !ok {
			httpx.WriteError(w, http.StatusNotFound, fmt.Sprintf("product %s not found", it.ProductID))
			return
		}
		if p.Stock < it.Quantity {
			httpx.WriteError(w, http.StatusBadRequest, fmt.Sprintf("%s is out of stock", p.Title))
			return
		}
		price := p.EffectivePrice()
		o.TotalAmount += price * float64(it.Quantity)
		o.Items = append(o.Items, OrderItem{
			ProductID:     it.ProductID,
			SellerID:      p.SellerID,
			TitleSnapshot: p.Title,
			Price:         price,
			Quantity:      it.Quantity,
		})
	}
	o.FinalAmount = o.TotalAmount

	if err := h.Repo.CreateOrder(ctx, &o); err != nil {
		h.Log.Error("create order failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "could not create order")
		return
	}

	// Cache status buat polling read.
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(ctx, statusKey, `{"status":"PENDING"}`, redisx.TTLStatusCache).Err()

	itemRefs := make([]events.OrderItemRef, 0, len(o.Items))
	for _, it := range o.Items {
		itemRefs = append(itemRefs, events.OrderItemRef{
			ProductID: it.ProductID,
			SellerID:  it.SellerID,
			Title:     it.TitleSnapshot,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	if err := h.Pub.Publish(ctx, events.QueueInventory, events.EventOrderCreated, o.ID, events.OrderCreatedPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		PaymentMode: o.PaymentMethod,
		FinalAmount: o.FinalAmount,
		Items:       itemRefs,
	}); err != nil {
		h.Log.Error("publish ORDER_CREATED failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	if err := h.Pub.Publish(ctx, events.QueueNotification, events.EventOrderConfirmed, o.ID, events.NotificationPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
	}); err != nil {
		h.Log.Warn("publish ORDER_CONFIRMED failed", zap.String("order_id", o.ID), zap.Error(err))
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"orderId": o.ID,
	})
}

type orderItemResp struct {
	ID            string  `json:"id"`
	SellerOrderID string  `json:"sellerOrderId,omitempty"`
	ProductID     string  `json:"productId"`
	SellerID      string  `json:"sellerId,omitempty"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"quantity"`
	Status        string  `json:"status"`
	RefundAmount  float64 `json:"refundAmount,omitempty"`
}

type orderResp struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	AddressID      string          `json:"addressId,omitempty"`
	PaymentMethod  string          `json:"paymentMethod"`
	Status         string          `json:"status"`
	TotalAmount    float64         `json:"totalAmount"`
	FinalAmount    float64         `json:"finalAmount"`
	SellerOrderIDs []string        `json:"sellerOrderIds,omitempty"`
	PaymentID      string          `json:"paymentId,omitempty"`
	Items          []orderItemResp `json:"items"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func toOrderResp(o Order) orderResp {
	resp := orderResp{
		ID:             o.ID,
		UserID:         o.UserID,
		AddressID:      o.ShippingAddressID,
		PaymentMethod:  o.PaymentMethod,
		Status:         string(o.Status),
		TotalAmount:    o.TotalAmount,
		FinalAmount:    o.FinalAmount,
		SellerOrderIDs: o.SellerOrderIDs,
		PaymentID:      o.PaymentID,
		CreatedAt:      o.CreatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResp{
			ID:            it.ID,
			SellerOrderID: it.SellerOrderID,
			ProductID:     it.ProductID,
			SellerID:      it.SellerID,
			Title:         it.TitleSnapshot,
			Price:         it.Price,
			Quantity:      it.Quantity,
			Status:        string(it.Status),
			RefundAmount:  it.RefundAmount,
		})
	}
	return resp
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Repo.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": toOrderResp(o)})
}

// getOrderStatus: cache Redis dulu, fallback DB.
func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		httpx.WriteJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body, _ := json.Marshal(map[string]string{"status": string(o.Status)})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	httpx.WriteJSON(w, http.StatusOK, json.RawMessage(body))
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	list, err := h.Repo.ListByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]orderResp, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResp(o))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": out})
}

// getItem: detail satu item + timeline status.
func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	item, err := h.Repo.GetItem(r.Context(), itemID)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "order item not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history, err := h.Repo.ItemHistory(r.Context(), itemID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	timeline := make([]map[string]any, 0, len(history))
	for _, c := range history {
		timeline = append(timeline, map[string]any{
			"status": c.Status,
			"at":     c.At.Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":            item.ID,
		"parentOrderId": item.ParentOrderID,
		"sellerOrderId": item.SellerOrderID,
		"productId":     item.ProductID,
		"sellerId":      item.SellerID,
		"title":         item.TitleSnapshot,
		"price":         item.Price,
		"quantity":      item.Quantity,
		"status":        string(item.Status),
		"refundAmount":  item.RefundAmount,
		"history":       timeline,
	}})
}

// updateItemStatus: CANCELLED di-fan-out ke inventory (release stok), payment
// (adjust/refund), dan seller (status): tiga compensating action independen,
// bukan satu transaksi; yang gagal publish cuma di-log. Status lain diteruskan
// ke seller saja.
func (h *Handler) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		httpx.WriteError(w, http.StatusBadRequest, "status is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	item, err := h.Repo.GetItem(ctx, itemID)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "order item not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	to := status.Item(req.Status)
	changed, err := h.Repo.SetItemStatus(ctx, itemID, to)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !changed {
		httpx.WriteError(w, http.StatusConflict,
			fmt.Sprintf("cannot transition item from %s to %s", item.Status, to))
		return
	}

	order, err := h.Repo.GetOrder(ctx, item.ParentOrderID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload := events.OrderItemCancelledPayload{
		OrderItemID:   item.ID,
		OrderID:       order.ID,
		ParentOrderID: order.ID,
		SellerOrderID: item.SellerOrderID,
		ProductID:     item.ProductID,
		SellerID:      item.SellerID,
		UserID:        order.UserID,
		Quantity:      item.Quantity,
		Price:         item.Price,
		Status:        req.Status,
	}

	if to == status.ItemCancelled {
		for _, q := range []string{events.QueueInventory, events.QueuePayment, events.QueueSeller} {
			if err := h.Pub.Publish(ctx, q, events.EventOrderItemCancelled, order.ID, payload); err != nil {
				h.Log.Error("publish ORDER_ITEM_CANCELLED failed",
					zap.String("queue", q), zap.String("order_item_id", item.ID), zap.Error(err))
			}
		}
	} else {
		if err := h.Pub.Publish(ctx, events.QueueSeller, events.EventOrderItemUpdate, order.ID, payload); err != nil {
			h.Log.Error("publish ORDER_ITEM_UPDATE failed",
				zap.String("order_item_id", item.ID), zap.Error(err))
		}
	}

	// Status parent langsung diturunkan ulang dari agregat item; order yang
	// semua itemnya batal jadi CANCELLED tanpa nunggu event balik.
	if sts, err := h.Repo.ItemStatuses(ctx, order.ID); err != nil {
		h.Log.Error("recompute order status failed", zap.String("order_id", order.ID), zap.Error(err))
	} else if next, ok := AggregateFromItems(sts); ok {
		if _, err := h.Repo.AdvanceStatus(ctx, order.ID, next); err != nil && !errors.Is(err, ErrNotFound) {
			h.Log.Error("advance order status failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("order item status updated to %s", req.Status),
	})
}
