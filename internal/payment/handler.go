package payment

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/httpx"
)

// Handler: read-only lookup ledger. Mutasi cuma lewat event.
type Handler struct {
	Repo Repository
	Log  *zap.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Get("/payments/order/{orderId}", h.getByOrder)
}

type txnResp struct {
	TransactionID string    `json:"transactionId"`
	SellerOrderID string    `json:"sellerOrderId,omitempty"`
	OrderItemID   string    `json:"orderItemId,omitempty"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

type paymentResp struct {
	ID              string    `json:"_id"`
	OrderID         string    `json:"orderId"`
	UserID          string    `json:"userId"`
	Gateway         string    `json:"gateway"`
	Currency        string    `json:"currency"`
	Amount          int64     `json:"amount"`
	CollectedAmount int64     `json:"collectedAmount"`
	PendingAmount   int64     `json:"pendingAmount"`
	IsFullyPaid     bool      `json:"isFullyPaid"`
	Status          string    `json:"status"`
	Transactions    []txnResp `json:"transactions"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (h *Handler) getByOrder(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.GetByOrder(r.Context(), chi.URLParam(r, "orderId"))
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "payment not found for this order")
		return
	}
	if err != nil {
		h.Log.Error("get payment failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := paymentResp{
		ID:              p.ID,
		OrderID:         p.OrderID,
		UserID:          p.UserID,
		Gateway:         p.Gateway,
		Currency:        p.Currency,
		Amount:          p.Amount,
		CollectedAmount: p.CollectedAmount,
		PendingAmount:   p.PendingAmount,
		IsFullyPaid:     p.IsFullyPaid(),
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
	}
	for _, t := range p.Transactions {
		resp.Transactions = append(resp.Transactions, txnResp{
			TransactionID: t.TransactionID,
			SellerOrderID: t.SellerOrderID,
			OrderItemID:   t.OrderItemID,
			Amount:        t.Amount,
			Method:        t.Method,
			Status:        t.Status,
			Timestamp:     t.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": resp})
}
