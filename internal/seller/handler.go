package seller

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/httpx"
)

type Handler struct {
	Repo Repository
	Log  *zap.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Get("/sellers/{sellerId}/orders", h.listBySeller)
	r.Get("/seller-orders/{id}", h.get)
}

type itemResp struct {
	ProductID string  `json:"productId"`
	VariantID string  `json:"variantId,omitempty"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type historyResp struct {
	Status string    `json:"status"`
	At     time.Time `json:"date"`
}

type sellerOrderResp struct {
	ID            string        `json:"id"`
	ParentOrderID string        `json:"parentOrderId"`
	SellerID      string        `json:"sellerId"`
	UserID        string        `json:"userId"`
	Status        string        `json:"status"`
	Items         []itemResp    `json:"items"`
	History       []historyResp `json:"statusHistory,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func toResp(so SellerOrder) sellerOrderResp {
	resp := sellerOrderResp{
		ID:            so.ID,
		ParentOrderID: so.ParentOrderID,
		SellerID:      so.SellerID,
		UserID:        so.UserID,
		Status:        string(so.Status),
		CreatedAt:     so.CreatedAt,
	}
	for _, it := range so.Items {
		resp.Items = append(resp.Items, itemResp{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Title:     it.TitleSnapshot,
			Price:     it.PriceSnapshot,
			Quantity:  it.Quantity,
		})
	}
	for _, c := range so.History {
		resp.History = append(resp.History, historyResp{Status: c.Status, At: c.At})
	}
	return resp
}

func (h *Handler) listBySeller(w http.ResponseWriter, r *http.Request) {
	list, err := h.Repo.ListBySeller(r.Context(), chi.URLParam(r, "sellerId"))
	if err != nil {
		h.Log.Error("list seller orders failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]sellerOrderResp, 0, len(list))
	for _, so := range list {
		out = append(out, toResp(so))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	so, err := h.Repo.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "seller order not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"data": toResp(so)})
}
