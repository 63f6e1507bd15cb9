package inventory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/httpx"
)

// Handler: surface admin/seed buat isi stok. Saga sendiri tidak lewat sini.
type Handler struct {
	Repo Repository
	Log  *zap.Logger
}

type upsertReq struct {
	ProductID         string `json:"productId"`
	SellerID          string `json:"sellerId"`
	VariantID         string `json:"variantId"`
	CurrentStock      int    `json:"currentStock"`
	WarehouseLocation string `json:"warehouseLocation"`
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/inventory", h.upsert)
	r.Post("/inventory/bulk", h.bulkUpsert)
	r.Get("/inventory/{productId}", h.getByProduct)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" || req.CurrentStock < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "productId and non-negative currentStock required")
		return
	}

	rec := Record{
		ProductID:         req.ProductID,
		SellerID:          req.SellerID,
		VariantID:         req.VariantID,
		CurrentStock:      req.CurrentStock,
		WarehouseLocation: req.WarehouseLocation,
	}
	if err := h.Repo.Upsert(r.Context(), &rec); err != nil {
		h.Log.Error("upsert inventory failed", zap.String("product_id", req.ProductID), zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"status": "success", "id": rec.ID})
}

func (h *Handler) bulkUpsert(w http.ResponseWriter, r *http.Request) {
	var reqs []upsertReq
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "items must be an array")
		return
	}

	okCount := 0
	var failed []string
	for _, req := range reqs {
		if req.ProductID == "" || req.CurrentStock < 0 {
			failed = append(failed, req.ProductID)
			continue
		}
		rec := Record{
			ProductID:         req.ProductID,
			SellerID:          req.SellerID,
			VariantID:         req.VariantID,
			CurrentStock:      req.CurrentStock,
			WarehouseLocation: req.WarehouseLocation,
		}
		if err := h.Repo.Upsert(r.Context(), &rec); err != nil {
			h.Log.Error("bulk upsert item failed", zap.String("product_id", req.ProductID), zap.Error(err))
			failed = append(failed, req.ProductID)
			continue
		}
		okCount++
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":      "bulk upload processed",
		"successCount": okCount,
		"errorCount":   len(failed),
		"failed":       failed,
	})
}

func (h *Handler) getByProduct(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Repo.GetByProduct(r.Context(), chi.URLParam(r, "productId"))
	if errors.Is(err, ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "inventory not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"productId":     rec.ProductID,
			"sellerId":      rec.SellerID,
			"currentStock":  rec.CurrentStock,
			"reservedStock": rec.ReservedStock,
		},
	})
}
