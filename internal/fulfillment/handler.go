package fulfillment

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-marketplace-saga.git/internal/httpx"
	"github.com/ariefcatur/go-marketplace-saga.git/internal/status"
)

type Handler struct {
	Svc  *Service
	Repo Repository
	Log  *zap.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/shipments", h.createShipment)
	r.Post("/shipments/delivered", h.markDelivered)
	r.Get("/shipments/{id}", h.getShipment)
	r.Get("/shipments/order/{orderId}", h.getByOrder)
	r.Get("/shipments/seller-order/{sellerOrderId}", h.getBySellerOrder)
	r.Patch("/shipments/{id}/status", h.updateStatus)

	r.Get("/returns", h.listReturns)
	r.Post("/returns", h.requestReturn)
	r.Patch("/returns/{id}/status", h.updateReturnStatus)
	r.Post("/returns/{id}/pickup", h.confirmPickup)
}

type createShipmentReq struct {
	SellerOrderID     string `json:"sellerOrderId"`
	ParentOrderID     string `json:"parentOrderId"`
	SellerID          string `json:"sellerId"`
	UserID            string `json:"userId"`
	CourierName       string `json:"courierName"`
	InventoryLocation string `json:"inventoryLocation"`
}

func (h *Handler) createShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SellerOrderID == "" || req.ParentOrderID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "sellerOrderId and parentOrderId required")
		return
	}

	sh, err := h.Svc.CreateShipment(r.Context(), CreateShipmentInput{
		SellerOrderID:     req.SellerOrderID,
		ParentOrderID:     req.ParentOrderID,
		SellerID:          req.SellerID,
		UserID:            req.UserID,
		Courier:           req.CourierName,
		WarehouseLocation: req.InventoryLocation,
	})
	if err != nil {
		h.Log.Error("create shipment failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": shipmentResp(sh)})
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID       string `json:"orderId"`
		SellerOrderID string `json:"sellerOrderId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sh, err := h.Svc.MarkDelivered(r.Context(), req.OrderID, req.SellerOrderID)
	if errors.Is(err, ErrShipmentNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "shipment not found")
		return
	}
	if err != nil {
		h.Log.Error("mark delivered failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": shipmentResp(sh)})
}

func (h *Handler) getShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := h.Repo.GetShipment(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrShipmentNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "shipment not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": shipmentResp(sh)})
}

func (h *Handler) getBySellerOrder(w http.ResponseWriter, r *http.Request) {
	sh, err := h.Repo.GetShipmentBySellerOrder(r.Context(), chi.URLParam(r, "sellerOrderId"))
	if errors.Is(err, ErrShipmentNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "shipment not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": shipmentResp(sh)})
}

func (h *Handler) getByOrder(w http.ResponseWriter, r *http.Request) {
	shipments, err := h.Repo.ListShipmentsByOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(shipments) == 0 {
		httpx.WriteError(w, http.StatusNotFound, "shipments not found for this order")
		return
	}
	out := make([]map[string]any, 0, len(shipments))
	for _, sh := range shipments {
		out = append(out, shipmentResp(sh))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": out})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status   string `json:"status"`
		Location string `json:"location"`
		Remark   string `json:"remark"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	sh, err := h.Svc.UpdateShipmentStatus(r.Context(), chi.URLParam(r, "id"),
		status.Shipment(req.Status), req.Location, req.Remark)
	if errors.Is(err, ErrUnknownStatus) {
		httpx.WriteError(w, http.StatusBadRequest, "unknown shipment status")
		return
	}
	if errors.Is(err, ErrShipmentNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "shipment not found")
		return
	}
	if err != nil {
		h.Log.Error("update shipment status failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": shipmentResp(sh)})
}

func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	returns, err := h.Repo.ListReturns(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]any, 0, len(returns))
	for _, rr := range returns {
		out = append(out, returnResp(rr))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success", "results": len(out), "data": out,
	})
}

type requestReturnReq struct {
	SellerOrderID string   `json:"sellerOrderId"`
	UserID        string   `json:"userId"`
	Reason        string   `json:"reason"`
	Description   string   `json:"description"`
	Images        []string `json:"images"`
	RefundAmount  float64  `json:"refundAmount"`
}

func (h *Handler) requestReturn(w http.ResponseWriter, r *http.Request) {
	var req requestReturnReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SellerOrderID == "" || req.Reason == "" {
		httpx.WriteError(w, http.StatusBadRequest, "sellerOrderId and reason required")
		return
	}

	rr, err := h.Svc.RequestReturn(r.Context(), RequestReturnInput{
		SellerOrderID: req.SellerOrderID,
		UserID:        req.UserID,
		Reason:        req.Reason,
		Description:   req.Description,
		Images:        req.Images,
		RefundAmount:  int64(math.Round(req.RefundAmount * 100)),
	})
	if errors.Is(err, ErrShipmentNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "shipment not found for the given sellerOrderId")
		return
	}
	if err != nil {
		h.Log.Error("request return failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": returnResp(rr)})
}

func (h *Handler) updateReturnStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Remark string `json:"remark"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rr, err := h.Svc.UpdateReturnStatus(r.Context(), chi.URLParam(r, "id"),
		status.Return(req.Status), req.Remark)
	if errors.Is(err, ErrUnknownStatus) {
		httpx.WriteError(w, http.StatusBadRequest, "unknown return status")
		return
	}
	if errors.Is(err, ErrReturnNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "return request not found")
		return
	}
	if err != nil {
		h.Log.Error("update return status failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": returnResp(rr)})
}

func (h *Handler) confirmPickup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Condition string `json:"condition"`
		Remark    string `json:"remark"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rr, err := h.Svc.ConfirmPickup(r.Context(), chi.URLParam(r, "id"), req.Condition, req.Remark)
	if errors.Is(err, ErrReturnNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "return request not found")
		return
	}
	if errors.Is(err, ErrInvalidReturnState) {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("confirm pickup failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": returnResp(rr)})
}

func shipmentResp(sh Shipment) map[string]any {
	history := make([]map[string]any, 0, len(sh.History))
	for _, ev := range sh.History {
		history = append(history, map[string]any{
			"status":    string(ev.Status),
			"slug":      ev.Slug,
			"location":  ev.Location,
			"remark":    ev.Remark,
			"timestamp": ev.At.Format(time.RFC3339),
		})
	}
	return map[string]any{
		"_id":             sh.ID,
		"sellerOrderId":   sh.SellerOrderID,
		"parentOrderId":   sh.ParentOrderID,
		"sellerId":        sh.SellerID,
		"courierName":     sh.Courier,
		"trackingNumber":  sh.TrackingNumber,
		"shipmentStatus":  string(sh.Status),
		"trackingHistory": history,
		"createdAt":       sh.CreatedAt.Format(time.RFC3339),
	}
}

func returnResp(rr ReturnRequest) map[string]any {
	evs := make([]map[string]any, 0, len(rr.Events))
	for _, ev := range rr.Events {
		evs = append(evs, map[string]any{
			"status": string(ev.Status),
			"remark": ev.Remark,
			"date":   ev.At.Format(time.RFC3339),
		})
	}
	return map[string]any{
		"_id":           rr.ID,
		"sellerOrderId": rr.SellerOrderID,
		"shipmentId":    rr.ShipmentID,
		"userId":        rr.UserID,
		"reason":        rr.Reason,
		"description":   rr.Description,
		"images":        rr.Images,
		"refundAmount":  rr.RefundAmount,
		"status":        string(rr.Status),
		"events":        evs,
		"createdAt":     rr.CreatedAt.Format(time.RFC3339),
	}
}
