package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/djiba142/Pharmacie-sub000/internal/stock/service"
	"github.com/djiba142/Pharmacie-sub000/pkg/actor"
	"github.com/djiba142/Pharmacie-sub000/pkg/httputil"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
)

// StockHandler handles stock ledger endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{service: svc, logger: log}
}

type recordMovementRequest struct {
	EntityID     string `json:"entity_id" validate:"required,uuid"`
	LotID        string `json:"lot_id" validate:"required,uuid"`
	MovementType string `json:"movement_type" validate:"required,oneof=Entree Sortie Adjustment"`
	Quantity     int    `json:"quantity"`
	Comment      string `json:"comment" validate:"max=500"`
}

// RecordMovement appends one movement to the ledger
func (h *StockHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req recordMovementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := &service.MovementInput{
		EntityID:     req.EntityID,
		LotID:        req.LotID,
		MovementType: req.MovementType,
		Quantity:     req.Quantity,
		Comment:      req.Comment,
	}
	if a := actor.FromContext(r.Context()); a != nil {
		in.ActorID = a.ID
	}

	record, err := h.service.RecordMovement(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, record)
}

// ListEntityStock lists an entity's stock lines with classified status
func (h *StockHandler) ListEntityStock(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.ListByEntity(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, lines, map[string]interface{}{
		"count": len(lines),
	})
}

// GetStockRecord gets the projected quantity for one (entity, lot) pair
func (h *StockHandler) GetStockRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetRecord(r.Context(),
		chi.URLParam(r, "entityID"), chi.URLParam(r, "lotID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, record)
}

type updateThresholdsRequest struct {
	AlertThreshold   int `json:"alert_threshold" validate:"gte=0"`
	MinimalThreshold int `json:"minimal_threshold" validate:"gte=0"`
}

// UpdateThresholds sets a stock line's alert and minimal thresholds
func (h *StockHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var req updateThresholdsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	record, err := h.service.UpdateThresholds(r.Context(),
		chi.URLParam(r, "entityID"), chi.URLParam(r, "lotID"),
		req.AlertThreshold, req.MinimalThreshold)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, record)
}

// ListMovements lists the ledger for one (entity, lot) pair
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.ListMovements(r.Context(),
		chi.URLParam(r, "entityID"), chi.URLParam(r, "lotID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, movements, map[string]interface{}{
		"count": len(movements),
	})
}

// VerifyReplay replays the ledger and compares it with the projection
func (h *StockHandler) VerifyReplay(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.VerifyReplay(r.Context(),
		chi.URLParam(r, "entityID"), chi.URLParam(r, "lotID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}
