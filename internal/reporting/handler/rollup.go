package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/djiba142/Pharmacie-sub000/internal/reporting/service"
	"github.com/djiba142/Pharmacie-sub000/pkg/httputil"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
)

// RollupHandler handles hierarchical reporting endpoints
type RollupHandler struct {
	service *service.RollupService
	logger  *logger.Logger
}

// NewRollupHandler creates a new rollup handler
func NewRollupHandler(svc *service.RollupService, log *logger.Logger) *RollupHandler {
	return &RollupHandler{service: svc, logger: log}
}

// Rollup aggregates stock status across an entity's subtree
func (h *RollupHandler) Rollup(w http.ResponseWriter, r *http.Request) {
	rollup, err := h.service.Rollup(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rollup)
}
