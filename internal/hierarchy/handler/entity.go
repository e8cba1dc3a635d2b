package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/djiba142/Pharmacie-sub000/internal/hierarchy/repository"
	"github.com/djiba142/Pharmacie-sub000/pkg/httputil"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
)

// EntityHandler handles organizational entity endpoints
type EntityHandler struct {
	repo   *repository.EntityRepository
	logger *logger.Logger
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(repo *repository.EntityRepository, log *logger.Logger) *EntityHandler {
	return &EntityHandler{
		repo:   repo,
		logger: log,
	}
}

type createEntityRequest struct {
	Level    string  `json:"level" validate:"required,oneof=National Regional Prefectoral Peripheral"`
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
	Name     string  `json:"name" validate:"required,min=2,max=200"`
}

// Create creates a new entity
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	entity := &repository.Entity{
		Level:    repository.Level(req.Level),
		ParentID: req.ParentID,
		Name:     req.Name,
		IsActive: true,
	}
	if err := h.repo.Create(r.Context(), entity); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, entity)
}

// Get gets an entity by ID
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entity, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entity)
}

// ListChildren lists the immediate children of an entity
func (h *EntityHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	children, err := h.repo.ListChildren(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, children)
}

// ListSubtree lists an entity and every descendant
func (h *EntityHandler) ListSubtree(w http.ResponseWriter, r *http.Request) {
	entities, err := h.repo.ListSubtree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entities)
}

// Deactivate marks an entity inactive
func (h *EntityHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.Deactivate(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
