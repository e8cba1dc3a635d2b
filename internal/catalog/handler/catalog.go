package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/djiba142/Pharmacie-sub000/internal/catalog/repository"
	"github.com/djiba142/Pharmacie-sub000/pkg/httputil"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
	"github.com/djiba142/Pharmacie-sub000/pkg/messaging"
)

// CatalogHandler handles medicament and lot endpoints
type CatalogHandler struct {
	medicamentRepo *repository.MedicamentRepository
	lotRepo        *repository.LotRepository
	publisher      *messaging.Publisher
	logger         *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(
	medicamentRepo *repository.MedicamentRepository,
	lotRepo *repository.LotRepository,
	publisher *messaging.Publisher,
	log *logger.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		medicamentRepo: medicamentRepo,
		lotRepo:        lotRepo,
		publisher:      publisher,
		logger:         log,
	}
}

type createMedicamentRequest struct {
	DCI            string `json:"dci" validate:"required,min=2,max=200"`
	CommercialName string `json:"commercial_name" validate:"required,min=2,max=200"`
	CategoryClass  string `json:"category_class" validate:"required,min=2,max=100"`
}

// CreateMedicament creates a medicament reference entry
func (h *CatalogHandler) CreateMedicament(w http.ResponseWriter, r *http.Request) {
	var req createMedicamentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	m := &repository.Medicament{
		DCI:            req.DCI,
		CommercialName: req.CommercialName,
		CategoryClass:  req.CategoryClass,
		IsActive:       true,
	}
	if err := h.medicamentRepo.Create(r.Context(), m); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, m)
}

// GetMedicament gets a medicament by ID
func (h *CatalogHandler) GetMedicament(w http.ResponseWriter, r *http.Request) {
	m, err := h.medicamentRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, m)
}

// ListMedicaments lists medicaments
func (h *CatalogHandler) ListMedicaments(w http.ResponseWriter, r *http.Request) {
	medicaments, err := h.medicamentRepo.List(r.Context(), r.URL.Query().Get("category_class"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, medicaments)
}

// DeactivateMedicament marks a medicament inactive
func (h *CatalogHandler) DeactivateMedicament(w http.ResponseWriter, r *http.Request) {
	if err := h.medicamentRepo.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

type createLotRequest struct {
	MedicamentID    string    `json:"medicament_id" validate:"required,uuid"`
	BatchNumber     string    `json:"batch_number" validate:"required,min=1,max=100"`
	ManufactureDate time.Time `json:"manufacture_date" validate:"required"`
	ExpiryDate      time.Time `json:"expiry_date" validate:"required"`
	InitialQuantity int       `json:"initial_quantity" validate:"gte=0"`
}

// CreateLot creates a lot for a medicament
func (h *CatalogHandler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req createLotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	// The medicament must exist before a batch of it can be registered.
	if _, err := h.medicamentRepo.GetByID(r.Context(), req.MedicamentID); err != nil {
		httputil.Error(w, err)
		return
	}

	lot := &repository.Lot{
		MedicamentID:    req.MedicamentID,
		BatchNumber:     req.BatchNumber,
		ManufactureDate: req.ManufactureDate,
		ExpiryDate:      req.ExpiryDate,
		InitialQuantity: req.InitialQuantity,
	}
	if err := h.lotRepo.Create(r.Context(), lot); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lot)
}

// GetLot gets a lot by ID
func (h *CatalogHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.lotRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lot)
}

// ListLotsByMedicament lists the lots of a medicament
func (h *CatalogHandler) ListLotsByMedicament(w http.ResponseWriter, r *http.Request) {
	lots, err := h.lotRepo.ListByMedicament(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, lots)
}

// RecallLot marks a lot as recalled
func (h *CatalogHandler) RecallLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.lotRepo.Recall(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(r.Context(), messaging.EventLotRecalled, messaging.LotExpiryEvent{
			LotID:        lot.ID,
			MedicamentID: lot.MedicamentID,
			BatchNumber:  lot.BatchNumber,
			ExpiryDate:   lot.ExpiryDate,
		}); err != nil {
			h.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot recalled event")
		}
	}

	httputil.JSON(w, http.StatusOK, lot)
}
