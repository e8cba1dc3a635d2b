package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/djiba142/Pharmacie-sub000/internal/orders/service"
	"github.com/djiba142/Pharmacie-sub000/internal/orders/workflow"
	"github.com/djiba142/Pharmacie-sub000/pkg/httputil"
	"github.com/djiba142/Pharmacie-sub000/pkg/logger"
)

// OrderHandler handles order workflow endpoints
type OrderHandler struct {
	service *service.OrderService
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: log}
}

type createOrderLineRequest struct {
	MedicamentID      string `json:"medicament_id" validate:"required,uuid"`
	QuantityRequested int    `json:"quantity_requested" validate:"required,gt=0"`
}

type createOrderRequest struct {
	RequestingEntityID string                   `json:"requesting_entity_id" validate:"required,uuid"`
	Priority           string                   `json:"priority" validate:"omitempty,oneof=Normal Urgent"`
	Comment            string                   `json:"comment" validate:"max=500"`
	Lines              []createOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Create creates an order in Draft with its lines
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := &service.CreateOrderInput{
		RequestingEntityID: req.RequestingEntityID,
		Priority:           req.Priority,
		Comment:            req.Comment,
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, service.CreateOrderLineInput{
			MedicamentID:      line.MedicamentID,
			QuantityRequested: line.QuantityRequested,
		})
	}

	order, err := h.service.Create(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, order)
}

// Get gets an order with its lines
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, order)
}

// ListByEntity lists an entity's orders
func (h *OrderHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListByRequestingEntity(r.Context(),
		chi.URLParam(r, "id"),
		workflow.Status(r.URL.Query().Get("status")))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, orders, map[string]interface{}{
		"count": len(orders),
	})
}

type transitionRequest struct {
	Action              string         `json:"action" validate:"required"`
	ApprovedQuantities  map[string]int `json:"approved_quantities,omitempty"`
	DeliveredQuantities map[string]int `json:"delivered_quantities,omitempty"`
	SupplyingEntityID   string         `json:"supplying_entity_id" validate:"omitempty,uuid"`
}

// Transition applies one workflow action to an order
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	order, err := h.service.Transition(r.Context(), &service.TransitionInput{
		OrderID:             chi.URLParam(r, "id"),
		Action:              workflow.Action(req.Action),
		ApprovedQuantities:  req.ApprovedQuantities,
		DeliveredQuantities: req.DeliveredQuantities,
		SupplyingEntityID:   req.SupplyingEntityID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, order)
}

// AvailableActions lists the actions the caller may apply right now
func (h *OrderHandler) AvailableActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.service.AvailableActions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if actions == nil {
		actions = []workflow.Action{}
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"actions": actions,
	})
}
