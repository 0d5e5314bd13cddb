package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"p9e.in/fixport/middleware"
	"p9e.in/fixport/models"
	"p9e.in/fixport/pkg/mailer"
)

// WorkOrderStore is the CRUD slice of the store the handlers use.
type WorkOrderStore interface {
	ListWorkOrders(ctx context.Context, companyID uuid.UUID, status models.WorkOrderStatus) ([]models.WorkOrder, error)
	GetWorkOrder(ctx context.Context, companyID, id uuid.UUID) (*models.WorkOrder, error)
	CreateWorkOrder(ctx context.Context, wo *models.WorkOrder) error
	UpdateWorkOrder(ctx context.Context, wo *models.WorkOrder) error
	DeleteWorkOrder(ctx context.Context, companyID, id uuid.UUID) error
	ListNotes(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderNote, error)
	AddNote(ctx context.Context, n *models.WorkOrderNote) error
}

// Notifier is the dispatch slice of the mailer.
type Notifier interface {
	SendWorkOrderNotification(ctx context.Context, rec mailer.WorkOrderRecord) error
}

// WorkOrderHandler serves the tenant-scoped work-order CRUD screens.
type WorkOrderHandler struct {
	orders WorkOrderStore
	notify Notifier
	logger *zap.Logger
}

func NewWorkOrderHandler(orders WorkOrderStore, notify Notifier, logger *zap.Logger) *WorkOrderHandler {
	return &WorkOrderHandler{orders: orders, notify: notify, logger: logger}
}

// requireTenant returns the resolved company, refusing tokens minted
// for a different tenant.
func requireTenant(w http.ResponseWriter, r *http.Request) (*models.Company, bool) {
	company := middleware.GetCompany(r)
	if company == nil {
		http.Error(w, "no tenant resolved", http.StatusBadRequest)
		return nil, false
	}
	claims := middleware.GetClaims(r)
	if claims == nil || claims.CompanySlug != company.Slug {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return company, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "work order not found", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

type workOrderReq struct {
	Title           string  `json:"title"`
	Details         string  `json:"details"`
	Location        string  `json:"location"`
	Priority        string  `json:"priority"`
	Execution       string  `json:"execution"`
	PONumber        *string `json:"po_number"`
	PONotApplicable bool    `json:"po_na"`
}

// List returns the tenant's work orders newest first, optionally
// filtered by ?status=.
func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}
	status := models.WorkOrderStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.StatusNew, models.StatusInProgress, models.StatusOnHold, models.StatusCompleted:
	default:
		http.Error(w, "unknown status filter", http.StatusBadRequest)
		return
	}

	orders, err := h.orders.ListWorkOrders(r.Context(), company.ID, status)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total": len(orders),
		"data":  orders,
	})
}

// Create persists a new request and fires the notification dispatcher
// in the background. Dispatch failure never blocks or rolls back the
// insert.
func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}
	claims := middleware.GetClaims(r)

	var req workOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	wo := models.WorkOrder{
		CompanyID:       company.ID,
		Title:           strings.TrimSpace(req.Title),
		Details:         req.Details,
		Location:        strings.TrimSpace(req.Location),
		Priority:        models.WorkOrderPriority(req.Priority),
		Status:          models.StatusNew,
		Execution:       models.WorkOrderExecution(req.Execution),
		PONumber:        req.PONumber,
		PONotApplicable: req.PONotApplicable,
		RequesterID:     middleware.GetUserID(r),
		RequestedByName: claims.Name,
	}
	if wo.Priority == "" {
		wo.Priority = models.PriorityRoutine
	}
	if wo.Execution == "" {
		wo.Execution = models.ExecutionInHouse
	}
	if wo.PONotApplicable {
		wo.PONumber = nil
	}

	if err := h.orders.CreateWorkOrder(r.Context(), &wo); err != nil {
		writeStoreError(w, err)
		return
	}

	// fire-and-forget: the request path never waits on the provider
	go h.dispatchCreated(wo, company.Name, claims.Email)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(wo)
}

func (h *WorkOrderHandler) dispatchCreated(wo models.WorkOrder, companyName, submitterEmail string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := h.notify.SendWorkOrderNotification(ctx, mailer.WorkOrderRecord{
		Title:          wo.Title,
		Description:    wo.Details,
		Business:       companyName,
		Priority:       string(wo.Priority),
		SubmitterName:  wo.RequestedByName,
		SubmitterEmail: submitterEmail,
		CreatedAt:      wo.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error("work order notification failed",
			zap.String("work_order_id", wo.ID.String()), zap.Error(err))
	}
}

// Get returns one work order.
func (h *WorkOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	wo, err := h.orders.GetWorkOrder(r.Context(), company.ID, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wo)
}

type updateWorkOrderReq struct {
	workOrderReq
	Status string `json:"status"`
}

// Update writes the full row back (last write wins). Status changes
// must follow the lifecycle; completing this way still needs a note.
func (h *WorkOrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateWorkOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	wo, err := h.orders.GetWorkOrder(r.Context(), company.ID, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	next := wo.Status
	if req.Status != "" {
		next = models.WorkOrderStatus(req.Status)
		if !wo.CanTransition(next) {
			http.Error(w, "status change "+string(wo.Status)+" -> "+req.Status+" is not allowed", http.StatusConflict)
			return
		}
	}

	wo.Title = strings.TrimSpace(req.Title)
	wo.Details = req.Details
	wo.Location = strings.TrimSpace(req.Location)
	wo.Priority = models.WorkOrderPriority(req.Priority)
	wo.Execution = models.WorkOrderExecution(req.Execution)
	wo.PONumber = req.PONumber
	wo.PONotApplicable = req.PONotApplicable
	if wo.PONotApplicable {
		wo.PONumber = nil
	}
	wo.Status = next
	if next == models.StatusCompleted && wo.CompletedAt == nil {
		now := time.Now()
		wo.CompletedAt = &now
	}

	if err := h.orders.UpdateWorkOrder(r.Context(), wo); err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wo)
}

type completeReq struct {
	CompletedNote string `json:"completed_note"`
}

// Complete marks a work order done. The note is checked before any
// store call is made.
func (h *WorkOrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req completeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.CompletedNote) == "" {
		http.Error(w, "a completion note is required", http.StatusBadRequest)
		return
	}

	wo, err := h.orders.GetWorkOrder(r.Context(), company.ID, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !wo.CanTransition(models.StatusCompleted) {
		http.Error(w, "work order cannot be completed from status "+string(wo.Status), http.StatusConflict)
		return
	}

	now := time.Now()
	wo.Status = models.StatusCompleted
	wo.CompletedAt = &now
	wo.CompletedNote = req.CompletedNote

	if err := h.orders.UpdateWorkOrder(r.Context(), wo); err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wo)
}

// Delete hard-deletes a completed work order.
func (h *WorkOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.orders.DeleteWorkOrder(r.Context(), company.ID, id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
