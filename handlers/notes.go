package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"p9e.in/fixport/middleware"
	"p9e.in/fixport/models"
)

// ListNotes returns a work order's notes in chronological order.
func (h *WorkOrderHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	// scope check: the note list is only reachable through the parent
	if _, err := h.orders.GetWorkOrder(r.Context(), company.ID, id); err != nil {
		writeStoreError(w, err)
		return
	}
	notes, err := h.orders.ListNotes(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total": len(notes),
		"data":  notes,
	})
}

type noteReq struct {
	Note string `json:"note"`
}

// AddNote appends a note. Notes are never edited or deleted.
func (h *WorkOrderHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req noteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Note) == "" {
		http.Error(w, "note text is required", http.StatusBadRequest)
		return
	}

	if _, err := h.orders.GetWorkOrder(r.Context(), company.ID, id); err != nil {
		writeStoreError(w, err)
		return
	}

	claims := middleware.GetClaims(r)
	n := models.WorkOrderNote{
		WorkOrderID: id,
		AuthorID:    middleware.GetUserID(r),
		AuthorName:  claims.Name,
		Note:        req.Note,
	}
	if err := h.orders.AddNote(r.Context(), &n); err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(n)
}
