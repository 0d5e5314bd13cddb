package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"p9e.in/fixport/models"
	"p9e.in/fixport/pkg/mailer"
)

// NotifyHandler is the webhook target for database-event notifications:
// the store calls it with the freshly inserted work-order row.
type NotifyHandler struct {
	mail   Notifier
	logger *zap.Logger
}

func NewNotifyHandler(mail Notifier, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{mail: mail, logger: logger}
}

type notifyReq struct {
	Record mailer.WorkOrderRecord `json:"record"`
}

// WorkOrderCreated sends the single transactional email for a new work
// order. 400 for a bad record, 500 for missing credentials, 502 when
// the provider refuses.
func (h *NotifyHandler) WorkOrderCreated(w http.ResponseWriter, r *http.Request) {
	var req notifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.mail.SendWorkOrderNotification(r.Context(), req.Record); err != nil {
		h.logger.Error("notification dispatch failed", zap.Error(err))
		switch {
		case errors.Is(err, models.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, models.ErrConfig):
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
}
