package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"p9e.in/fixport/middleware"
	"p9e.in/fixport/models"
	"p9e.in/fixport/pkg/attach"
	"p9e.in/fixport/pkg/objectstore"
)

// PhotoStore is the photo slice of the store plus the parent lookup
// used for scoping.
type PhotoStore interface {
	GetWorkOrder(ctx context.Context, companyID, id uuid.UUID) (*models.WorkOrder, error)
	ListPhotos(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderPhoto, error)
}

// PhotoHandler accepts multi-file uploads and lists stored photos.
type PhotoHandler struct {
	pipeline *attach.Pipeline
	photos   PhotoStore
	objects  objectstore.Store
	logger   *zap.Logger
}

func NewPhotoHandler(pipeline *attach.Pipeline, photos PhotoStore, objects objectstore.Store, logger *zap.Logger) *PhotoHandler {
	return &PhotoHandler{pipeline: pipeline, photos: photos, objects: objects, logger: logger}
}

// Upload handles the multipart batch (fields work_order_id,
// company_slug, files). Files are processed one at a time; the first
// failure reports what made it in and what didn't.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		http.Error(w, "bad multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	slug := r.FormValue("company_slug")
	if slug != company.Slug {
		http.Error(w, "company_slug does not match this tenant", http.StatusForbidden)
		return
	}
	workOrderID, err := uuid.Parse(r.FormValue("work_order_id"))
	if err != nil {
		http.Error(w, "invalid work_order_id", http.StatusBadRequest)
		return
	}
	if _, err := h.photos.GetWorkOrder(r.Context(), company.ID, workOrderID); err != nil {
		writeStoreError(w, err)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		http.Error(w, "missing files field", http.StatusBadRequest)
		return
	}

	uploads := make([]attach.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			http.Error(w, "unreadable file "+fh.Filename+": "+err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		uploads = append(uploads, attach.Upload{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Content:  f,
		})
	}

	done, err := h.pipeline.Process(r.Context(), company.Slug, workOrderID, middleware.GetUserID(r), uploads)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, models.ErrValidation) {
			status = http.StatusBadRequest
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":    err.Error(),
			"uploaded": done, // earlier files in the batch stay stored
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"uploaded": done})
}

type photoResp struct {
	models.WorkOrderPhoto
	URL string `json:"url"`
}

// List returns a work order's photos oldest first, with public URLs
// derived from the stored paths.
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if _, err := h.photos.GetWorkOrder(r.Context(), company.ID, id); err != nil {
		writeStoreError(w, err)
		return
	}
	photos, err := h.photos.ListPhotos(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]photoResp, len(photos))
	for i, p := range photos {
		out[i] = photoResp{WorkOrderPhoto: p, URL: h.objects.PublicURL(p.StoragePath)}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total": len(out),
		"data":  out,
	})
}
