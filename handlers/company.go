package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"p9e.in/fixport/middleware"
	"p9e.in/fixport/pkg/tenant"
)

// CompanyHandler serves the tenant-resolution endpoint the browser app
// calls once per page load.
type CompanyHandler struct {
	resolver *tenant.Resolver
}

func NewCompanyHandler(resolver *tenant.Resolver) *CompanyHandler {
	return &CompanyHandler{resolver: resolver}
}

type companyResp struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
}

// ByHost resolves ?slug= or the Host/x-app-host header to a company.
func (h *CompanyHandler) ByHost(w http.ResponseWriter, r *http.Request) {
	company, err := h.resolver.Resolve(r.Context(), r.URL.Query().Get("slug"), middleware.RequestHost(r))
	if err != nil {
		middleware.WriteTenantError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(companyResp{ID: company.ID, Slug: company.Slug, Name: company.Name})
}
