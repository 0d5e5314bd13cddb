package middleware

import (
	"context"
	"errors"
	"net/http"

	"p9e.in/fixport/models"
	"p9e.in/fixport/pkg/tenant"
)

// HostHeader lets proxies forward the original browser host when the
// Host header has already been rewritten.
const HostHeader = "x-app-host"

// Tenant resolves the request's company and stashes it in the context.
type Tenant struct {
	resolver *tenant.Resolver
}

func NewTenant(resolver *tenant.Resolver) *Tenant {
	return &Tenant{resolver: resolver}
}

// RequestHost prefers the x-app-host header over Host.
func RequestHost(r *http.Request) string {
	if h := r.Header.Get(HostHeader); h != "" {
		return h
	}
	return r.Host
}

func (t *Tenant) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		company, err := t.resolver.Resolve(r.Context(), r.URL.Query().Get("slug"), RequestHost(r))
		if err != nil {
			WriteTenantError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCompany(r.Context(), company)))
	})
}

// WriteTenantError maps resolver errors onto the documented statuses.
func WriteTenantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrMissingSlug):
		http.Error(w, "no tenant slug in request", http.StatusBadRequest)
	case errors.Is(err, models.ErrTenantNotFound):
		http.Error(w, "tenant not found", http.StatusNotFound)
	default:
		http.Error(w, "tenant lookup failed: "+err.Error(), http.StatusInternalServerError)
	}
}

// WithCompany returns a context carrying the resolved tenant.
func WithCompany(ctx context.Context, c *models.Company) context.Context {
	return context.WithValue(ctx, companyKey, c)
}

// GetCompany pulls the resolved *Company out of the request context.
func GetCompany(r *http.Request) *models.Company {
	if c, ok := r.Context().Value(companyKey).(*models.Company); ok {
		return c
	}
	return nil
}
