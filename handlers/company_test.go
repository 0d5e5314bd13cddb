package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"p9e.in/fixport/models"
	"p9e.in/fixport/pkg/tenant"
)

type companyFinderStub struct {
	slugs map[string]*models.Company
	err   error
}

func (s *companyFinderStub) CompanyBySlug(ctx context.Context, slug string) (*models.Company, error) {
	if s.err != nil {
		return nil, s.err
	}
	if c, ok := s.slugs[slug]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrTenantNotFound, slug)
}

func companyHandler(stub *companyFinderStub) *CompanyHandler {
	return NewCompanyHandler(tenant.NewResolver(stub, zap.NewNop()))
}

func TestCompanyByHostWithSlugParam(t *testing.T) {
	acme := &models.Company{Slug: "acme", Name: "Acme Industries"}
	h := companyHandler(&companyFinderStub{slugs: map[string]*models.Company{"acme": acme}})

	r := httptest.NewRequest(http.MethodGet, "/api/company/by-host?slug=ACME", nil)
	w := httptest.NewRecorder()
	h.ByHost(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp companyResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "acme", resp.Slug)
	assert.Equal(t, "Acme Industries", resp.Name)
}

func TestCompanyByHostFromHostHeader(t *testing.T) {
	acme := &models.Company{Slug: "acme", Name: "Acme Industries"}
	h := companyHandler(&companyFinderStub{slugs: map[string]*models.Company{"acme": acme}})

	r := httptest.NewRequest(http.MethodGet, "/api/company/by-host", nil)
	r.Host = "acme.portal.example.com"
	w := httptest.NewRecorder()
	h.ByHost(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCompanyByHostPrefersAppHostHeader(t *testing.T) {
	acme := &models.Company{Slug: "acme", Name: "Acme Industries"}
	h := companyHandler(&companyFinderStub{slugs: map[string]*models.Company{"acme": acme}})

	r := httptest.NewRequest(http.MethodGet, "/api/company/by-host", nil)
	r.Host = "portal.internal" // proxy-rewritten
	r.Header.Set("x-app-host", "www.acme.portal.example.com")
	w := httptest.NewRecorder()
	h.ByHost(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCompanyByHostNoSlugDerivable(t *testing.T) {
	h := companyHandler(&companyFinderStub{slugs: map[string]*models.Company{}})

	r := httptest.NewRequest(http.MethodGet, "/api/company/by-host", nil)
	r.Host = "example.com"
	w := httptest.NewRecorder()
	h.ByHost(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompanyByHostUnknownTenant(t *testing.T) {
	h := companyHandler(&companyFinderStub{slugs: map[string]*models.Company{}})

	r := httptest.NewRequest(http.MethodGet, "/api/company/by-host?slug=acme", nil)
	w := httptest.NewRecorder()
	h.ByHost(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompanyByHostUpstreamFailure(t *testing.T) {
	h := companyHandler(&companyFinderStub{err: fmt.Errorf("lookup: %w", models.ErrUpstream)})

	r := httptest.NewRequest(http.MethodGet, "/api/company/by-host?slug=acme", nil)
	w := httptest.NewRecorder()
	h.ByHost(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
