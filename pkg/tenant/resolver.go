// Package tenant resolves the company a request belongs to from an
// explicit slug parameter or the request host's subdomain.
package tenant

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"p9e.in/fixport/models"
	"p9e.in/fixport/utils"
)

// CompanyFinder is the slice of the store the resolver needs.
type CompanyFinder interface {
	CompanyBySlug(ctx context.Context, slug string) (*models.Company, error)
}

const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	company *models.Company
	at      time.Time
}

// Resolver looks companies up by slug and keeps a short-lived
// per-process cache so repeated requests from the same tenant don't
// re-hit the store. The cache is the only shared mutable state in the
// service.
type Resolver struct {
	finder CompanyFinder
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewResolver(finder CompanyFinder, logger *zap.Logger) *Resolver {
	return &Resolver{
		finder: finder,
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve derives a slug and returns the matching company.
// Precedence: the explicit slug parameter wins verbatim (lower-cased,
// trimmed); otherwise the slug comes from the host's subdomain. When
// neither yields a slug the request fails with ErrMissingSlug; there
// is no fallback tenant.
func (r *Resolver) Resolve(ctx context.Context, slugParam, host string) (*models.Company, error) {
	slug := utils.NormalizeSlug(slugParam)
	if slug == "" {
		slug = utils.SlugFromHost(host)
	}
	if slug == "" {
		return nil, models.ErrMissingSlug
	}

	if c := r.cached(slug); c != nil {
		return c, nil
	}

	company, err := r.finder.CompanyBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[slug] = cacheEntry{company: company, at: time.Now()}
	r.mu.Unlock()

	r.logger.Debug("tenant resolved", zap.String("slug", slug), zap.String("company", company.Name))
	return company, nil
}

func (r *Resolver) cached(slug string) *models.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[slug]
	if !ok || time.Since(e.at) > cacheTTL {
		return nil
	}
	return e.company
}
