package models

import "errors"

// Sentinel errors shared across the service. Callers classify failures
// with errors.Is and map them onto HTTP statuses at the handler
// boundary; everything below wraps these with context via fmt.Errorf.
var (
	// ErrMissingSlug means no tenant slug could be derived from the
	// request (no slug parameter and no usable subdomain).
	ErrMissingSlug = errors.New("no tenant slug in request")

	// ErrTenantNotFound means the derived slug matched no active company.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrNotFound covers missing rows other than tenants.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks caller mistakes: bad enum values, missing
	// required fields, disallowed state changes.
	ErrValidation = errors.New("validation failed")

	// ErrConfig marks server-side misconfiguration, like missing mail
	// credentials. Never the caller's fault.
	ErrConfig = errors.New("configuration error")

	// ErrUpstream marks failures of a dependency: the database, the
	// object store or the mail provider.
	ErrUpstream = errors.New("upstream failure")
)
