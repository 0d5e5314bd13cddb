// Package objectstore abstracts where uploaded binaries land: Google
// Cloud Storage in production, the local filesystem in development.
package objectstore

import (
	"context"
	"io"
)

// Store writes binary objects addressed by a slash-separated path.
// Put must refuse to overwrite an existing object; reads happen through
// the public URL only. The store enforces whatever access control it
// has, this code adds none.
type Store interface {
	Put(ctx context.Context, path, contentType string, r io.Reader) error
	PublicURL(path string) string
}
