package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"p9e.in/fixport/models"
)

// Local keeps objects on disk for development. Files are served back
// under baseURL/uploads/ by the router's static file handler.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) *Local {
	return &Local{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (l *Local) Put(ctx context.Context, path, contentType string, r io.Reader) error {
	full := filepath.Join(l.dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("local store mkdir: %w: %v", models.ErrUpstream, err)
	}
	// O_EXCL mirrors the bucket's no-overwrite precondition
	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("local store create %s: %w: %v", path, models.ErrUpstream, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("local store write %s: %w: %v", path, models.ErrUpstream, err)
	}
	return nil
}

func (l *Local) PublicURL(path string) string {
	return l.baseURL + "/uploads/" + path
}
