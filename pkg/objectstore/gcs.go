package objectstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"p9e.in/fixport/models"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w: %v", models.ErrUpstream, err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Put uploads without overwrite: the DoesNotExist precondition makes a
// second write to the same path fail instead of clobbering it.
func (g *GCS) Put(ctx context.Context, path, contentType string, r io.Reader) error {
	obj := g.client.Bucket(g.bucket).Object(path).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("gcs upload %s: %w: %v", path, models.ErrUpstream, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs upload %s: %w: %v", path, models.ErrUpstream, err)
	}
	return nil
}

func (g *GCS) PublicURL(path string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, path)
}

func (g *GCS) Close() error {
	return g.client.Close()
}
