// Package attach moves uploaded files into the object store and records
// their metadata rows.
package attach

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"p9e.in/fixport/models"
	"p9e.in/fixport/pkg/objectstore"
	"p9e.in/fixport/utils"
)

// PhotoRecorder is the slice of the store the pipeline writes metadata
// through.
type PhotoRecorder interface {
	AddPhoto(ctx context.Context, p *models.WorkOrderPhoto) error
}

// Upload is one incoming file.
type Upload struct {
	Name     string
	MimeType string
	Content  io.Reader
}

// Uploaded describes a stored file.
type Uploaded struct {
	Path string `json:"path"`
	Mime string `json:"mime"`
}

// Pipeline uploads batches one file at a time so the position of a
// partial failure is deterministic. The first failure (upload or
// metadata insert) aborts the remaining files; files stored before it
// are NOT rolled back.
type Pipeline struct {
	objects objectstore.Store
	photos  PhotoRecorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewPipeline(objects objectstore.Store, photos PhotoRecorder, logger *zap.Logger) *Pipeline {
	return &Pipeline{objects: objects, photos: photos, logger: logger, now: time.Now}
}

// Process stores each file under slug/workOrderID/timestamp_name and
// inserts its work_order_photos row. It returns what made it in even
// when it also returns an error, so the caller can report both.
func (p *Pipeline) Process(ctx context.Context, slug string, workOrderID, uploadedBy uuid.UUID, files []Upload) ([]Uploaded, error) {
	done := make([]Uploaded, 0, len(files))
	for i, f := range files {
		name := utils.SanitizeFilename(f.Name)
		if name == "" {
			name = "file"
		}
		path := fmt.Sprintf("%s/%s/%d_%s", slug, workOrderID, p.now().Unix(), name)

		if err := p.objects.Put(ctx, path, f.MimeType, f.Content); err != nil {
			p.logger.Warn("upload aborted",
				zap.String("path", path),
				zap.Int("failed_index", i),
				zap.Int("stored", len(done)),
				zap.Error(err))
			return done, fmt.Errorf("file %d (%s): %w", i+1, f.Name, err)
		}

		photo := &models.WorkOrderPhoto{
			WorkOrderID: workOrderID,
			StoragePath: path,
			MimeType:    f.MimeType,
			UploadedBy:  uploadedBy,
		}
		if err := p.photos.AddPhoto(ctx, photo); err != nil {
			// the object is already in the store; its row is not.
			// No compensating delete.
			p.logger.Warn("metadata insert failed after upload",
				zap.String("path", path),
				zap.Error(err))
			return done, fmt.Errorf("file %d (%s) metadata: %w", i+1, f.Name, err)
		}

		done = append(done, Uploaded{Path: path, Mime: f.MimeType})
	}
	return done, nil
}
