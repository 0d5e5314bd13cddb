package attach

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"p9e.in/fixport/models"
)

type fakeObjects struct {
	stored   []string
	failPath string // Put fails when the path contains this
}

func (f *fakeObjects) Put(ctx context.Context, path, contentType string, r io.Reader) error {
	if f.failPath != "" && strings.Contains(path, f.failPath) {
		return fmt.Errorf("upload %s: %w", path, models.ErrUpstream)
	}
	io.Copy(io.Discard, r)
	f.stored = append(f.stored, path)
	return nil
}

func (f *fakeObjects) PublicURL(path string) string { return "https://files.test/" + path }

type fakePhotos struct {
	rows    []*models.WorkOrderPhoto
	failOn  string
	failErr error
}

func (f *fakePhotos) AddPhoto(ctx context.Context, p *models.WorkOrderPhoto) error {
	if f.failOn != "" && strings.Contains(p.StoragePath, f.failOn) {
		return f.failErr
	}
	f.rows = append(f.rows, p)
	return nil
}

func fixedPipeline(objects *fakeObjects, photos *fakePhotos) *Pipeline {
	p := NewPipeline(objects, photos, zap.NewNop())
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p
}

func upload(name string) Upload {
	return Upload{Name: name, MimeType: "image/jpeg", Content: strings.NewReader("data")}
}

func TestProcessStoresSequentially(t *testing.T) {
	objects := &fakeObjects{}
	photos := &fakePhotos{}
	p := fixedPipeline(objects, photos)
	woID := uuid.New()

	done, err := p.Process(context.Background(), "acme", woID, uuid.New(),
		[]Upload{upload("a.jpg"), upload("roof leak.jpg")})
	require.NoError(t, err)
	require.Len(t, done, 2)

	assert.Equal(t, fmt.Sprintf("acme/%s/1700000000_a.jpg", woID), done[0].Path)
	assert.Equal(t, fmt.Sprintf("acme/%s/1700000000_roof_leak.jpg", woID), done[1].Path)
	assert.Len(t, photos.rows, 2)
	assert.Equal(t, woID, photos.rows[0].WorkOrderID)
}

func TestProcessAbortsAtFirstUploadFailure(t *testing.T) {
	// files 1..k-1 persist, file k fails, k+1..N never attempted
	objects := &fakeObjects{failPath: "c.jpg"}
	photos := &fakePhotos{}
	p := fixedPipeline(objects, photos)

	done, err := p.Process(context.Background(), "acme", uuid.New(), uuid.New(),
		[]Upload{upload("a.jpg"), upload("b.jpg"), upload("c.jpg"), upload("d.jpg")})

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.Contains(t, err.Error(), "file 3")
	assert.Len(t, done, 2, "files before the failure stay persisted")
	assert.Len(t, objects.stored, 2, "files after the failure are never attempted")
	assert.Len(t, photos.rows, 2)
}

func TestProcessMetadataFailureKeepsStoredObject(t *testing.T) {
	objects := &fakeObjects{}
	photos := &fakePhotos{failOn: "b.jpg", failErr: fmt.Errorf("insert: %w", models.ErrUpstream)}
	p := fixedPipeline(objects, photos)

	done, err := p.Process(context.Background(), "acme", uuid.New(), uuid.New(),
		[]Upload{upload("a.jpg"), upload("b.jpg"), upload("c.jpg")})

	require.Error(t, err)
	assert.Len(t, done, 1)
	// the orphaned object stays in the store: no compensating delete
	assert.Len(t, objects.stored, 2)
	assert.Len(t, photos.rows, 1)
}

func TestProcessSanitizesHostileNames(t *testing.T) {
	objects := &fakeObjects{}
	p := fixedPipeline(objects, &fakePhotos{})
	woID := uuid.New()

	done, err := p.Process(context.Background(), "acme", woID, uuid.New(),
		[]Upload{upload("../../etc/passwd")})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("acme/%s/1700000000_.._.._etc_passwd", woID), done[0].Path)
}
