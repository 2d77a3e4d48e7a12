// ==============================================================================
// DOCUMENT STORAGE - internal/storage/storage.go
// ==============================================================================
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "tracknow/pkg/errors"
)

// DocumentStore persists uploaded verification files and returns the URL the
// rest of the system refers to them by.
type DocumentStore interface {
	Save(ctx context.Context, userID uuid.UUID, fileName, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

var allowedContentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// AllowedContentType reports whether ct is an accepted upload media type.
func AllowedContentType(ct string) bool {
	_, ok := allowedContentTypes[ct]
	return ok
}

// LocalStore writes files under a base directory on local disk, one
// subdirectory per user. URLs are served from a public base path. Writes are
// bounded by the configured timeout.
type LocalStore struct {
	basePath   string
	publicBase string
	timeout    time.Duration
}

func NewLocalStore(basePath, publicBase string, timeout time.Duration) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, apperrors.Wrap(err, "failed to create storage directory")
	}
	return &LocalStore{
		basePath:   basePath,
		publicBase: strings.TrimSuffix(publicBase, "/"),
		timeout:    timeout,
	}, nil
}

func (s *LocalStore) Save(ctx context.Context, userID uuid.UUID, fileName, contentType string, r io.Reader) (string, error) {
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return "", apperrors.ErrUnsupportedMediaType
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	dir := filepath.Join(s.basePath, userID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, "failed to create user directory")
	}

	// Stored name is generated, never taken from the client.
	name := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.New().String()[:8], ext)
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to create file")
	}
	defer f.Close()

	if _, err := io.Copy(f, &contextReader{ctx: ctx, r: r}); err != nil {
		os.Remove(path)
		return "", apperrors.Wrap(err, "failed to write file")
	}

	return fmt.Sprintf("%s/%s/%s", s.publicBase, userID.String(), name), nil
}

// contextReader stops a copy as soon as its context expires, so a stalled
// upload cannot hold the handler past the storage deadline.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	rel := strings.TrimPrefix(url, s.publicBase+"/")
	if rel == url || strings.Contains(rel, "..") {
		return apperrors.ErrDocumentNotFound
	}
	path := filepath.Join(s.basePath, filepath.FromSlash(rel))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apperrors.ErrDocumentNotFound
		}
		return apperrors.Wrap(err, "failed to delete file")
	}
	return nil
}
