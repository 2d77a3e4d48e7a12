package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	apperrors "tracknow/pkg/errors"
)

// StubStore keeps files in memory. Used in tests and local development.
type StubStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewStubStore() *StubStore {
	return &StubStore{files: make(map[string][]byte)}
}

func (s *StubStore) Save(ctx context.Context, userID uuid.UUID, fileName, contentType string, r io.Reader) (string, error) {
	if !AllowedContentType(contentType) {
		return "", apperrors.ErrUnsupportedMediaType
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to read upload")
	}

	url := fmt.Sprintf("/uploads/documents/%s/%s", userID, uuid.New())
	s.mu.Lock()
	s.files[url] = data
	s.mu.Unlock()
	return url, nil
}

func (s *StubStore) Delete(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[url]; !ok {
		return apperrors.ErrDocumentNotFound
	}
	delete(s.files, url)
	return nil
}
