package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tracknow/pkg/errors"
)

func TestLocalStore_SaveAndDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads/documents", 30*time.Second)
	require.NoError(t, err)

	userID := uuid.New()
	url, err := store.Save(context.Background(), userID, "cin.jpg", "image/jpeg",
		strings.NewReader("fake image bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/documents/"+userID.String()+"/"))

	require.NoError(t, store.Delete(context.Background(), url))
	assert.ErrorIs(t, store.Delete(context.Background(), url), apperrors.ErrDocumentNotFound)
}

func TestLocalStore_SaveRejectsUnsupportedContentType(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads/documents", 30*time.Second)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), uuid.New(), "doc.gif", "image/gif",
		strings.NewReader("x"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedMediaType)
}

func TestLocalStore_SaveHonorsDeadline(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/documents", 30*time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Save(ctx, uuid.New(), "cin.jpg", "image/jpeg",
		strings.NewReader("never written"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The interrupted write must not leave a partial file behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		files, err := os.ReadDir(dir + "/" + e.Name())
		require.NoError(t, err)
		assert.Empty(t, files)
	}
}

func TestLocalStore_DeleteRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/uploads/documents", 30*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t,
		store.Delete(context.Background(), "/uploads/documents/../../etc/passwd"),
		apperrors.ErrDocumentNotFound)
}
