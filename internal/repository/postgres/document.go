// ==============================================================================
// DOCUMENT REPOSITORY - internal/repository/postgres/document.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"tracknow/internal/domain"
	apperrors "tracknow/pkg/errors"
)

type DocumentRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewDocumentRepository(db *sqlx.DB, queryTimeout time.Duration) *DocumentRepository {
	return &DocumentRepository{db: db, timeout: queryTimeout}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.DocumentUpload) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO document_uploads (id, user_id, document_type, file_name,
			content_type, size_bytes, url, created_at)
		VALUES (:id, :user_id, :document_type, :file_name,
			:content_type, :size_bytes, :url, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return apperrors.Wrap(err, "failed to record document upload")
	}
	return nil
}

func (r *DocumentRepository) FindByURL(ctx context.Context, url string) (*domain.DocumentUpload, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var doc domain.DocumentUpload
	query := `SELECT * FROM document_uploads WHERE url = $1`

	err := r.db.GetContext(ctx, &doc, query, url)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find document")
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.DocumentUpload, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var docs []*domain.DocumentUpload
	query := `
		SELECT * FROM document_uploads
		WHERE user_id = $1
		ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &docs, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list documents")
	}
	return docs, nil
}
