// ==============================================================================
// SALE REPOSITORY - internal/repository/postgres/sale.go
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

type SaleRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewSaleRepository(db *sqlx.DB, queryTimeout time.Duration) *SaleRepository {
	return &SaleRepository{db: db, timeout: queryTimeout}
}

func (r *SaleRepository) Create(ctx context.Context, sale *domain.Sale) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO sales (id, link_id, product_id, influencer_id, merchant_id,
			gross_amount, currency, status, payment_status, created_at, updated_at)
		VALUES (:id, :link_id, :product_id, :influencer_id, :merchant_id,
			:gross_amount, :currency, :status, :payment_status, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, sale)
	if err != nil {
		return apperrors.Wrap(err, "failed to create sale")
	}
	return nil
}

func (r *SaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var sale domain.Sale
	query := `SELECT * FROM sales WHERE id = $1`

	err := r.db.GetContext(ctx, &sale, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrSaleNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find sale")
	}
	return &sale, nil
}

// UpdateStatusGuarded moves a sale from one status to another only if it is
// still in the expected state. Returns ErrInvalidSaleState when the guard
// does not match.
func (r *SaleRepository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to domain.SaleStatus) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE sales
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return apperrors.Wrap(err, "failed to update sale status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return apperrors.ErrInvalidSaleState
	}
	return nil
}

// MarkSettled stamps the settlement time without touching the status.
func (r *SaleRepository) MarkSettled(ctx context.Context, id uuid.UUID, settledAt time.Time) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE sales
		SET settled_at = $1, updated_at = $2
		WHERE id = $3 AND settled_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, settledAt, time.Now(), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark sale settled")
	}
	return nil
}

func (r *SaleRepository) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]*domain.Sale, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var sales []*domain.Sale
	query := `
		SELECT * FROM sales
		WHERE merchant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := r.db.SelectContext(ctx, &sales, query, merchantID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list sales by merchant")
	}
	return sales, nil
}

func (r *SaleRepository) ListByInfluencer(ctx context.Context, influencerID uuid.UUID, limit, offset int) ([]*domain.Sale, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var sales []*domain.Sale
	query := `
		SELECT * FROM sales
		WHERE influencer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := r.db.SelectContext(ctx, &sales, query, influencerID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list sales by influencer")
	}
	return sales, nil
}
