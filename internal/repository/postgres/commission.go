// ==============================================================================
// COMMISSION REPOSITORY - internal/repository/postgres/commission.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tracknow/internal/domain"
	apperrors "tracknow/pkg/errors"
)

type CommissionRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewCommissionRepository(db *sqlx.DB, queryTimeout time.Duration) *CommissionRepository {
	return &CommissionRepository{db: db, timeout: queryTimeout}
}

// CreateIfAbsent inserts the commission unless one already exists for the
// same sale. The UNIQUE constraint on sale_id makes this safe under
// concurrent settlement: exactly one caller observes created = true.
func (r *CommissionRepository) CreateIfAbsent(ctx context.Context, commission *domain.Commission) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO commissions (id, sale_id, influencer_id, amount, currency,
			status, metadata, created_at, updated_at)
		VALUES (:id, :sale_id, :influencer_id, :amount, :currency,
			:status, :metadata, :created_at, :updated_at)
		ON CONFLICT (sale_id) DO NOTHING`

	result, err := r.db.NamedExecContext(ctx, query, commission)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return false, nil
		}
		return false, apperrors.Wrap(err, "failed to create commission")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check rows affected")
	}
	return rows == 1, nil
}

func (r *CommissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Commission, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var commission domain.Commission
	query := `SELECT * FROM commissions WHERE id = $1`

	err := r.db.GetContext(ctx, &commission, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrCommissionNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find commission")
	}
	return &commission, nil
}

func (r *CommissionRepository) FindBySaleID(ctx context.Context, saleID uuid.UUID) (*domain.Commission, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var commission domain.Commission
	query := `SELECT * FROM commissions WHERE sale_id = $1`

	err := r.db.GetContext(ctx, &commission, query, saleID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrCommissionNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find commission by sale")
	}
	return &commission, nil
}

// TransitionFields carries the optional columns a status transition may set.
type TransitionFields struct {
	PaymentMethod   *string
	RejectionReason *string
	PaidAt          *time.Time
}

// UpdateStatusGuarded moves a commission from one status to another only if
// it is still in the expected state. Returns ErrInvalidTransition when the
// guard does not match, so a concurrent transition loses cleanly.
func (r *CommissionRepository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to domain.CommissionStatus, fields TransitionFields) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE commissions
		SET status = $1,
			payment_method = COALESCE($2, payment_method),
			rejection_reason = COALESCE($3, rejection_reason),
			paid_at = COALESCE($4, paid_at),
			updated_at = $5
		WHERE id = $6 AND status = $7`

	result, err := r.db.ExecContext(ctx, query,
		to, fields.PaymentMethod, fields.RejectionReason, fields.PaidAt,
		time.Now(), id, from)
	if err != nil {
		return apperrors.Wrap(err, "failed to update commission status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return apperrors.ErrInvalidTransition
	}
	return nil
}

func (r *CommissionRepository) ListByInfluencer(ctx context.Context, influencerID uuid.UUID, limit, offset int) ([]*domain.Commission, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var commissions []*domain.Commission
	query := `
		SELECT * FROM commissions
		WHERE influencer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := r.db.SelectContext(ctx, &commissions, query, influencerID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list commissions")
	}
	return commissions, nil
}

func (r *CommissionRepository) ListByStatus(ctx context.Context, status domain.CommissionStatus, limit, offset int) ([]*domain.Commission, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var commissions []*domain.Commission
	query := `
		SELECT * FROM commissions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	err := r.db.SelectContext(ctx, &commissions, query, status, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list commissions by status")
	}
	return commissions, nil
}
