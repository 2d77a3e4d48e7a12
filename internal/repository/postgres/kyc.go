// ==============================================================================
// KYC REPOSITORY - internal/repository/postgres/kyc.go
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

type KYCRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewKYCRepository(db *sqlx.DB, queryTimeout time.Duration) *KYCRepository {
	return &KYCRepository{db: db, timeout: queryTimeout}
}

// kycRow flattens the nested submission blocks into one table row.
type kycRow struct {
	ID        uuid.UUID        `db:"id"`
	UserID    uuid.UUID        `db:"user_id"`
	UserType  domain.Role      `db:"user_type"`
	Status    domain.KYCStatus `db:"status"`
	IsCurrent bool             `db:"is_current"`

	FirstName   string `db:"first_name"`
	LastName    string `db:"last_name"`
	DateOfBirth string `db:"date_of_birth"`
	Phone       string `db:"phone"`
	Address     string `db:"address"`
	City        string `db:"city"`
	PostalCode  string `db:"postal_code"`

	IdentityDocType   string `db:"identity_doc_type"`
	IdentityDocNumber string `db:"identity_doc_number"`
	IdentityExpiry    string `db:"identity_expiry_date"`
	IdentityFrontURL  string `db:"identity_front_url"`
	IdentityBackURL   string `db:"identity_back_url"`
	IdentitySelfieURL string `db:"identity_selfie_url"`

	CompanyName    *string `db:"company_name"`
	LegalForm      *string `db:"legal_form"`
	ICENumber      *string `db:"ice_number"`
	ICEDocumentURL *string `db:"ice_document_url"`
	RCNumber       *string `db:"rc_number"`
	RCDocumentURL  *string `db:"rc_document_url"`
	TVANumber      *string `db:"tva_number"`
	TVADocumentURL *string `db:"tva_document_url"`
	StatutsURL     *string `db:"statuts_url"`
	CompanyAddress *string `db:"company_address"`
	CompanyCity    *string `db:"company_city"`

	BankName          string `db:"bank_name"`
	AccountHolderName string `db:"account_holder_name"`
	IBAN              string `db:"iban"`
	RIBDocumentURL    string `db:"rib_document_url"`

	RejectionReason  *string    `db:"rejection_reason"`
	RejectionComment *string    `db:"rejection_comment"`
	CanResubmit      bool       `db:"can_resubmit"`
	ReviewedBy       *uuid.UUID `db:"reviewed_by"`
	SubmittedAt      time.Time  `db:"submitted_at"`
	ReviewedAt       *time.Time `db:"reviewed_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func toRow(s *domain.KYCSubmission) *kycRow {
	row := &kycRow{
		ID:        s.ID,
		UserID:    s.UserID,
		UserType:  s.UserType,
		Status:    s.Status,
		IsCurrent: s.IsCurrent,

		FirstName:   s.PersonalInfo.FirstName,
		LastName:    s.PersonalInfo.LastName,
		DateOfBirth: s.PersonalInfo.DateOfBirth,
		Phone:       s.PersonalInfo.Phone,
		Address:     s.PersonalInfo.Address,
		City:        s.PersonalInfo.City,
		PostalCode:  s.PersonalInfo.PostalCode,

		IdentityDocType:   s.IdentityDocument.DocumentType,
		IdentityDocNumber: s.IdentityDocument.DocumentNumber,
		IdentityExpiry:    s.IdentityDocument.ExpiryDate,
		IdentityFrontURL:  s.IdentityDocument.FrontImageURL,
		IdentityBackURL:   s.IdentityDocument.BackImageURL,
		IdentitySelfieURL: s.IdentityDocument.SelfieURL,

		BankName:          s.BankAccount.BankName,
		AccountHolderName: s.BankAccount.AccountHolderName,
		IBAN:              s.BankAccount.IBAN,
		RIBDocumentURL:    s.BankAccount.RIBDocumentURL,

		RejectionReason:  s.RejectionReason,
		RejectionComment: s.RejectionComment,
		CanResubmit:      s.CanResubmit,
		ReviewedBy:       s.ReviewedBy,
		SubmittedAt:      s.SubmittedAt,
		ReviewedAt:       s.ReviewedAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if c := s.CompanyDocuments; c != nil {
		row.CompanyName = &c.CompanyName
		row.LegalForm = &c.LegalForm
		row.ICENumber = &c.ICENumber
		row.ICEDocumentURL = &c.ICEDocumentURL
		row.RCNumber = &c.RCNumber
		row.RCDocumentURL = &c.RCDocumentURL
		if c.TVANumber != "" {
			row.TVANumber = &c.TVANumber
		}
		if c.TVADocumentURL != "" {
			row.TVADocumentURL = &c.TVADocumentURL
		}
		if c.StatutsURL != "" {
			row.StatutsURL = &c.StatutsURL
		}
		row.CompanyAddress = &c.CompanyAddress
		row.CompanyCity = &c.CompanyCity
	}
	return row
}

func (row *kycRow) toDomain() *domain.KYCSubmission {
	s := &domain.KYCSubmission{
		ID:        row.ID,
		UserID:    row.UserID,
		UserType:  row.UserType,
		Status:    row.Status,
		IsCurrent: row.IsCurrent,
		PersonalInfo: domain.PersonalInfo{
			FirstName:   row.FirstName,
			LastName:    row.LastName,
			DateOfBirth: row.DateOfBirth,
			Phone:       row.Phone,
			Address:     row.Address,
			City:        row.City,
			PostalCode:  row.PostalCode,
		},
		IdentityDocument: domain.IdentityDocument{
			DocumentType:   row.IdentityDocType,
			DocumentNumber: row.IdentityDocNumber,
			ExpiryDate:     row.IdentityExpiry,
			FrontImageURL:  row.IdentityFrontURL,
			BackImageURL:   row.IdentityBackURL,
			SelfieURL:      row.IdentitySelfieURL,
		},
		BankAccount: domain.BankAccount{
			BankName:          row.BankName,
			AccountHolderName: row.AccountHolderName,
			IBAN:              row.IBAN,
			RIBDocumentURL:    row.RIBDocumentURL,
		},
		RejectionReason:  row.RejectionReason,
		RejectionComment: row.RejectionComment,
		CanResubmit:      row.CanResubmit,
		ReviewedBy:       row.ReviewedBy,
		SubmittedAt:      row.SubmittedAt,
		ReviewedAt:       row.ReviewedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.CompanyName != nil {
		s.CompanyDocuments = &domain.CompanyDocuments{
			CompanyName:    deref(row.CompanyName),
			LegalForm:      deref(row.LegalForm),
			ICENumber:      deref(row.ICENumber),
			ICEDocumentURL: deref(row.ICEDocumentURL),
			RCNumber:       deref(row.RCNumber),
			RCDocumentURL:  deref(row.RCDocumentURL),
			TVANumber:      deref(row.TVANumber),
			TVADocumentURL: deref(row.TVADocumentURL),
			StatutsURL:     deref(row.StatutsURL),
			CompanyAddress: deref(row.CompanyAddress),
			CompanyCity:    deref(row.CompanyCity),
		}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Create inserts a new submission and, in the same transaction, demotes any
// previous current submission for the user. The previous attempt is kept for
// audit; only is_current moves.
func (r *KYCRepository) Create(ctx context.Context, submission *domain.KYCSubmission) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE kyc_submissions SET is_current = FALSE, updated_at = $1
		 WHERE user_id = $2 AND is_current = TRUE`,
		time.Now(), submission.UserID)
	if err != nil {
		return apperrors.Wrap(err, "failed to supersede previous submission")
	}

	query := `
		INSERT INTO kyc_submissions (
			id, user_id, user_type, status, is_current,
			first_name, last_name, date_of_birth, phone, address, city, postal_code,
			identity_doc_type, identity_doc_number, identity_expiry_date,
			identity_front_url, identity_back_url, identity_selfie_url,
			company_name, legal_form, ice_number, ice_document_url,
			rc_number, rc_document_url, tva_number, tva_document_url,
			statuts_url, company_address, company_city,
			bank_name, account_holder_name, iban, rib_document_url,
			can_resubmit, submitted_at, created_at, updated_at
		) VALUES (
			:id, :user_id, :user_type, :status, :is_current,
			:first_name, :last_name, :date_of_birth, :phone, :address, :city, :postal_code,
			:identity_doc_type, :identity_doc_number, :identity_expiry_date,
			:identity_front_url, :identity_back_url, :identity_selfie_url,
			:company_name, :legal_form, :ice_number, :ice_document_url,
			:rc_number, :rc_document_url, :tva_number, :tva_document_url,
			:statuts_url, :company_address, :company_city,
			:bank_name, :account_holder_name, :iban, :rib_document_url,
			:can_resubmit, :submitted_at, :created_at, :updated_at
		)`

	if _, err := tx.NamedExecContext(ctx, query, toRow(submission)); err != nil {
		return apperrors.Wrap(err, "failed to create kyc submission")
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, "failed to commit kyc submission")
	}
	return nil
}

func (r *KYCRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.KYCSubmission, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var row kycRow
	query := `SELECT * FROM kyc_submissions WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrKYCNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find kyc submission")
	}
	return row.toDomain(), nil
}

// FindCurrentByUser returns the user's current submission, or ErrKYCNotFound
// if the user has never submitted.
func (r *KYCRepository) FindCurrentByUser(ctx context.Context, userID uuid.UUID) (*domain.KYCSubmission, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var row kycRow
	query := `SELECT * FROM kyc_submissions WHERE user_id = $1 AND is_current = TRUE`

	err := r.db.GetContext(ctx, &row, query, userID)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrKYCNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find current kyc submission")
	}
	return row.toDomain(), nil
}

// UpdateStatusGuarded moves a submission between review states only if it is
// still in the expected state.
func (r *KYCRepository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to domain.KYCStatus, reviewedBy *uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE kyc_submissions
		SET status = $1, reviewed_by = COALESCE($2, reviewed_by),
			reviewed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5`

	result, err := r.db.ExecContext(ctx, query, to, reviewedBy, time.Now(), id, from)
	if err != nil {
		return apperrors.Wrap(err, "failed to update kyc status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return apperrors.ErrInvalidReviewState
	}
	return nil
}

// Reject records the decision together with its mandatory justification.
func (r *KYCRepository) Reject(ctx context.Context, id uuid.UUID, from domain.KYCStatus, reason, comment string, canResubmit bool, reviewedBy uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE kyc_submissions
		SET status = $1, rejection_reason = $2, rejection_comment = $3,
			can_resubmit = $4, reviewed_by = $5, reviewed_at = $6, updated_at = $6
		WHERE id = $7 AND status = $8`

	result, err := r.db.ExecContext(ctx, query,
		domain.KYCStatusRejected, reason, comment, canResubmit,
		reviewedBy, time.Now(), id, from)
	if err != nil {
		return apperrors.Wrap(err, "failed to reject kyc submission")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return apperrors.ErrInvalidReviewState
	}
	return nil
}

// ListPending returns current submissions awaiting review, oldest first.
func (r *KYCRepository) ListPending(ctx context.Context, limit, offset int) ([]*domain.KYCSubmission, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var rows []kycRow
	query := `
		SELECT * FROM kyc_submissions
		WHERE is_current = TRUE AND status IN ($1, $2)
		ORDER BY submitted_at ASC
		LIMIT $3 OFFSET $4`

	err := r.db.SelectContext(ctx, &rows, query,
		domain.KYCStatusSubmitted, domain.KYCStatusUnderReview, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending kyc submissions")
	}

	submissions := make([]*domain.KYCSubmission, 0, len(rows))
	for i := range rows {
		submissions = append(submissions, rows[i].toDomain())
	}
	return submissions, nil
}
