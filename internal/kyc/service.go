// ==============================================================================
// KYC SERVICE - internal/kyc/service.go
// ==============================================================================
package kyc

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"tracknow/internal/domain"
	"tracknow/internal/notification"
	"tracknow/internal/storage"
	apperrors "tracknow/pkg/errors"
	"tracknow/pkg/logger"
	"tracknow/pkg/validator"
)

const dateLayout = "2006-01-02"

// expiryWarningWindow is how close to its expiry date an identity document
// may be before submission triggers a warning.
const expiryWarningWindow = 90 * 24 * time.Hour

// Repository is the persistence the KYC service needs for submissions.
type Repository interface {
	Create(ctx context.Context, submission *domain.KYCSubmission) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.KYCSubmission, error)
	FindCurrentByUser(ctx context.Context, userID uuid.UUID) (*domain.KYCSubmission, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to domain.KYCStatus, reviewedBy *uuid.UUID) error
	Reject(ctx context.Context, id uuid.UUID, from domain.KYCStatus, reason, comment string, canResubmit bool, reviewedBy uuid.UUID) error
	ListPending(ctx context.Context, limit, offset int) ([]*domain.KYCSubmission, error)
}

// DocumentRepository tracks uploaded files and their ownership.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.DocumentUpload) error
	FindByURL(ctx context.Context, url string) (*domain.DocumentUpload, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.DocumentUpload, error)
}

// UserRepository resolves users for notifications.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Service drives the verification lifecycle: payload validation, submission,
// review decisions, and document uploads.
type Service struct {
	repo      Repository
	documents DocumentRepository
	users     UserRepository
	store     storage.DocumentStore
	validator *validator.Validator
	notifier  notification.Notifier
	maxUpload int64
	logger    logger.Logger
}

func NewService(
	repo Repository,
	documents DocumentRepository,
	users UserRepository,
	store storage.DocumentStore,
	v *validator.Validator,
	notifier notification.Notifier,
	maxUpload int64,
	log logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		documents: documents,
		users:     users,
		store:     store,
		validator: v,
		notifier:  notifier,
		maxUpload: maxUpload,
		logger:    log,
	}
}

// ValidateSubmission checks a payload without persisting anything. Field
// errors block submission; warnings do not. The returned error is reserved
// for infrastructure failures (document store unreachable), never for a
// malformed payload.
func (s *Service) ValidateSubmission(ctx context.Context, userID uuid.UUID, userType domain.Role, req *domain.KYCSubmissionRequest) (*domain.KYCValidationResult, error) {
	result := &domain.KYCValidationResult{Valid: true, Errors: make(map[string]string)}

	if errs := s.validator.ValidateStructured(req.PersonalInfo); errs != nil {
		for field, msg := range errs {
			result.Errors["personal_info."+field] = msg
		}
	}
	if errs := s.validator.ValidateStructured(req.IdentityDocument); errs != nil {
		for field, msg := range errs {
			result.Errors["identity_document."+field] = msg
		}
	}
	if errs := s.validator.ValidateStructured(req.BankAccount); errs != nil {
		for field, msg := range errs {
			result.Errors["bank_account."+field] = msg
		}
	}

	if dob, err := time.Parse(dateLayout, req.PersonalInfo.DateOfBirth); err != nil {
		result.Errors["personal_info.DateOfBirth"] = "Invalid date format (expected YYYY-MM-DD)"
	} else if !dob.Before(time.Now()) {
		result.Errors["personal_info.DateOfBirth"] = "Date of birth must be in the past"
	}

	if expiry, err := time.Parse(dateLayout, req.IdentityDocument.ExpiryDate); err != nil {
		result.Errors["identity_document.ExpiryDate"] = "Invalid date format (expected YYYY-MM-DD)"
	} else if !expiry.After(time.Now()) {
		result.Errors["identity_document.ExpiryDate"] = "Identity document has expired"
	} else if time.Until(expiry) < expiryWarningWindow {
		result.Warnings = append(result.Warnings, "Identity document expires within 90 days")
	}

	if userType == domain.RoleMerchant {
		if req.CompanyDocuments == nil {
			result.Errors["company_documents"] = "Company documents are required for merchants"
		} else {
			if errs := s.validator.ValidateStructured(*req.CompanyDocuments); errs != nil {
				for field, msg := range errs {
					result.Errors["company_documents."+field] = msg
				}
			}
			if req.CompanyDocuments.TVANumber == "" {
				result.Warnings = append(result.Warnings, "TVA number not provided")
			}
			if req.CompanyDocuments.StatutsURL == "" {
				result.Warnings = append(result.Warnings, "Company statuts document not provided")
			}
		}
	}

	if err := s.checkDocumentOwnership(ctx, userID, req, result); err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		result.Valid = false
	} else {
		result.Errors = nil
	}
	return result, nil
}

// checkDocumentOwnership verifies that every referenced document URL was
// uploaded by the submitting user. A missing document is a field error; any
// other lookup failure is an infrastructure error and aborts validation.
func (s *Service) checkDocumentOwnership(ctx context.Context, userID uuid.UUID, req *domain.KYCSubmissionRequest, result *domain.KYCValidationResult) error {
	urls := map[string]string{
		"identity_document.FrontImageURL": req.IdentityDocument.FrontImageURL,
		"identity_document.SelfieURL":     req.IdentityDocument.SelfieURL,
		"bank_account.RIBDocumentURL":     req.BankAccount.RIBDocumentURL,
	}
	if req.IdentityDocument.BackImageURL != "" {
		urls["identity_document.BackImageURL"] = req.IdentityDocument.BackImageURL
	}
	if c := req.CompanyDocuments; c != nil {
		urls["company_documents.ICEDocumentURL"] = c.ICEDocumentURL
		urls["company_documents.RCDocumentURL"] = c.RCDocumentURL
		if c.TVADocumentURL != "" {
			urls["company_documents.TVADocumentURL"] = c.TVADocumentURL
		}
		if c.StatutsURL != "" {
			urls["company_documents.StatutsURL"] = c.StatutsURL
		}
	}

	for field, url := range urls {
		if url == "" {
			continue
		}
		doc, err := s.documents.FindByURL(ctx, url)
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			result.Errors[field] = "Referenced document was not uploaded"
			continue
		}
		if err != nil {
			return apperrors.Wrap(err, "failed to verify document ownership")
		}
		if doc.UserID != userID {
			result.Errors[field] = "Referenced document belongs to another user"
		}
	}
	return nil
}

// CreateSubmission validates and records a new verification attempt. A user
// with a submission already awaiting review cannot start another; a rejected
// user may resubmit only if the reviewer allowed it.
func (s *Service) CreateSubmission(ctx context.Context, userID uuid.UUID, userType domain.Role, req *domain.KYCSubmissionRequest) (*domain.KYCSubmission, *domain.KYCValidationResult, error) {
	current, err := s.repo.FindCurrentByUser(ctx, userID)
	if err != nil && err != apperrors.ErrKYCNotFound {
		return nil, nil, err
	}
	if current != nil {
		if current.Status.ActivelyPending() {
			return nil, nil, apperrors.ErrKYCAlreadyPending
		}
		if current.Status == domain.KYCStatusRejected && !current.CanResubmit {
			return nil, nil, apperrors.ErrResubmitNotAllowed
		}
	}

	result, err := s.ValidateSubmission(ctx, userID, userType, req)
	if err != nil {
		return nil, nil, err
	}
	if !result.Valid {
		return nil, result, nil
	}

	now := time.Now()
	submission := &domain.KYCSubmission{
		ID:               uuid.New(),
		UserID:           userID,
		UserType:         userType,
		Status:           domain.KYCStatusSubmitted,
		IsCurrent:        true,
		PersonalInfo:     req.PersonalInfo,
		IdentityDocument: req.IdentityDocument,
		CompanyDocuments: req.CompanyDocuments,
		BankAccount:      req.BankAccount,
		SubmittedAt:      now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, nil, err
	}

	s.logger.Info("kyc submission created", map[string]interface{}{
		"submission_id": submission.ID.String(),
		"user_id":       userID.String(),
		"user_type":     string(userType),
		"warnings":      len(result.Warnings),
	})
	return submission, result, nil
}

// Status reports the user's current verification state. An approved
// submission whose identity document has lapsed reads as expired; nothing is
// written, the state is recomputed on every read.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*domain.KYCStatusResponse, error) {
	current, err := s.repo.FindCurrentByUser(ctx, userID)
	if err == apperrors.ErrKYCNotFound {
		return &domain.KYCStatusResponse{Status: domain.KYCStatusPending, CanResubmit: true}, nil
	}
	if err != nil {
		return nil, err
	}

	status := current.Status
	if status == domain.KYCStatusApproved {
		if expiry, perr := time.Parse(dateLayout, current.IdentityDocument.ExpiryDate); perr == nil && expiry.Before(time.Now()) {
			status = domain.KYCStatusExpired
		}
	}

	resp := &domain.KYCStatusResponse{
		Status:           status,
		SubmissionID:     &current.ID,
		SubmittedAt:      &current.SubmittedAt,
		ReviewedAt:       current.ReviewedAt,
		RejectionReason:  current.RejectionReason,
		RejectionComment: current.RejectionComment,
		CanResubmit:      current.CanResubmit || status == domain.KYCStatusExpired,
	}
	return resp, nil
}

// StartReview claims a submitted dossier for review.
func (s *Service) StartReview(ctx context.Context, submissionID uuid.UUID, reviewerID uuid.UUID, reviewerRole domain.Role) error {
	if !reviewerRole.CanDecide() {
		return apperrors.ErrForbidden
	}
	return s.repo.UpdateStatusGuarded(ctx, submissionID,
		domain.KYCStatusSubmitted, domain.KYCStatusUnderReview, &reviewerID)
}

// Approve accepts a dossier under review.
func (s *Service) Approve(ctx context.Context, submissionID uuid.UUID, reviewerID uuid.UUID, reviewerRole domain.Role) error {
	if !reviewerRole.CanDecide() {
		return apperrors.ErrForbidden
	}

	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		return err
	}
	if !submission.Status.ActivelyPending() {
		return apperrors.ErrInvalidReviewState
	}

	if err := s.repo.UpdateStatusGuarded(ctx, submissionID,
		submission.Status, domain.KYCStatusApproved, &reviewerID); err != nil {
		return err
	}

	s.logger.Info("kyc submission approved", map[string]interface{}{
		"submission_id": submissionID.String(),
		"reviewer_id":   reviewerID.String(),
	})
	s.notifyUser(ctx, submission.UserID, domain.KYCStatusApproved, "")
	return nil
}

// Reject declines a dossier under review. A reason and comment are mandatory;
// a rejection without justification is itself invalid.
func (s *Service) Reject(ctx context.Context, submissionID uuid.UUID, reviewerID uuid.UUID, reviewerRole domain.Role, req *domain.KYCRejectRequest) error {
	if !reviewerRole.CanDecide() {
		return apperrors.ErrForbidden
	}
	if req.Reason == "" || req.Comment == "" {
		return apperrors.ErrRejectionRequired
	}

	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		return err
	}
	if !submission.Status.ActivelyPending() {
		return apperrors.ErrInvalidReviewState
	}

	canResubmit := true
	if req.CanResubmit != nil {
		canResubmit = *req.CanResubmit
	}

	if err := s.repo.Reject(ctx, submissionID, submission.Status,
		req.Reason, req.Comment, canResubmit, reviewerID); err != nil {
		return err
	}

	s.logger.Info("kyc submission rejected", map[string]interface{}{
		"submission_id": submissionID.String(),
		"reviewer_id":   reviewerID.String(),
		"can_resubmit":  canResubmit,
	})
	s.notifyUser(ctx, submission.UserID, domain.KYCStatusRejected, req.Reason)
	return nil
}

// ListPending returns the review queue. Admins and commercial staff may read
// it; only admins can decide.
func (s *Service) ListPending(ctx context.Context, viewerRole domain.Role, limit, offset int) ([]*domain.KYCSubmission, error) {
	if !viewerRole.CanReview() {
		return nil, apperrors.ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListPending(ctx, limit, offset)
}

// GetSubmission returns one dossier for review or for its owner.
func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID, viewerID uuid.UUID, viewerRole domain.Role) (*domain.KYCSubmission, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewerRole.CanReview() && submission.UserID != viewerID {
		return nil, apperrors.ErrForbidden
	}
	return submission, nil
}

// UploadDocument stores one verification file and records its ownership.
func (s *Service) UploadDocument(ctx context.Context, userID uuid.UUID, docType domain.DocumentType, fileName, contentType string, size int64, r io.Reader) (*domain.DocumentUpload, error) {
	if !domain.ValidDocumentType(docType) {
		return nil, apperrors.ErrInvalidDocumentType
	}
	if !storage.AllowedContentType(contentType) {
		return nil, apperrors.ErrUnsupportedMediaType
	}
	if size > s.maxUpload {
		return nil, apperrors.ErrFileTooLarge
	}

	url, err := s.store.Save(ctx, userID, fileName, contentType, io.LimitReader(r, s.maxUpload))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to store document")
	}

	doc := &domain.DocumentUpload{
		ID:           uuid.New(),
		UserID:       userID,
		DocumentType: docType,
		FileName:     validator.Sanitize(fileName),
		ContentType:  contentType,
		SizeBytes:    size,
		URL:          url,
		CreatedAt:    time.Now(),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		// Best effort cleanup of the orphaned file.
		if derr := s.store.Delete(ctx, url); derr != nil {
			s.logger.Warn("failed to remove orphaned upload", map[string]interface{}{
				"url":   url,
				"error": derr.Error(),
			})
		}
		return nil, err
	}
	return doc, nil
}

// RequiredDocuments lists what a given user type must and may provide.
func (s *Service) RequiredDocuments(userType domain.Role) *domain.RequiredDocumentsResponse {
	resp := &domain.RequiredDocumentsResponse{
		UserType: userType,
		Required: []domain.DocumentType{
			domain.DocumentTypeCIN,
			domain.DocumentTypeSelfie,
			domain.DocumentTypeRIB,
		},
		Optional: []domain.DocumentType{
			domain.DocumentTypePassport,
			domain.DocumentTypeProofAddress,
		},
	}
	if userType == domain.RoleMerchant {
		resp.Required = append(resp.Required,
			domain.DocumentTypeICE,
			domain.DocumentTypeRC,
		)
		resp.Optional = append(resp.Optional,
			domain.DocumentTypeTVA,
			domain.DocumentTypeStatuts,
		)
	}
	return resp
}

func (s *Service) notifyUser(ctx context.Context, userID uuid.UUID, status domain.KYCStatus, reason string) {
	if s.notifier == nil {
		return
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to resolve user for kyc notification", map[string]interface{}{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
		return
	}
	s.notifier.KYCDecision(ctx, user, status, reason)
}
