// ==============================================================================
// KYC DOMAIN MODELS - internal/domain/kyc.go
// ==============================================================================
package domain

import (
	"time"

	"github.com/google/uuid"
)

// KYCStatus represents the verification state of a user.
type KYCStatus string

const (
	KYCStatusPending     KYCStatus = "pending" // default state, no submission yet
	KYCStatusSubmitted   KYCStatus = "submitted"
	KYCStatusUnderReview KYCStatus = "under_review"
	KYCStatusApproved    KYCStatus = "approved"
	KYCStatusRejected    KYCStatus = "rejected"
	KYCStatusExpired     KYCStatus = "expired" // computed: approved but identity document lapsed
)

// ActivelyPending reports whether a submission in this state blocks a new one.
func (s KYCStatus) ActivelyPending() bool {
	return s == KYCStatusSubmitted || s == KYCStatusUnderReview
}

// DocumentType enumerates accepted verification document kinds.
type DocumentType string

const (
	DocumentTypeCIN          DocumentType = "cin"
	DocumentTypePassport     DocumentType = "passport"
	DocumentTypeICE          DocumentType = "ice"
	DocumentTypeRC           DocumentType = "rc"
	DocumentTypeTVA          DocumentType = "tva"
	DocumentTypeRIB          DocumentType = "rib"
	DocumentTypeSelfie       DocumentType = "selfie"
	DocumentTypeProofAddress DocumentType = "proof_address"
	DocumentTypeStatuts      DocumentType = "statuts"
)

// ValidDocumentType reports whether t is a known document type.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeCIN, DocumentTypePassport, DocumentTypeICE, DocumentTypeRC,
		DocumentTypeTVA, DocumentTypeRIB, DocumentTypeSelfie,
		DocumentTypeProofAddress, DocumentTypeStatuts:
		return true
	}
	return false
}

// PersonalInfo is the identity block common to all user types.
type PersonalInfo struct {
	FirstName   string `json:"first_name" db:"first_name" validate:"required,min=2,max=100"`
	LastName    string `json:"last_name" db:"last_name" validate:"required,min=2,max=100"`
	DateOfBirth string `json:"date_of_birth" db:"date_of_birth" validate:"required"`
	Phone       string `json:"phone" db:"phone" validate:"required,intl_phone"`
	Address     string `json:"address" db:"address" validate:"required,min=10"`
	City        string `json:"city" db:"city" validate:"required,min=2"`
	PostalCode  string `json:"postal_code,omitempty" db:"postal_code"`
}

// IdentityDocument is the government identity block.
type IdentityDocument struct {
	DocumentType   string `json:"document_type" db:"identity_doc_type" validate:"required,oneof=cin passport"`
	DocumentNumber string `json:"document_number" db:"identity_doc_number" validate:"required,min=4,max=50"`
	ExpiryDate     string `json:"expiry_date" db:"identity_expiry_date" validate:"required"`
	FrontImageURL  string `json:"front_image_url" db:"identity_front_url" validate:"required,min=1"`
	BackImageURL   string `json:"back_image_url,omitempty" db:"identity_back_url"`
	SelfieURL      string `json:"selfie_url" db:"identity_selfie_url" validate:"required,min=1"`
}

// CompanyDocuments is required for merchant submissions only.
type CompanyDocuments struct {
	CompanyName    string `json:"company_name" db:"company_name" validate:"required,min=2,max=200"`
	LegalForm      string `json:"legal_form" db:"legal_form" validate:"required,min=2,max=100"`
	ICENumber      string `json:"ice_number" db:"ice_number" validate:"required,ice"`
	ICEDocumentURL string `json:"ice_document_url" db:"ice_document_url" validate:"required,min=1"`
	RCNumber       string `json:"rc_number" db:"rc_number" validate:"required,min=1,max=50"`
	RCDocumentURL  string `json:"rc_document_url" db:"rc_document_url" validate:"required,min=1"`
	TVANumber      string `json:"tva_number,omitempty" db:"tva_number"`
	TVADocumentURL string `json:"tva_document_url,omitempty" db:"tva_document_url"`
	StatutsURL     string `json:"statuts_url,omitempty" db:"statuts_url"`
	CompanyAddress string `json:"company_address" db:"company_address" validate:"required,min=10"`
	CompanyCity    string `json:"company_city" db:"company_city" validate:"required,min=2"`
}

// BankAccount is the payout destination block.
type BankAccount struct {
	BankName          string `json:"bank_name" db:"bank_name" validate:"required,min=2,max=100"`
	AccountHolderName string `json:"account_holder_name" db:"account_holder_name" validate:"required,min=2,max=200"`
	IBAN              string `json:"iban" db:"iban" validate:"required,ma_iban"`
	RIBDocumentURL    string `json:"rib_document_url" db:"rib_document_url" validate:"required,min=1"`
}

// KYCSubmission is one verification attempt. A user may accumulate several
// over time; exactly one carries is_current = true.
type KYCSubmission struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	UserType  Role      `json:"user_type" db:"user_type"`
	Status    KYCStatus `json:"status" db:"status"`
	IsCurrent bool      `json:"is_current" db:"is_current"`

	PersonalInfo     PersonalInfo      `json:"personal_info"`
	IdentityDocument IdentityDocument  `json:"identity_document"`
	CompanyDocuments *CompanyDocuments `json:"company_documents,omitempty"`
	BankAccount      BankAccount       `json:"bank_account"`

	RejectionReason  *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	RejectionComment *string    `json:"rejection_comment,omitempty" db:"rejection_comment"`
	CanResubmit      bool       `json:"can_resubmit" db:"can_resubmit"`
	ReviewedBy       *uuid.UUID `json:"reviewed_by,omitempty" db:"reviewed_by"`
	SubmittedAt      time.Time  `json:"submitted_at" db:"submitted_at"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// DocumentUpload records one stored verification file.
type DocumentUpload struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	UserID       uuid.UUID    `json:"user_id" db:"user_id"`
	DocumentType DocumentType `json:"document_type" db:"document_type"`
	FileName     string       `json:"file_name" db:"file_name"`
	ContentType  string       `json:"content_type" db:"content_type"`
	SizeBytes    int64        `json:"size_bytes" db:"size_bytes"`
	URL          string       `json:"url" db:"url"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// KYCSubmissionRequest is the submit payload.
type KYCSubmissionRequest struct {
	PersonalInfo     PersonalInfo      `json:"personal_info" validate:"required"`
	IdentityDocument IdentityDocument  `json:"identity_document" validate:"required"`
	CompanyDocuments *CompanyDocuments `json:"company_documents,omitempty"`
	BankAccount      BankAccount       `json:"bank_account" validate:"required"`
}

// KYCValidationResult is the structured outcome of payload validation.
type KYCValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   map[string]string `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// KYCStatusResponse summarizes a user's current verification state.
type KYCStatusResponse struct {
	Status           KYCStatus  `json:"status"`
	SubmissionID     *uuid.UUID `json:"submission_id,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason  *string    `json:"rejection_reason,omitempty"`
	RejectionComment *string    `json:"rejection_comment,omitempty"`
	CanResubmit      bool       `json:"can_resubmit"`
}

// KYCRejectRequest carries the mandatory justification for a rejection.
type KYCRejectRequest struct {
	Reason      string `json:"reason" validate:"required,min=1"`
	Comment     string `json:"comment" validate:"required,min=1"`
	CanResubmit *bool  `json:"can_resubmit,omitempty"`
}

// RequiredDocumentsResponse lists what a given user type must provide.
type RequiredDocumentsResponse struct {
	UserType Role           `json:"user_type"`
	Required []DocumentType `json:"required"`
	Optional []DocumentType `json:"optional"`
}
