// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrForbidden         = errors.New("caller role not permitted for this operation")

	// Sale errors
	ErrSaleNotFound        = errors.New("sale not found")
	ErrInvalidSaleState    = errors.New("sale is not in a settleable state")
	ErrUnsupportedCurrency = errors.New("unsupported currency code")

	// Commission errors
	ErrCommissionNotFound    = errors.New("commission not found")
	ErrInvalidRate           = errors.New("commission rate out of range")
	ErrRateNotAvailable      = errors.New("commission rate not available for product")
	ErrInvalidTransition     = errors.New("invalid commission status transition")
	ErrPaymentMethodRequired = errors.New("payment method required before payout")
	ErrRejectReasonRequired  = errors.New("rejection reason required")
	ErrAlreadySettled        = errors.New("sale already settled")

	// KYC errors
	ErrKYCNotFound        = errors.New("kyc submission not found")
	ErrKYCAlreadyPending  = errors.New("a kyc submission is already pending review")
	ErrInvalidReviewState = errors.New("kyc submission is not reviewable")
	ErrRejectionRequired  = errors.New("rejection reason and comment are required")
	ErrResubmitNotAllowed = errors.New("resubmission is not allowed for this user")

	// Document errors
	ErrDocumentNotFound     = errors.New("document not found")
	ErrInvalidDocumentType  = errors.New("invalid document type")
	ErrUnsupportedMediaType = errors.New("unsupported document media type")
	ErrFileTooLarge         = errors.New("file too large")
	ErrDocumentNotOwned     = errors.New("document does not belong to this user")
	ErrFileStorageFailed    = errors.New("file storage failed")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
