// ==============================================================================
// RESPONSE HELPERS - internal/handler/response.go
// ==============================================================================
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "tracknow/pkg/errors"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps sentinel errors to HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrSaleNotFound),
		errors.Is(err, apperrors.ErrCommissionNotFound),
		errors.Is(err, apperrors.ErrKYCNotFound),
		errors.Is(err, apperrors.ErrDocumentNotFound),
		errors.Is(err, apperrors.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrForbidden),
		errors.Is(err, apperrors.ErrDocumentNotOwned):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, apperrors.ErrInvalidSaleState),
		errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrInvalidReviewState),
		errors.Is(err, apperrors.ErrKYCAlreadyPending),
		errors.Is(err, apperrors.ErrResubmitNotAllowed),
		errors.Is(err, apperrors.ErrAlreadySettled):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrPaymentMethodRequired),
		errors.Is(err, apperrors.ErrRejectReasonRequired),
		errors.Is(err, apperrors.ErrRejectionRequired),
		errors.Is(err, apperrors.ErrInvalidRate),
		errors.Is(err, apperrors.ErrRateNotAvailable),
		errors.Is(err, apperrors.ErrUnsupportedCurrency),
		errors.Is(err, apperrors.ErrInvalidDocumentType):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrUnsupportedMediaType):
		respondError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, apperrors.ErrFileTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
