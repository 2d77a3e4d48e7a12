// ==============================================================================
// KYC HANDLER - internal/handler/kyc.go
// ==============================================================================
package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"tracknow/internal/domain"
	"tracknow/internal/kyc"
	"tracknow/internal/middleware"
	"tracknow/pkg/logger"
)

type KYCHandler struct {
	service   *kyc.Service
	maxUpload int64
	logger    logger.Logger
}

func NewKYCHandler(service *kyc.Service, maxUpload int64, log logger.Logger) *KYCHandler {
	return &KYCHandler{service: service, maxUpload: maxUpload, logger: log}
}

func (h *KYCHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/kyc/submit", h.Submit).Methods(http.MethodPost)
	r.HandleFunc("/kyc/validate", h.Validate).Methods(http.MethodPost)
	r.HandleFunc("/kyc/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/kyc/documents", h.UploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/kyc/required-documents", h.RequiredDocuments).Methods(http.MethodGet)

	admin := r.PathPrefix("/kyc/admin").Subrouter()
	admin.Use(middleware.RequireRole(domain.RoleAdmin, domain.RoleCommercial))
	admin.HandleFunc("/pending", h.ListPending).Methods(http.MethodGet)
	admin.HandleFunc("/{id}", h.GetSubmission).Methods(http.MethodGet)

	decide := r.PathPrefix("/kyc/admin").Subrouter()
	decide.Use(middleware.RequireRole(domain.RoleAdmin))
	decide.HandleFunc("/{id}/review", h.StartReview).Methods(http.MethodPost)
	decide.HandleFunc("/{id}/approve", h.Approve).Methods(http.MethodPost)
	decide.HandleFunc("/{id}/reject", h.Reject).Methods(http.MethodPost)
}

func (h *KYCHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.KYCSubmissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	submission, result, err := h.service.CreateSubmission(r.Context(), userID, role, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if result != nil && !result.Valid {
		respondJSON(w, http.StatusBadRequest, result)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"submission_id": submission.ID,
		"status":        submission.Status,
		"warnings":      result.Warnings,
	})
}

func (h *KYCHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.KYCSubmissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.ValidateSubmission(r.Context(), userID, role, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *KYCHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *KYCHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+4096)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	docType := domain.DocumentType(r.FormValue("document_type"))
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	doc, err := h.service.UploadDocument(r.Context(), userID, docType,
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (h *KYCHandler) RequiredDocuments(w http.ResponseWriter, r *http.Request) {
	_, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, h.service.RequiredDocuments(role))
}

func (h *KYCHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	_, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := pagination(r)
	submissions, err := h.service.ListPending(r.Context(), role, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": submissions,
		"count":       len(submissions),
	})
}

func (h *KYCHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	submission, err := h.service.GetSubmission(r.Context(), id, userID, role)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, submission)
}

func (h *KYCHandler) StartReview(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	if err := h.service.StartReview(r.Context(), id, userID, role); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(domain.KYCStatusUnderReview)})
}

func (h *KYCHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	if err := h.service.Approve(r.Context(), id, userID, role); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(domain.KYCStatusApproved)})
}

func (h *KYCHandler) Reject(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid submission id")
		return
	}

	var req domain.KYCRejectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.Reject(r.Context(), id, userID, role, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(domain.KYCStatusRejected)})
}

func caller(r *http.Request) (uuid.UUID, domain.Role, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, "", false
	}
	role, ok := middleware.RoleFromContext(r.Context())
	if !ok {
		return uuid.Nil, "", false
	}
	return userID, role, true
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}
