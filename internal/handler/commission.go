// ==============================================================================
// COMMISSION HANDLER - internal/handler/commission.go
// ==============================================================================
package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tracknow/internal/domain"
	"tracknow/internal/middleware"
	"tracknow/internal/settlement"
	"tracknow/pkg/logger"
)

type CommissionHandler struct {
	service *settlement.Service
	logger  logger.Logger
}

func NewCommissionHandler(service *settlement.Service, log logger.Logger) *CommissionHandler {
	return &CommissionHandler{service: service, logger: log}
}

func (h *CommissionHandler) RegisterRoutes(r *mux.Router) {
	admin := r.PathPrefix("/commissions").Subrouter()
	admin.Use(middleware.RequireRole(domain.RoleAdmin))
	admin.HandleFunc("/sales/{id}/settle", h.Settle).Methods(http.MethodPost)
	admin.HandleFunc("/sales/{id}/refund", h.Refund).Methods(http.MethodPost)
	admin.HandleFunc("/{id}/approve", h.Approve).Methods(http.MethodPost)
	admin.HandleFunc("/{id}/pay", h.Pay).Methods(http.MethodPost)
	admin.HandleFunc("/{id}/reject", h.Reject).Methods(http.MethodPost)

	r.HandleFunc("/commissions", h.ListMine).Methods(http.MethodGet)
	r.HandleFunc("/commissions/{id}", h.Get).Methods(http.MethodGet)
}

func (h *CommissionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	split, commission, err := h.service.Settle(r.Context(), saleID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"split":      split,
		"commission": commission,
	})
}

func (h *CommissionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}

	if err := h.service.RefundSale(r.Context(), saleID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(domain.SaleStatusRefunded)})
}

func (h *CommissionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.CommissionStatusApproved)
}

func (h *CommissionHandler) Pay(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.CommissionStatusPaid)
}

func (h *CommissionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.CommissionStatusRejected)
}

type transitionBody struct {
	PaymentMethod string `json:"payment_method,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func (h *CommissionHandler) transition(w http.ResponseWriter, r *http.Request, to domain.CommissionStatus) {
	_, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid commission id")
		return
	}

	var body transitionBody
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	commission, err := h.service.Transition(r.Context(), settlement.TransitionRequest{
		CommissionID:  id,
		To:            to,
		ActorRole:     role,
		PaymentMethod: body.PaymentMethod,
		Reason:        body.Reason,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, commission)
}

func (h *CommissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid commission id")
		return
	}

	commission, err := h.service.GetCommission(r.Context(), id, userID, role)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, commission)
}

func (h *CommissionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := pagination(r)
	commissions, err := h.service.ListInfluencerCommissions(r.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"commissions": commissions,
		"count":       len(commissions),
	})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
