package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finvolt/ledgercore/internal/models"
)

// CreateAccount handles POST /api/v1/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/api/v1/accounts"))
	defer timer.ObserveDuration()

	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/api/v1/accounts", "400").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), &req)
	if err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/api/v1/accounts", "400").Inc()
		h.handleServiceError(w, err)
		return
	}

	httpRequestsTotal.WithLabelValues("POST", "/api/v1/accounts", "201").Inc()
	respondJSON(w, http.StatusCreated, account)
}

// GetAccount handles GET /api/v1/accounts/{accountId}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/api/v1/accounts/{accountId}", "404").Inc()
		h.handleServiceError(w, err)
		return
	}

	httpRequestsTotal.WithLabelValues("GET", "/api/v1/accounts/{accountId}", "200").Inc()
	respondJSON(w, http.StatusOK, account)
}

// ListAccountEvents handles GET /api/v1/accounts/{accountId}/events
func (h *Handler) ListAccountEvents(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	events, err := h.queries.ListAccountEvents(r.Context(), accountID)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/api/v1/accounts/{accountId}/events", "500").Inc()
		h.handleServiceError(w, err)
		return
	}

	httpRequestsTotal.WithLabelValues("GET", "/api/v1/accounts/{accountId}/events", "200").Inc()
	respondJSON(w, http.StatusOK, events)
}
