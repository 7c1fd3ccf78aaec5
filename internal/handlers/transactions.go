package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finvolt/ledgercore/internal/models"
)

// ProcessTransaction handles POST /api/v1/transactions
func (h *Handler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/api/v1/transactions"))
	defer timer.ObserveDuration()

	var req models.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/api/v1/transactions", "400").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	result, err := h.processor.Process(r.Context(), &req)
	if err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/api/v1/transactions", "400").Inc()
		h.handleServiceError(w, err)
		return
	}

	transactionsProcessed.WithLabelValues(strings.ToLower(req.Operation), string(result.Status)).Inc()

	// Business failures are well-formed outcomes: 200 with status failed.
	httpRequestsTotal.WithLabelValues("POST", "/api/v1/transactions", "200").Inc()
	respondJSON(w, http.StatusOK, result)
}

// EnqueueTransaction handles POST /api/v1/transactions/async
func (h *Handler) EnqueueTransaction(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/api/v1/transactions/async"))
	defer timer.ObserveDuration()

	var req models.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/api/v1/transactions/async", "400").Inc()
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	result, err := h.enqueuer.EnqueueTransaction(r.Context(), &req)
	if err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/api/v1/transactions/async", "400").Inc()
		h.handleServiceError(w, err)
		return
	}

	code := http.StatusAccepted
	if result.Status != models.TransactionStatusPending {
		// Duplicate reference id already processed: return the outcome.
		code = http.StatusOK
	}
	httpRequestsTotal.WithLabelValues("POST", "/api/v1/transactions/async", strconv.Itoa(code)).Inc()
	respondJSON(w, code, result)
}

// GetTransaction handles GET /api/v1/transactions/{referenceId}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	referenceID := mux.Vars(r)["referenceId"]

	tx, err := h.queries.GetTransactionByReference(r.Context(), referenceID)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/api/v1/transactions/{referenceId}", "404").Inc()
		h.handleServiceError(w, err)
		return
	}

	httpRequestsTotal.WithLabelValues("GET", "/api/v1/transactions/{referenceId}", "200").Inc()
	respondJSON(w, http.StatusOK, models.ResultFromPersisted(tx))
}

// GetTransactionReversal handles GET /api/v1/transactions/{referenceId}/reversal
func (h *Handler) GetTransactionReversal(w http.ResponseWriter, r *http.Request) {
	referenceID := mux.Vars(r)["referenceId"]

	tx, err := h.queries.GetReversalOf(r.Context(), referenceID)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/api/v1/transactions/{referenceId}/reversal", "404").Inc()
		h.handleServiceError(w, err)
		return
	}

	httpRequestsTotal.WithLabelValues("GET", "/api/v1/transactions/{referenceId}/reversal", "200").Inc()
	respondJSON(w, http.StatusOK, models.ResultFromPersisted(tx))
}

// ListAccountTransactions handles GET /api/v1/accounts/{accountId}/transactions
func (h *Handler) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	txs, err := h.queries.ListAccountTransactions(r.Context(), accountID)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/api/v1/accounts/{accountId}/transactions", "500").Inc()
		h.handleServiceError(w, err)
		return
	}

	results := make([]*models.TransactionResult, 0, len(txs))
	for _, tx := range txs {
		results = append(results, models.ResultFromPersisted(tx))
	}

	httpRequestsTotal.WithLabelValues("GET", "/api/v1/accounts/{accountId}/transactions", "200").Inc()
	respondJSON(w, http.StatusOK, results)
}
