package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // headers already written
	}
}

func respondError(w http.ResponseWriter, code int, errorCode, message string) {
	respondJSON(w, code, errorResponse{Error: errorCode, Message: message})
}

// domainErrorStatus maps domain error codes to HTTP status codes for
// requests rejected before an outcome row exists.
func domainErrorStatus(code string) int {
	switch code {
	case domain.ErrCodeAccountNotFound, domain.ErrCodeOriginalNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAccountExists, domain.ErrCodeAlreadyReversed:
		return http.StatusConflict
	case domain.ErrCodeInsufficientFunds, domain.ErrCodeInsufficientAvailable, domain.ErrCodeInsufficientReserved:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// handleServiceError writes the appropriate response for a non-outcome
// error: validation problems map to 400, domain errors to their status,
// anything else to 500.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var valErr *service.ValidationError
	if errors.As(err, &valErr) {
		respondError(w, http.StatusBadRequest, "invalid_request", valErr.Message)
		return
	}

	if domErr := domain.AsDomainError(err); domErr != nil {
		respondError(w, domainErrorStatus(domErr.Code), domErr.Code, domErr.Message)
		return
	}

	h.logger.Error("unexpected error handling request", "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
