package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/service/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/accounts", h.CreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{accountId}", h.GetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{accountId}/transactions", h.ListAccountTransactions).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{accountId}/events", h.ListAccountEvents).Methods(http.MethodGet)
	api.HandleFunc("/transactions", h.ProcessTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/async", h.EnqueueTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{referenceId}", h.GetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{referenceId}/reversal", h.GetTransactionReversal).Methods(http.MethodGet)
	return router
}

func TestProcessTransaction_Success(t *testing.T) {
	processor := mocks.NewMockTransactionProcessor(t)
	handler := NewHandler(processor, nil, nil, nil, nil, testLogger())

	processor.On("Process", mock.Anything, mock.MatchedBy(func(req *models.TransactionRequest) bool {
		return req.ReferenceID == "ref-1" && req.Operation == "credit"
	})).Return(&models.TransactionResult{
		TransactionID: "ref-1-PROCESSED",
		Status:        models.TransactionStatusSuccess,
		Balance:       1500,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
	}, nil)

	body := `{"operation":"credit","account_id":"acc-1","amount":500,"currency":"USD","reference_id":"ref-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	testRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.TransactionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "ref-1-PROCESSED", result.TransactionID)
	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
}

func TestProcessTransaction_BusinessFailureIs200(t *testing.T) {
	processor := mocks.NewMockTransactionProcessor(t)
	handler := NewHandler(processor, nil, nil, nil, nil, testLogger())

	processor.On("Process", mock.Anything, mock.Anything).Return(&models.TransactionResult{
		TransactionID: "ref-2-PROCESSED",
		Status:        models.TransactionStatusFailed,
		ErrorMessage:  "insufficient funds",
	}, nil)

	body := `{"operation":"debit","account_id":"acc-1","amount":9999,"currency":"USD","reference_id":"ref-2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	testRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.TransactionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.TransactionStatusFailed, result.Status)
	assert.Equal(t, "insufficient funds", result.ErrorMessage)
}

func TestProcessTransaction_MalformedBody(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	testRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueTransaction_Accepted(t *testing.T) {
	enqueuer := mocks.NewMockTransactionEnqueuer(t)
	handler := NewHandler(nil, enqueuer, nil, nil, nil, testLogger())

	enqueuer.On("EnqueueTransaction", mock.Anything, mock.Anything).Return(&models.TransactionResult{
		TransactionID: "ref-1-PENDING",
		Status:        models.TransactionStatusPending,
	}, nil)

	body := `{"operation":"credit","account_id":"acc-1","amount":500,"currency":"USD","reference_id":"ref-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/async", strings.NewReader(body))
	rec := httptest.NewRecorder()

	testRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestEnqueueTransaction_DuplicateReturnsOutcome(t *testing.T) {
	enqueuer := mocks.NewMockTransactionEnqueuer(t)
	handler := NewHandler(nil, enqueuer, nil, nil, nil, testLogger())

	enqueuer.On("EnqueueTransaction", mock.Anything, mock.Anything).Return(&models.TransactionResult{
		TransactionID: "ref-1-PROCESSED",
		Status:        models.TransactionStatusSuccess,
	}, nil)

	body := `{"operation":"credit","account_id":"acc-1","amount":500,"currency":"USD","reference_id":"ref-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/async", strings.NewReader(body))
	rec := httptest.NewRecorder()

	testRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTransaction_NotFound(t *testing.T) {
	queries := mocks.NewMockTransactionReader(t)
	handler := NewHandler(nil, nil, nil, queries, nil, testLogger())

	queries.On("GetTransactionByReference", mock.Anything, "missing").
		Return(nil, domain.Errorf(domain.ErrCodeOriginalNotFound, "transaction %q not found", "missing"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/missing", nil)
	rec := httptest.NewRecorder()

	testRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ErrCodeOriginalNotFound, resp["error"])
}

func TestGetTransactionReversal(t *testing.T) {
	queries := mocks.NewMockTransactionReader(t)
	handler := NewHandler(nil, nil, nil, queries, nil, testLogger())

	queries.On("GetReversalOf", mock.Anything, "ref-1").Return(&models.PersistedTransaction{
		TransactionID:      "rev-1-PROCESSED",
		ReferenceID:        "rev-1",
		RelatedReferenceID: "ref-1",
		Status:             models.TransactionStatusSuccess,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/ref-1/reversal", nil)
	rec := httptest.NewRecorder()

	testRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.TransactionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "rev-1-PROCESSED", result.TransactionID)
}

func TestGetTransactionReversal_NotFound(t *testing.T) {
	queries := mocks.NewMockTransactionReader(t)
	handler := NewHandler(nil, nil, nil, queries, nil, testLogger())

	queries.On("GetReversalOf", mock.Anything, "ref-1").
		Return(nil, domain.Errorf(domain.ErrCodeOriginalNotFound, "no transaction references %q", "ref-1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/ref-1/reversal", nil)
	rec := httptest.NewRecorder()

	testRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAccountTransactions(t *testing.T) {
	queries := mocks.NewMockTransactionReader(t)
	handler := NewHandler(nil, nil, nil, queries, nil, testLogger())

	queries.On("ListAccountTransactions", mock.Anything, "acc-1").Return([]*models.PersistedTransaction{
		{TransactionID: "ref-1-PROCESSED", Status: models.TransactionStatusSuccess},
		{TransactionID: "ref-2-PROCESSED", Status: models.TransactionStatusFailed},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/acc-1/transactions", nil)
	rec := httptest.NewRecorder()

	testRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var results []*models.TransactionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 2)
}
