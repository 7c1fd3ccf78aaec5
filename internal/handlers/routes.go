package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finvolt/ledgercore/internal/clock"
	"github.com/finvolt/ledgercore/internal/config"
	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/middleware"
	"github.com/finvolt/ledgercore/internal/repository"
	"github.com/finvolt/ledgercore/internal/service"
)

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(
	database *db.DB,
	cfg *config.Config,
	logger *slog.Logger,
) http.Handler {
	clk := clock.System{}

	processor := service.NewProcessor(
		database,
		clk,
		service.RetryPolicyFromConfig(&cfg.Processor),
		cfg.Processor.LockTimeout,
		logger,
	)
	accounts := service.NewAccountService(repository.NewAccountRepository(database), clk, logger)
	enqueuer := service.NewEnqueuer(
		repository.NewCommandQueueRepository(database),
		repository.NewTransactionRepository(database),
		clk,
		logger,
	)
	queries := service.NewQueryService(
		repository.NewTransactionRepository(database),
		repository.NewLedgerRepository(database),
	)

	handler := NewHandler(processor, enqueuer, accounts, queries, database, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", handler.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/accounts", handler.CreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{accountId}", handler.GetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{accountId}/transactions", handler.ListAccountTransactions).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{accountId}/events", handler.ListAccountEvents).Methods(http.MethodGet)
	api.HandleFunc("/transactions", handler.ProcessTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/async", handler.EnqueueTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{referenceId}", handler.GetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{referenceId}/reversal", handler.GetTransactionReversal).Methods(http.MethodGet)

	return middleware.RequestLogging(logger)(router)
}
