// Package handlers implements HTTP handlers for the ledger API.
package handlers

import (
	"context"
	"log/slog"

	"github.com/finvolt/ledgercore/internal/service"
)

// HealthChecker validates system health.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Handler serves all API endpoints.
type Handler struct {
	processor     service.TransactionProcessor
	enqueuer      service.TransactionEnqueuer
	accounts      service.AccountManager
	queries       service.TransactionReader
	healthChecker HealthChecker
	logger        *slog.Logger
}

// NewHandler creates a new Handler with injected service dependencies.
func NewHandler(
	processor service.TransactionProcessor,
	enqueuer service.TransactionEnqueuer,
	accounts service.AccountManager,
	queries service.TransactionReader,
	healthChecker HealthChecker,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		processor:     processor,
		enqueuer:      enqueuer,
		accounts:      accounts,
		queries:       queries,
		healthChecker: healthChecker,
		logger:        logger,
	}
}
