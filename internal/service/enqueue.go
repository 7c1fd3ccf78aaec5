package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finvolt/ledgercore/internal/clock"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
)

// Enqueuer accepts transaction requests for asynchronous processing. The
// caller gets back a pending acknowledgement; the command queue processor
// feeds the request through the orchestrator later.
type Enqueuer struct {
	queue        repository.CommandQueueRepository
	transactions repository.TransactionRepository
	clock        clock.Clock
	logger       *slog.Logger
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(queue repository.CommandQueueRepository, transactions repository.TransactionRepository, clk clock.Clock, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		queue:        queue,
		transactions: transactions,
		clock:        clk,
		logger:       logger,
	}
}

// EnqueueTransaction validates and stores the request for later processing.
// A duplicate reference id that already completed returns the stored outcome
// instead of enqueueing again.
func (e *Enqueuer) EnqueueTransaction(ctx context.Context, req *models.TransactionRequest) (*models.TransactionResult, error) {
	if err := ValidateTransactionRequest(req); err != nil {
		return nil, err
	}

	existing, err := e.transactions.GetByReference(ctx, req.ReferenceID)
	if err == nil {
		return models.ResultFromPersisted(existing), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize command payload: %w", err)
	}

	cmd := &models.QueuedCommand{
		CommandID:  uuid.New(),
		Payload:    payload,
		Status:     models.CommandStatusPending,
		EnqueuedAt: e.clock.Now(),
	}

	if err := e.queue.Enqueue(ctx, cmd); err != nil {
		return nil, fmt.Errorf("failed to enqueue command: %w", err)
	}

	e.logger.Info("transaction enqueued",
		"command_id", cmd.CommandID,
		"reference_id", req.ReferenceID,
		"operation", req.Operation,
	)

	return &models.TransactionResult{
		TransactionID: req.ReferenceID + "-PENDING",
		Status:        models.TransactionStatusPending,
		Timestamp:     cmd.EnqueuedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}
