// Package queue feeds asynchronously submitted commands through the
// transaction orchestrator.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finvolt/ledgercore/internal/clock"
	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
)

// Orchestrator is the processing entrypoint commands are fed through.
type Orchestrator interface {
	Process(ctx context.Context, req *models.TransactionRequest) (*models.TransactionResult, error)
}

// Processor claims pending commands one at a time and runs them through the
// orchestrator. The claim commits before processing starts so a crash
// mid-command never blocks other instances; the orchestrator's idempotency
// makes re-running a crashed command safe.
type Processor struct {
	db           *db.DB
	orchestrator Orchestrator
	clock        clock.Clock
	logger       *slog.Logger
}

// NewProcessor creates a new Processor
func NewProcessor(database *db.DB, orchestrator Orchestrator, clk clock.Clock, logger *slog.Logger) *Processor {
	return &Processor{
		db:           database,
		orchestrator: orchestrator,
		clock:        clk,
		logger:       logger,
	}
}

// Run polls for pending commands until the context is cancelled. After a
// processed command it immediately tries the next one so a backlog drains at
// full speed.
func (p *Processor) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	p.logger.Info("command queue processor started", "poll_interval", pollInterval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("command queue processor stopped")
			return
		case <-ticker.C:
			for {
				processed, err := p.RunOnce(ctx)
				if err != nil {
					p.logger.Error("command processing pass failed", "error", err)
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

// RunOnce claims and processes at most one command. It reports whether a
// command was processed.
func (p *Processor) RunOnce(ctx context.Context) (bool, error) {
	cmd, err := p.claim(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	status, errorMessage := p.execute(ctx, cmd)

	commands := repository.NewCommandQueueRepository(p.db)
	if err := commands.MarkProcessed(ctx, cmd.CommandID, status, errorMessage, p.clock.Now()); err != nil {
		return false, fmt.Errorf("failed to finalize command %s: %w", cmd.CommandID, err)
	}

	return true, nil
}

// claim moves one pending command to processing in its own short
// transaction.
func (p *Processor) claim(ctx context.Context) (*models.QueuedCommand, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback error is not critical in defer
	}()

	cmd, err := repository.NewCommandQueueRepository(tx).TryDequeue(ctx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return cmd, nil
}

// execute runs the command payload through the orchestrator. Only
// orchestrator errors and malformed payloads mark the command failed; a
// failed business outcome is still a processed command, its transaction row
// already records the detail.
func (p *Processor) execute(ctx context.Context, cmd *models.QueuedCommand) (models.CommandStatus, string) {
	var req models.TransactionRequest
	if err := json.Unmarshal(cmd.Payload, &req); err != nil {
		p.logger.Error("malformed command payload",
			"command_id", cmd.CommandID,
			"error", err,
		)
		return models.CommandStatusFailed, fmt.Sprintf("malformed payload: %v", err)
	}

	result, err := p.orchestrator.Process(ctx, &req)
	if err != nil {
		p.logger.Error("command processing failed",
			"command_id", cmd.CommandID,
			"reference_id", req.ReferenceID,
			"error", err,
		)
		return models.CommandStatusFailed, err.Error()
	}

	p.logger.Info("command processed",
		"command_id", cmd.CommandID,
		"reference_id", req.ReferenceID,
		"status", result.Status,
	)

	return models.CommandStatusDone, ""
}
