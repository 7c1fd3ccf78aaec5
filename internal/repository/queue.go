package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/models"
)

// CommandQueueRepository is the async intake table. TryDequeue claims at
// most one pending command with a skip-locked read so concurrent processor
// instances never pick the same row.
type CommandQueueRepository interface {
	Enqueue(ctx context.Context, cmd *models.QueuedCommand) error
	TryDequeue(ctx context.Context) (*models.QueuedCommand, error)
	MarkProcessed(ctx context.Context, commandID uuid.UUID, status models.CommandStatus, errorMessage string, processedAt time.Time) error
}

type commandQueueRepository struct {
	db db.DBTX
}

// NewCommandQueueRepository creates a new CommandQueueRepository
func NewCommandQueueRepository(dbtx db.DBTX) CommandQueueRepository {
	return &commandQueueRepository{db: dbtx}
}

// Enqueue inserts a pending command
func (r *commandQueueRepository) Enqueue(ctx context.Context, cmd *models.QueuedCommand) error {
	query := `
		INSERT INTO queued_commands (command_id, payload, status, enqueued_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, cmd.CommandID, cmd.Payload, cmd.Status, cmd.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue command: %w", err)
	}

	return nil
}

// TryDequeue claims the oldest pending command, marking it processing, or
// returns ErrNotFound when the queue is empty.
func (r *commandQueueRepository) TryDequeue(ctx context.Context) (*models.QueuedCommand, error) {
	query := `
		UPDATE queued_commands
		SET status = $1
		WHERE command_id = (
			SELECT command_id
			FROM queued_commands
			WHERE status = $2
			ORDER BY enqueued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING command_id, payload, enqueued_at`

	var cmd models.QueuedCommand
	err := r.db.QueryRowContext(ctx, query, models.CommandStatusProcessing, models.CommandStatusPending).Scan(
		&cmd.CommandID,
		&cmd.Payload,
		&cmd.EnqueuedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queued command: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue command: %w", err)
	}

	cmd.Status = models.CommandStatusProcessing
	return &cmd, nil
}

// MarkProcessed records the terminal state of a claimed command
func (r *commandQueueRepository) MarkProcessed(ctx context.Context, commandID uuid.UUID, status models.CommandStatus, errorMessage string, processedAt time.Time) error {
	query := `
		UPDATE queued_commands
		SET status = $2,
		    error_message = $3,
		    processed_at = $4
		WHERE command_id = $1`

	if _, err := r.db.ExecContext(ctx, query, commandID, status, errorMessage, processedAt); err != nil {
		return fmt.Errorf("failed to mark command processed: %w", err)
	}

	return nil
}
