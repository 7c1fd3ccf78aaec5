package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/models"
)

// maxStoredErrorLen caps the error text kept on a failed outbox row.
const maxStoredErrorLen = 2000

// OutboxRepository stages integration events and drives their delivery
// bookkeeping. FetchDueBatch skips rows locked by other publisher instances
// so multiple publishers can drain the table concurrently without duplicate
// dispatch.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg *models.OutboxMessage) error
	FetchDueBatch(ctx context.Context, batchSize int) ([]*models.OutboxMessage, error)
	MarkProcessed(ctx context.Context, eventID uuid.UUID, processedAt time.Time) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error
}

type outboxRepository struct {
	db db.DBTX
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(dbtx db.DBTX) OutboxRepository {
	return &outboxRepository{db: dbtx}
}

// Enqueue stages an event inside the caller's transaction
func (r *outboxRepository) Enqueue(ctx context.Context, msg *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_events (
			event_id, aggregate_id, event_type, payload,
			occurred_at, next_attempt_at, attempts, last_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		msg.EventID,
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		msg.OccurredAt,
		msg.NextAttemptAt,
		msg.Attempts,
		msg.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}

	return nil
}

// FetchDueBatch locks and returns up to batchSize unprocessed events whose
// next attempt is due, oldest due first. Rows held by a concurrent publisher
// are skipped.
func (r *outboxRepository) FetchDueBatch(ctx context.Context, batchSize int) ([]*models.OutboxMessage, error) {
	query := `
		SELECT event_id, aggregate_id, event_type, payload,
		       occurred_at, processed_at, attempts, next_attempt_at, last_error
		FROM outbox_events
		WHERE processed_at IS NULL AND next_attempt_at <= NOW()
		ORDER BY next_attempt_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, query, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due outbox batch: %w", err)
	}
	defer rows.Close()

	var batch []*models.OutboxMessage
	for rows.Next() {
		var msg models.OutboxMessage
		err := rows.Scan(
			&msg.EventID,
			&msg.AggregateID,
			&msg.EventType,
			&msg.Payload,
			&msg.OccurredAt,
			&msg.ProcessedAt,
			&msg.Attempts,
			&msg.NextAttemptAt,
			&msg.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		batch = append(batch, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox batch: %w", err)
	}

	return batch, nil
}

// MarkProcessed stamps the delivery time and clears the stored error
func (r *outboxRepository) MarkProcessed(ctx context.Context, eventID uuid.UUID, processedAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET processed_at = $2,
		    last_error = ''
		WHERE event_id = $1`

	if _, err := r.db.ExecContext(ctx, query, eventID, processedAt); err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}

	return nil
}

// MarkFailed records the attempt count, reschedules the event and stores the
// error truncated to fit the column.
func (r *outboxRepository) MarkFailed(ctx context.Context, eventID uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error {
	if len(lastError) > maxStoredErrorLen {
		lastError = lastError[:maxStoredErrorLen]
	}

	query := `
		UPDATE outbox_events
		SET attempts = $2,
		    next_attempt_at = $3,
		    last_error = $4
		WHERE event_id = $1`

	if _, err := r.db.ExecContext(ctx, query, eventID, attempts, nextAttemptAt, lastError); err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}

	return nil
}
