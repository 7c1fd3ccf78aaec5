// Package outbox drains staged integration events to the message broker
// with at-least-once delivery.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"github.com/finvolt/ledgercore/internal/clock"
	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/messaging"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
)

const (
	retryBase       = time.Second
	retryCap        = 60 * time.Second
	retryShiftMax   = 10
	retryJitter     = 250 * time.Millisecond
	attemptWarnOver = 10

	breakerFailures = 5
	breakerOpenFor  = 30 * time.Second
)

// Publisher drains due outbox rows in batches and publishes them through a
// circuit breaker. Multiple instances can run concurrently: the fetch skips
// rows another instance holds locked.
type Publisher struct {
	db        *db.DB
	publisher messaging.EventPublisher
	clock     clock.Clock
	breaker   *gobreaker.CircuitBreaker
	batchSize int
	logger    *slog.Logger
}

// NewPublisher creates a new Publisher
func NewPublisher(database *db.DB, eventPublisher messaging.EventPublisher, clk clock.Clock, batchSize int, logger *slog.Logger) *Publisher {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "outbox-publisher",
		Timeout: breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Publisher{
		db:        database,
		publisher: eventPublisher,
		clock:     clk,
		breaker:   breaker,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run polls for due events until the context is cancelled.
func (p *Publisher) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	p.logger.Info("outbox publisher started",
		"batch_size", p.batchSize,
		"poll_interval", pollInterval,
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error("outbox drain pass failed", "error", err)
			}
		}
	}
}

// RunOnce drains one batch and returns the number of events published. Rows
// stay locked for the duration of the pass; publish failures reschedule the
// row with backoff instead of aborting the batch.
func (p *Publisher) RunOnce(ctx context.Context) (int, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback error is not critical in defer
	}()

	repo := repository.NewOutboxRepository(tx)

	batch, err := repo.FetchDueBatch(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	published := 0
	for _, msg := range batch {
		if err := p.publishOne(ctx, msg); err != nil {
			p.reschedule(ctx, repo, msg, err)
			continue
		}
		if err := repo.MarkProcessed(ctx, msg.EventID, p.clock.Now()); err != nil {
			return published, err
		}
		published++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return published, nil
}

func (p *Publisher) publishOne(ctx context.Context, msg *models.OutboxMessage) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(ctx, msg.EventID.String(), msg.AggregateID, msg.EventType, msg.Payload, msg.OccurredAt)
	})
	return err
}

// reschedule pushes the event's next attempt out with capped exponential
// backoff. The row is never dropped; stuck events keep retrying and are
// surfaced through warn logs once their attempt count grows.
func (p *Publisher) reschedule(ctx context.Context, repo repository.OutboxRepository, msg *models.OutboxMessage, cause error) {
	attempts := msg.Attempts + 1
	next := p.clock.Now().Add(retryDelay(attempts))

	level := slog.LevelInfo
	if attempts > attemptWarnOver {
		level = slog.LevelWarn
	}
	p.logger.Log(ctx, level, "event publish failed, rescheduled",
		"event_id", msg.EventID,
		"event_type", msg.EventType,
		"attempts", attempts,
		"next_attempt_at", next,
		"error", cause,
	)
	if errors.Is(cause, gobreaker.ErrOpenState) {
		p.logger.Warn("circuit breaker open, deferring outbox drain")
	}

	if err := repo.MarkFailed(ctx, msg.EventID, attempts, next, cause.Error()); err != nil {
		p.logger.Error("failed to reschedule outbox event",
			"event_id", msg.EventID,
			"error", err,
		)
	}
}

// retryDelay is min(60s, 1s * 2^min(attempts, 10)) plus jitter.
func retryDelay(attempts int) time.Duration {
	shift := attempts
	if shift > retryShiftMax {
		shift = retryShiftMax
	}
	delay := retryBase << shift
	if delay > retryCap {
		delay = retryCap
	}
	return delay + time.Duration(rand.Int63n(int64(retryJitter)))
}
