package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/domain"
)

// LedgerRepository appends to the immutable per-account event log. The
// unique (account_id, sequence) constraint is the audit trail's backstop:
// a duplicate sequence is a bug upstream, never silently absorbed.
type LedgerRepository interface {
	Append(ctx context.Context, event domain.AccountEvent) error
	ListByAccount(ctx context.Context, accountID string) ([]domain.AccountEvent, error)
}

type ledgerRepository struct {
	db db.DBTX
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(dbtx db.DBTX) LedgerRepository {
	return &ledgerRepository{db: dbtx}
}

// Append inserts one ledger entry
func (r *ledgerRepository) Append(ctx context.Context, event domain.AccountEvent) error {
	metadata, err := json.Marshal(metadataOrEmpty(event.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO account_events (
			account_id, sequence, event_type, amount, currency,
			reference_id, related_reference_id, target_account_id,
			occurred_at, balance_after, reserved_balance_after,
			available_balance_after, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, query,
		event.AccountID,
		event.Sequence,
		event.EventType,
		event.Amount,
		event.Currency,
		event.ReferenceID,
		event.RelatedReferenceID,
		event.TargetAccountID,
		event.OccurredAt,
		event.BalanceAfter,
		event.ReservedBalanceAfter,
		event.AvailableBalanceAfter,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to append account event: %w", err)
	}

	return nil
}

// ListByAccount returns the account's ledger history in sequence order
func (r *ledgerRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.AccountEvent, error) {
	query := `
		SELECT account_id, sequence, event_type, amount, currency,
		       reference_id, related_reference_id, target_account_id,
		       occurred_at, balance_after, reserved_balance_after,
		       available_balance_after, metadata
		FROM account_events
		WHERE account_id = $1
		ORDER BY sequence`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account events: %w", err)
	}
	defer rows.Close()

	var events []domain.AccountEvent
	for rows.Next() {
		var event domain.AccountEvent
		var metadata []byte
		err := rows.Scan(
			&event.AccountID,
			&event.Sequence,
			&event.EventType,
			&event.Amount,
			&event.Currency,
			&event.ReferenceID,
			&event.RelatedReferenceID,
			&event.TargetAccountID,
			&event.OccurredAt,
			&event.BalanceAfter,
			&event.ReservedBalanceAfter,
			&event.AvailableBalanceAfter,
			&metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account event: %w", err)
		}
		if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account events: %w", err)
	}

	return events, nil
}

func metadataOrEmpty(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}
	return metadata
}
