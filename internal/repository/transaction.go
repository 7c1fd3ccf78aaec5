package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/models"
)

// TransactionRepository defines the interface for the transaction ledger
// store. Rows are immutable apart from the reversed flag.
type TransactionRepository interface {
	GetByReference(ctx context.Context, referenceID string) (*models.PersistedTransaction, error)
	GetByRelatedReference(ctx context.Context, relatedReferenceID string) (*models.PersistedTransaction, error)
	Add(ctx context.Context, tx *models.PersistedTransaction) error
	ListByAccount(ctx context.Context, accountID string) ([]*models.PersistedTransaction, error)
	MarkReversed(ctx context.Context, referenceID, reversalReferenceID string) error
}

type transactionRepository struct {
	db db.DBTX
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(dbtx db.DBTX) TransactionRepository {
	return &transactionRepository{db: dbtx}
}

const transactionColumns = `
	reference_id, transaction_id, account_id, operation, amount, currency,
	status, balance_after, reserved_balance_after, available_balance_after,
	timestamp, error_message, target_account_id, related_reference_id,
	is_reversed, reversed_by_reference_id`

// GetByReference retrieves the stored outcome for an idempotency key
func (r *transactionRepository) GetByReference(ctx context.Context, referenceID string) (*models.PersistedTransaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE reference_id = $1`

	return r.scanTransaction(r.db.QueryRowContext(ctx, query, referenceID))
}

// GetByRelatedReference retrieves the reversal row pointing at the given
// original. Captures also carry a related reference, so the lookup filters
// on the operation.
func (r *transactionRepository) GetByRelatedReference(ctx context.Context, relatedReferenceID string) (*models.PersistedTransaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE related_reference_id = $1 AND operation = 'reversal'
		ORDER BY timestamp
		LIMIT 1`

	return r.scanTransaction(r.db.QueryRowContext(ctx, query, relatedReferenceID))
}

// Add inserts the immutable outcome row
func (r *transactionRepository) Add(ctx context.Context, tx *models.PersistedTransaction) error {
	query := `
		INSERT INTO transactions (
			reference_id, transaction_id, account_id, operation, amount, currency,
			status, balance_after, reserved_balance_after, available_balance_after,
			timestamp, error_message, target_account_id, related_reference_id,
			is_reversed, reversed_by_reference_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.ExecContext(ctx, query,
		tx.ReferenceID,
		tx.TransactionID,
		tx.AccountID,
		tx.Operation,
		tx.Amount,
		tx.Currency,
		tx.Status,
		tx.BalanceAfter,
		tx.ReservedBalanceAfter,
		tx.AvailableBalanceAfter,
		tx.Timestamp,
		tx.ErrorMessage,
		tx.TargetAccountID,
		tx.RelatedReferenceID,
		tx.IsReversed,
		tx.ReversedByReferenceID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// ListByAccount returns the account's transactions, newest first
func (r *transactionRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.PersistedTransaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 OR target_account_id = $1
		ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var result []*models.PersistedTransaction
	for rows.Next() {
		tx, err := scanTransactionRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return result, nil
}

// MarkReversed flags the original transaction and links the reversing
// reference. A row already flagged is left alone.
func (r *transactionRepository) MarkReversed(ctx context.Context, referenceID, reversalReferenceID string) error {
	query := `
		UPDATE transactions
		SET is_reversed = TRUE,
		    reversed_by_reference_id = $2
		WHERE reference_id = $1 AND is_reversed = FALSE`

	result, err := r.db.ExecContext(ctx, query, referenceID, reversalReferenceID)
	if err != nil {
		return fmt.Errorf("failed to mark transaction reversed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %q not reversible: %w", referenceID, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *transactionRepository) scanTransaction(row *sql.Row) (*models.PersistedTransaction, error) {
	tx, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction: %w", ErrNotFound)
		}
		return nil, err
	}
	return tx, nil
}

func scanTransactionRow(row rowScanner) (*models.PersistedTransaction, error) {
	var tx models.PersistedTransaction
	err := row.Scan(
		&tx.ReferenceID,
		&tx.TransactionID,
		&tx.AccountID,
		&tx.Operation,
		&tx.Amount,
		&tx.Currency,
		&tx.Status,
		&tx.BalanceAfter,
		&tx.ReservedBalanceAfter,
		&tx.AvailableBalanceAfter,
		&tx.Timestamp,
		&tx.ErrorMessage,
		&tx.TargetAccountID,
		&tx.RelatedReferenceID,
		&tx.IsReversed,
		&tx.ReversedByReferenceID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &tx, nil
}
