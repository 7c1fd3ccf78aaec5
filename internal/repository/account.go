// Package repository provides data access layer implementations for the
// transaction processing engine.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/domain"
)

// ErrNotFound indicates the requested entity was not found.
var ErrNotFound = errors.New("not found")

// AccountRepository defines the interface for account data access.
// GetManyForUpdate locks rows in the order the caller supplies and returns
// only the rows it found; the orchestration layer compares the requested and
// returned sets to fail fast naming any missing id.
type AccountRepository interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetForUpdate(ctx context.Context, accountID string) (*domain.Account, error)
	GetManyForUpdate(ctx context.Context, accountIDsInLockOrder []string) ([]*domain.Account, error)
	Add(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
}

// accountRepository implements AccountRepository
type accountRepository struct {
	db db.DBTX
}

// NewAccountRepository creates a new AccountRepository over a connection or
// an open transaction.
func NewAccountRepository(dbtx db.DBTX) AccountRepository {
	return &accountRepository{db: dbtx}
}

const accountColumns = `
	account_id, client_id, currency, status,
	balance, reserved_balance, credit_limit, ledger_sequence,
	created_at, updated_at`

// Get retrieves an account without locking it
func (r *accountRepository) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts
		WHERE account_id = $1`

	return r.scanAccount(r.db.QueryRowContext(ctx, query, accountID))
}

// GetForUpdate retrieves an account holding an exclusive row-level lock for
// the remainder of the enclosing transaction.
func (r *accountRepository) GetForUpdate(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE`

	return r.scanAccount(r.db.QueryRowContext(ctx, query, accountID))
}

// GetManyForUpdate locks each account in the given order, one statement per
// id so the lock acquisition order matches the caller's deterministic sort.
// Ids that do not exist are omitted from the result, not reported as errors.
func (r *accountRepository) GetManyForUpdate(ctx context.Context, accountIDsInLockOrder []string) ([]*domain.Account, error) {
	accounts := make([]*domain.Account, 0, len(accountIDsInLockOrder))
	for _, id := range accountIDsInLockOrder {
		account, err := r.GetForUpdate(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Add inserts a new account row
func (r *accountRepository) Add(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (
			account_id, client_id, currency, status,
			balance, reserved_balance, credit_limit, ledger_sequence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		account.AccountID,
		account.ClientID,
		account.Currency,
		account.Status,
		account.Balance,
		account.ReservedBalance,
		account.CreditLimit,
		account.LedgerSequence,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// Update persists the mutated aggregate state back to its row
func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET balance = $2,
		    reserved_balance = $3,
		    credit_limit = $4,
		    status = $5,
		    ledger_sequence = $6,
		    updated_at = NOW()
		WHERE account_id = $1`

	result, err := r.db.ExecContext(ctx, query,
		account.AccountID,
		account.Balance,
		account.ReservedBalance,
		account.CreditLimit,
		account.Status,
		account.LedgerSequence,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account %q: %w", account.AccountID, ErrNotFound)
	}

	return nil
}

func (r *accountRepository) scanAccount(row *sql.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.AccountID,
		&account.ClientID,
		&account.Currency,
		&account.Status,
		&account.Balance,
		&account.ReservedBalance,
		&account.CreditLimit,
		&account.LedgerSequence,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	return &account, nil
}
