package service

import (
	"context"
	"errors"

	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
)

// QueryService serves read-only lookups over processed transactions and the
// ledger. It never takes locks.
type QueryService struct {
	transactions repository.TransactionRepository
	ledger       repository.LedgerRepository
}

// NewQueryService creates a new QueryService
func NewQueryService(transactions repository.TransactionRepository, ledger repository.LedgerRepository) *QueryService {
	return &QueryService{
		transactions: transactions,
		ledger:       ledger,
	}
}

// GetTransactionByReference returns the stored outcome for a reference id.
func (q *QueryService) GetTransactionByReference(ctx context.Context, referenceID string) (*models.PersistedTransaction, error) {
	tx, err := q.transactions.GetByReference(ctx, referenceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Errorf(domain.ErrCodeOriginalNotFound, "transaction %q not found", referenceID)
		}
		return nil, err
	}
	return tx, nil
}

// GetReversalOf returns the transaction that reversed the given reference
// id, if one exists.
func (q *QueryService) GetReversalOf(ctx context.Context, referenceID string) (*models.PersistedTransaction, error) {
	tx, err := q.transactions.GetByRelatedReference(ctx, referenceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Errorf(domain.ErrCodeOriginalNotFound, "no transaction references %q", referenceID)
		}
		return nil, err
	}
	return tx, nil
}

// ListAccountTransactions returns the transactions recorded against an
// account, newest first.
func (q *QueryService) ListAccountTransactions(ctx context.Context, accountID string) ([]*models.PersistedTransaction, error) {
	return q.transactions.ListByAccount(ctx, accountID)
}

// ListAccountEvents returns the ledger entries for an account in sequence
// order.
func (q *QueryService) ListAccountEvents(ctx context.Context, accountID string) ([]domain.AccountEvent, error) {
	return q.ledger.ListByAccount(ctx, accountID)
}
