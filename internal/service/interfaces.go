package service

import (
	"context"

	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/models"
)

// TransactionProcessor executes transaction requests synchronously.
type TransactionProcessor interface {
	Process(ctx context.Context, req *models.TransactionRequest) (*models.TransactionResult, error)
}

// TransactionEnqueuer accepts transaction requests for asynchronous
// processing.
type TransactionEnqueuer interface {
	EnqueueTransaction(ctx context.Context, req *models.TransactionRequest) (*models.TransactionResult, error)
}

// AccountManager handles account creation and lookup.
type AccountManager interface {
	CreateAccount(ctx context.Context, req *models.CreateAccountRequest) (*models.AccountResponse, error)
	GetAccount(ctx context.Context, accountID string) (*models.AccountResponse, error)
}

// TransactionReader serves read-only transaction lookups.
type TransactionReader interface {
	GetTransactionByReference(ctx context.Context, referenceID string) (*models.PersistedTransaction, error)
	GetReversalOf(ctx context.Context, referenceID string) (*models.PersistedTransaction, error)
	ListAccountTransactions(ctx context.Context, accountID string) ([]*models.PersistedTransaction, error)
	ListAccountEvents(ctx context.Context, accountID string) ([]domain.AccountEvent, error)
}

// Ensure concrete types implement interfaces
var (
	_ TransactionProcessor = (*Processor)(nil)
	_ TransactionEnqueuer  = (*Enqueuer)(nil)
	_ AccountManager       = (*AccountService)(nil)
	_ TransactionReader    = (*QueryService)(nil)
)
