package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finvolt/ledgercore/internal/clock"
	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
	"github.com/finvolt/ledgercore/internal/repository/mocks"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestProcessor() *Processor {
	return &Processor{
		clock:  clock.Fixed{Instant: testNow},
		policy: DefaultRetryPolicy(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type testRepos struct {
	accounts     *mocks.MockAccountRepository
	transactions *mocks.MockTransactionRepository
	ledger       *mocks.MockLedgerRepository
	outbox       *mocks.MockOutboxRepository
}

func newTestRepos(t *testing.T) (testRepos, repoSet) {
	r := testRepos{
		accounts:     mocks.NewMockAccountRepository(t),
		transactions: mocks.NewMockTransactionRepository(t),
		ledger:       mocks.NewMockLedgerRepository(t),
		outbox:       mocks.NewMockOutboxRepository(t),
	}
	return r, repoSet{
		accounts:     r.accounts,
		transactions: r.transactions,
		ledger:       r.ledger,
		outbox:       r.outbox,
	}
}

func creditRequest() *models.TransactionRequest {
	return &models.TransactionRequest{
		Operation:   "credit",
		AccountID:   "acc-1",
		Amount:      500,
		Currency:    "USD",
		ReferenceID: "ref-1",
	}
}

func TestProcessor_ProcessLocked_Credit(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := creditRequest()

	account := domain.NewAccount("acc-1", "client-1", "USD", 1000, 0)

	repos.accounts.On("GetForUpdate", ctx, "acc-1").Return(account, nil)
	repos.transactions.On("GetByReference", ctx, "ref-1").Return(nil, repository.ErrNotFound)
	repos.ledger.On("Append", ctx, mock.AnythingOfType("domain.AccountEvent")).Return(nil)
	repos.accounts.On("Update", ctx, account).Return(nil)
	repos.transactions.On("Add", ctx, mock.MatchedBy(func(tx *models.PersistedTransaction) bool {
		return tx.Status == models.TransactionStatusSuccess &&
			tx.ReferenceID == "ref-1" &&
			tx.TransactionID == "ref-1-PROCESSED" &&
			tx.BalanceAfter == 1500
	})).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.MatchedBy(func(msg *models.OutboxMessage) bool {
		return msg.EventType == models.EventTransactionProcessed && msg.AggregateID == "acc-1"
	})).Return(nil)

	result, err := processor.processLocked(ctx, rs, req, domain.OperationCredit)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
	assert.Equal(t, "ref-1-PROCESSED", result.TransactionID)
	assert.Equal(t, int64(1500), result.Balance)
	assert.Equal(t, int64(1500), result.AvailableBalance)
	assert.Equal(t, int64(1500), account.Balance)
	assert.Equal(t, int64(1), account.LedgerSequence)
}

func TestProcessor_ProcessLocked_IdempotentReplay(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := creditRequest()

	account := domain.NewAccount("acc-1", "client-1", "USD", 1000, 0)
	existing := &models.PersistedTransaction{
		TransactionID: "ref-1-PROCESSED",
		ReferenceID:   "ref-1",
		Status:        models.TransactionStatusSuccess,
		BalanceAfter:  1500,
		Timestamp:     testNow,
	}

	repos.accounts.On("GetForUpdate", ctx, "acc-1").Return(account, nil)
	repos.transactions.On("GetByReference", ctx, "ref-1").Return(existing, nil)

	result, err := processor.processLocked(ctx, rs, req, domain.OperationCredit)

	require.NoError(t, err)
	assert.Equal(t, "ref-1-PROCESSED", result.TransactionID)
	assert.Equal(t, int64(1500), result.Balance)
	// The duplicate neither mutates the account nor writes anything.
	assert.Equal(t, int64(1000), account.Balance)
	repos.transactions.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	repos.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestProcessor_ProcessLocked_BusinessFailurePersisted(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := &models.TransactionRequest{
		Operation:   "debit",
		AccountID:   "acc-1",
		Amount:      2000,
		Currency:    "USD",
		ReferenceID: "ref-2",
	}

	account := domain.NewAccount("acc-1", "client-1", "USD", 1000, 0)

	repos.accounts.On("GetForUpdate", ctx, "acc-1").Return(account, nil)
	repos.transactions.On("GetByReference", ctx, "ref-2").Return(nil, repository.ErrNotFound)
	repos.transactions.On("Add", ctx, mock.MatchedBy(func(tx *models.PersistedTransaction) bool {
		return tx.Status == models.TransactionStatusFailed &&
			tx.BalanceAfter == 1000 &&
			tx.ErrorMessage != ""
	})).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.Anything).Return(nil)

	result, err := processor.processLocked(ctx, rs, req, domain.OperationDebit)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.Equal(t, int64(1000), account.Balance)
	repos.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	repos.accounts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestProcessor_ProcessLocked_AccountNotFound(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := creditRequest()

	repos.accounts.On("GetForUpdate", ctx, "acc-1").Return(nil, repository.ErrNotFound)
	repos.transactions.On("Add", ctx, mock.MatchedBy(func(tx *models.PersistedTransaction) bool {
		return tx.Status == models.TransactionStatusFailed
	})).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.Anything).Return(nil)

	result, err := processor.processLocked(ctx, rs, req, domain.OperationCredit)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "not found")
}

func TestProcessor_ProcessLocked_Transfer(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := &models.TransactionRequest{
		Operation:       "transfer",
		AccountID:       "acc-b",
		TargetAccountID: "acc-a",
		Amount:          300,
		Currency:        "USD",
		ReferenceID:     "ref-3",
	}

	source := domain.NewAccount("acc-b", "client-1", "USD", 1000, 0)
	dest := domain.NewAccount("acc-a", "client-2", "USD", 200, 0)

	// Lock order is sorted by account id, independent of direction.
	repos.accounts.On("GetManyForUpdate", ctx, []string{"acc-a", "acc-b"}).
		Return([]*domain.Account{dest, source}, nil)
	repos.transactions.On("GetByReference", ctx, "ref-3").Return(nil, repository.ErrNotFound)
	repos.ledger.On("Append", ctx, mock.MatchedBy(func(e domain.AccountEvent) bool {
		return e.AccountID == "acc-b" && e.EventType == domain.EventTransferDebited
	})).Return(nil).Once()
	repos.ledger.On("Append", ctx, mock.MatchedBy(func(e domain.AccountEvent) bool {
		return e.AccountID == "acc-a" && e.EventType == domain.EventTransferCredited
	})).Return(nil).Once()
	repos.accounts.On("Update", ctx, source).Return(nil)
	repos.accounts.On("Update", ctx, dest).Return(nil)
	repos.transactions.On("Add", ctx, mock.MatchedBy(func(tx *models.PersistedTransaction) bool {
		return tx.Status == models.TransactionStatusSuccess && tx.AccountID == "acc-b"
	})).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.Anything).Return(nil)

	result, err := processor.processLocked(ctx, rs, req, domain.OperationTransfer)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
	assert.Equal(t, int64(700), source.Balance)
	assert.Equal(t, int64(500), dest.Balance)
}

func TestProcessor_ProcessLocked_TransferMissingAccount(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := &models.TransactionRequest{
		Operation:       "transfer",
		AccountID:       "acc-1",
		TargetAccountID: "acc-9",
		Amount:          300,
		Currency:        "USD",
		ReferenceID:     "ref-4",
	}

	source := domain.NewAccount("acc-1", "client-1", "USD", 1000, 0)

	repos.accounts.On("GetManyForUpdate", ctx, []string{"acc-1", "acc-9"}).
		Return([]*domain.Account{source}, nil)
	repos.accounts.On("GetForUpdate", ctx, "acc-1").Return(source, nil)
	repos.transactions.On("Add", ctx, mock.MatchedBy(func(tx *models.PersistedTransaction) bool {
		return tx.Status == models.TransactionStatusFailed
	})).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.Anything).Return(nil)

	result, err := processor.processLocked(ctx, rs, req, domain.OperationTransfer)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "acc-9")
	assert.Equal(t, int64(1000), source.Balance)
}

func TestProcessor_ProcessLocked_ReversalOfCredit(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := &models.TransactionRequest{
		Operation:          "reversal",
		AccountID:          "acc-1",
		Amount:             500,
		Currency:           "USD",
		ReferenceID:        "rev-1",
		RelatedReferenceID: "ref-1",
	}

	account := domain.NewAccount("acc-1", "client-1", "USD", 1500, 0)
	original := &models.PersistedTransaction{
		TransactionID: "ref-1-PROCESSED",
		ReferenceID:   "ref-1",
		AccountID:     "acc-1",
		Operation:     domain.OperationCredit,
		Amount:        500,
		Currency:      "USD",
		Status:        models.TransactionStatusSuccess,
	}

	repos.transactions.On("GetByReference", ctx, "rev-1").Return(nil, repository.ErrNotFound)
	repos.transactions.On("GetByReference", ctx, "ref-1").Return(original, nil)
	repos.accounts.On("GetManyForUpdate", ctx, []string{"acc-1"}).
		Return([]*domain.Account{account}, nil)
	repos.ledger.On("Append", ctx, mock.MatchedBy(func(e domain.AccountEvent) bool {
		return e.EventType == domain.EventReversed && e.RelatedReferenceID == "ref-1"
	})).Return(nil)
	repos.accounts.On("Update", ctx, account).Return(nil)
	repos.transactions.On("MarkReversed", ctx, "ref-1", "rev-1").Return(nil)
	repos.transactions.On("Add", ctx, mock.MatchedBy(func(tx *models.PersistedTransaction) bool {
		return tx.Status == models.TransactionStatusSuccess &&
			tx.Operation == domain.OperationReversal &&
			tx.RelatedReferenceID == "ref-1"
	})).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.Anything).Return(nil)

	result, err := processor.processLocked(ctx, rs, req, domain.OperationReversal)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
	assert.Equal(t, int64(1000), account.Balance)
}

func TestProcessor_ProcessLocked_ReversalAlreadyReversed(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := &models.TransactionRequest{
		Operation:          "reversal",
		AccountID:          "acc-1",
		Amount:             500,
		Currency:           "USD",
		ReferenceID:        "rev-2",
		RelatedReferenceID: "ref-1",
	}

	account := domain.NewAccount("acc-1", "client-1", "USD", 1000, 0)
	original := &models.PersistedTransaction{
		ReferenceID: "ref-1",
		AccountID:   "acc-1",
		Operation:   domain.OperationCredit,
		Amount:      500,
		Status:      models.TransactionStatusSuccess,
		IsReversed:  true,
	}

	repos.transactions.On("GetByReference", ctx, "rev-2").Return(nil, repository.ErrNotFound)
	repos.transactions.On("GetByReference", ctx, "ref-1").Return(original, nil)
	repos.accounts.On("GetForUpdate", ctx, "acc-1").Return(account, nil)
	repos.transactions.On("Add", ctx, mock.MatchedBy(func(tx *models.PersistedTransaction) bool {
		return tx.Status == models.TransactionStatusFailed
	})).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.Anything).Return(nil)

	result, err := processor.processLocked(ctx, rs, req, domain.OperationReversal)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "already reversed")
	assert.Equal(t, int64(1000), account.Balance)
	repos.transactions.AssertNotCalled(t, "MarkReversed", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessor_ProcessLocked_ReversalOfTransfer(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := &models.TransactionRequest{
		Operation:          "reversal",
		AccountID:          "acc-1",
		Amount:             300,
		Currency:           "USD",
		ReferenceID:        "rev-3",
		RelatedReferenceID: "ref-3",
	}

	origin := domain.NewAccount("acc-1", "client-1", "USD", 700, 0)
	target := domain.NewAccount("acc-2", "client-2", "USD", 500, 0)
	original := &models.PersistedTransaction{
		ReferenceID:     "ref-3",
		AccountID:       "acc-1",
		TargetAccountID: "acc-2",
		Operation:       domain.OperationTransfer,
		Amount:          300,
		Currency:        "USD",
		Status:          models.TransactionStatusSuccess,
	}

	repos.transactions.On("GetByReference", ctx, "rev-3").Return(nil, repository.ErrNotFound)
	repos.transactions.On("GetByReference", ctx, "ref-3").Return(original, nil)
	repos.accounts.On("GetManyForUpdate", ctx, []string{"acc-1", "acc-2"}).
		Return([]*domain.Account{origin, target}, nil)
	repos.ledger.On("Append", ctx, mock.MatchedBy(func(e domain.AccountEvent) bool {
		return e.AccountID == "acc-1" && e.EventType == domain.EventReversed
	})).Return(nil).Once()
	repos.ledger.On("Append", ctx, mock.MatchedBy(func(e domain.AccountEvent) bool {
		return e.AccountID == "acc-2" && e.EventType == domain.EventReversalApplied
	})).Return(nil).Once()
	repos.accounts.On("Update", ctx, origin).Return(nil)
	repos.accounts.On("Update", ctx, target).Return(nil)
	repos.transactions.On("MarkReversed", ctx, "ref-3", "rev-3").Return(nil)
	repos.transactions.On("Add", ctx, mock.Anything).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.Anything).Return(nil)

	result, err := processor.processLocked(ctx, rs, req, domain.OperationReversal)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
	// Money flows back: the target is debited and the origin credited.
	assert.Equal(t, int64(1000), origin.Balance)
	assert.Equal(t, int64(200), target.Balance)
}

// stubTransactor fails the first conflicts calls with a serialization
// failure, then runs fn over the given stores.
type stubTransactor struct {
	conflicts int
	calls     int
	rs        repoSet
}

func (s *stubTransactor) InSerializableTx(_ context.Context, fn func(r repoSet) error) error {
	s.calls++
	if s.calls <= s.conflicts {
		return &pq.Error{Code: "40001"}
	}
	return fn(s.rs)
}

func TestProcessor_Process_RetriesOnConflictThenSucceeds(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := creditRequest()

	st := &stubTransactor{conflicts: 1, rs: rs}
	processor.stores = rs
	processor.tx = st
	processor.policy = RetryPolicy{MaxAttempts: 3}

	account := domain.NewAccount("acc-1", "client-1", "USD", 1000, 0)

	repos.transactions.On("GetByReference", ctx, "ref-1").Return(nil, repository.ErrNotFound)
	repos.accounts.On("GetForUpdate", ctx, "acc-1").Return(account, nil)
	repos.ledger.On("Append", ctx, mock.AnythingOfType("domain.AccountEvent")).Return(nil)
	repos.accounts.On("Update", ctx, account).Return(nil)
	repos.transactions.On("Add", ctx, mock.MatchedBy(func(tx *models.PersistedTransaction) bool {
		return tx.Status == models.TransactionStatusSuccess && tx.BalanceAfter == 1500
	})).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.Anything).Return(nil)

	result, err := processor.Process(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, result.Status)
	// One conflicted attempt, one successful one.
	assert.Equal(t, 2, st.calls)
	assert.Equal(t, int64(1500), account.Balance)
}

func TestProcessor_Process_ConcurrencyRetryExhausted(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := creditRequest()

	st := &stubTransactor{conflicts: 3, rs: rs}
	processor.stores = rs
	processor.tx = st
	processor.policy = RetryPolicy{MaxAttempts: 3}

	account := domain.NewAccount("acc-1", "client-1", "USD", 1000, 0)

	repos.transactions.On("GetByReference", ctx, "ref-1").Return(nil, repository.ErrNotFound)
	repos.accounts.On("GetForUpdate", ctx, "acc-1").Return(account, nil)
	repos.transactions.On("Add", ctx, mock.MatchedBy(func(tx *models.PersistedTransaction) bool {
		return tx.Status == models.TransactionStatusFailed &&
			tx.ErrorMessage == domain.ErrCodeRetryExhausted &&
			tx.BalanceAfter == 1000
	})).Return(nil)
	repos.outbox.On("Enqueue", ctx, mock.Anything).Return(nil)

	result, err := processor.Process(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, result.Status)
	assert.Equal(t, domain.ErrCodeRetryExhausted, result.ErrorMessage)
	// Every attempt conflicted; the terminal row commits in its own scope.
	assert.Equal(t, 4, st.calls)
	assert.Equal(t, int64(1000), account.Balance)
	repos.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestProcessor_Process_NonConflictErrorStopsRetrying(t *testing.T) {
	processor := newTestProcessor()
	repos, rs := newTestRepos(t)
	ctx := context.Background()
	req := creditRequest()

	st := &stubTransactor{rs: rs}
	processor.stores = rs
	processor.tx = st
	processor.policy = RetryPolicy{MaxAttempts: 3}

	infraErr := errors.New("connection reset")
	repos.transactions.On("GetByReference", ctx, "ref-1").Return(nil, repository.ErrNotFound)
	repos.accounts.On("GetForUpdate", ctx, "acc-1").Return(nil, infraErr)

	result, err := processor.Process(ctx, req)

	require.ErrorIs(t, err, infraErr)
	assert.Nil(t, result)
	assert.Equal(t, 1, st.calls)
}

func TestImpactedIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, impactedIDs("b", "a"))
	assert.Equal(t, []string{"a"}, impactedIDs("a", "a"))
	assert.Equal(t, []string{"a"}, impactedIDs("a", ""))
	assert.Equal(t, []string{"x"}, impactedIDs(" x "))
}

func TestMissingID(t *testing.T) {
	locked := []*domain.Account{{AccountID: "a"}}

	assert.Equal(t, "", missingID([]string{"a"}, locked))
	assert.Equal(t, "b", missingID([]string{"a", "b"}, locked))
}
