// Package service implements the transaction orchestration protocol: the
// retry-and-lock loop that loads accounts, applies operations, persists
// outcomes and stages outbound events in one atomic commit.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/finvolt/ledgercore/internal/clock"
	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
)

// Processor applies money-movement operations with idempotency, serializable
// isolation and deterministic multi-account lock ordering. Outcomes are
// deterministic per reference id: repeated calls with the same reference id
// return the stored outcome.
type Processor struct {
	stores repoSet
	tx     transactor
	clock  clock.Clock
	policy RetryPolicy
	logger *slog.Logger
}

// NewProcessor creates a new Processor
func NewProcessor(database *db.DB, clk clock.Clock, policy RetryPolicy, lockTimeout time.Duration, logger *slog.Logger) *Processor {
	return &Processor{
		stores: newRepoSet(database),
		tx:     &sqlTransactor{db: database, lockTimeout: lockTimeout},
		clock:  clk,
		policy: policy,
		logger: logger,
	}
}

// transactor opens one serializable transaction scope and runs fn over
// stores bound to it, committing when fn returns nil. The retry loop is
// driven through this seam so it can be exercised with an injected conflict
// instead of a live database.
type transactor interface {
	InSerializableTx(ctx context.Context, fn func(r repoSet) error) error
}

type sqlTransactor struct {
	db          *db.DB
	lockTimeout time.Duration
}

func (t *sqlTransactor) InSerializableTx(ctx context.Context, fn func(r repoSet) error) error {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback error is not critical in defer
	}()

	if t.lockTimeout > 0 {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, timeout); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(newRepoSet(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// repoSet bundles the stores constructed over one transaction scope.
type repoSet struct {
	accounts     repository.AccountRepository
	transactions repository.TransactionRepository
	ledger       repository.LedgerRepository
	outbox       repository.OutboxRepository
}

func newRepoSet(dbtx db.DBTX) repoSet {
	return repoSet{
		accounts:     repository.NewAccountRepository(dbtx),
		transactions: repository.NewTransactionRepository(dbtx),
		ledger:       repository.NewLedgerRepository(dbtx),
		outbox:       repository.NewOutboxRepository(dbtx),
	}
}

// Process executes one transaction request and returns its outcome. Business
// failures come back as a failed outcome, not an error; only validation
// problems and infrastructure faults are returned as errors.
func (p *Processor) Process(ctx context.Context, req *models.TransactionRequest) (*models.TransactionResult, error) {
	if err := ValidateTransactionRequest(req); err != nil {
		return nil, err
	}

	op, err := domain.ParseOperation(req.Operation)
	if err != nil {
		return nil, err
	}

	// Fast idempotency check: the common duplicate submission returns the
	// stored outcome without taking any lock. The authoritative re-check
	// happens again under lock inside each attempt.
	existing, err := p.stores.transactions.GetByReference(ctx, req.ReferenceID)
	if err == nil {
		return models.ResultFromPersisted(existing), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		result, err := p.runAttempt(ctx, req, op)
		if err == nil {
			return result, nil
		}
		if !db.IsConcurrencyConflict(err) {
			return nil, err
		}

		p.logger.Warn("concurrency conflict, retrying",
			"reference_id", req.ReferenceID,
			"attempt", attempt,
			"error", err,
		)

		if attempt == p.policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.policy.Delay(attempt)):
		}
	}

	return p.persistExhausted(ctx, req, op)
}

// runAttempt is one pass of the retry loop: a serializable transaction scope
// around processLocked. Locks are held for at most one attempt and never
// across a backoff sleep.
func (p *Processor) runAttempt(ctx context.Context, req *models.TransactionRequest, op domain.OperationType) (*models.TransactionResult, error) {
	var result *models.TransactionResult

	err := p.tx.InSerializableTx(ctx, func(r repoSet) error {
		res, err := p.processLocked(ctx, r, req, op)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// processLocked contains the core per-operation protocol, executed inside an
// open serializable transaction. Domain errors become a committed failed
// outcome rather than an error return.
func (p *Processor) processLocked(ctx context.Context, r repoSet, req *models.TransactionRequest, op domain.OperationType) (*models.TransactionResult, error) {
	now := p.clock.Now()

	var (
		persisted *models.PersistedTransaction
		replay    *models.TransactionResult
		err       error
	)

	switch op {
	case domain.OperationCredit, domain.OperationDebit, domain.OperationReserve, domain.OperationCapture:
		persisted, replay, err = p.processSingleAccount(ctx, r, req, op, now)
	case domain.OperationTransfer:
		persisted, replay, err = p.processTransfer(ctx, r, req, now)
	case domain.OperationReversal:
		persisted, replay, err = p.processReversal(ctx, r, req, now)
	default:
		return nil, domain.Errorf(domain.ErrCodeUnsupportedOperation, "unsupported operation %q", op)
	}

	if replay != nil {
		return replay, nil
	}

	if err != nil {
		domErr := domain.AsDomainError(err)
		if domErr == nil {
			return nil, err
		}
		// Business rule failure: captured as data and committed, never
		// retried, never surfaced as a transport error.
		persisted, err = p.persistFailure(ctx, r, req, op, now, domErr.Message)
		if err != nil {
			return nil, err
		}
		return models.ResultFromPersisted(persisted), nil
	}

	if err := r.transactions.Add(ctx, persisted); err != nil {
		return nil, err
	}
	if err := p.stageProcessedEvent(ctx, r, persisted, req, now); err != nil {
		return nil, err
	}

	return models.ResultFromPersisted(persisted), nil
}

// processSingleAccount handles credit, debit, reserve and capture: one
// exclusive row lock, an authoritative idempotency re-check, then the
// aggregate mutation.
func (p *Processor) processSingleAccount(
	ctx context.Context,
	r repoSet,
	req *models.TransactionRequest,
	op domain.OperationType,
	now time.Time,
) (*models.PersistedTransaction, *models.TransactionResult, error) {
	account, err := r.accounts.GetForUpdate(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, domain.Errorf(domain.ErrCodeAccountNotFound, "account %q not found", req.AccountID)
		}
		return nil, nil, err
	}

	if replay, err := p.recheckIdempotency(ctx, r, req.ReferenceID); replay != nil || err != nil {
		return nil, replay, err
	}

	if err := account.EnsureActive(); err != nil {
		return nil, nil, err
	}
	if err := account.EnsureCurrency(req.Currency); err != nil {
		return nil, nil, err
	}

	var eventType domain.EventType
	switch op {
	case domain.OperationCredit:
		eventType = domain.EventCredited
		err = account.Credit(req.Amount)
	case domain.OperationDebit:
		eventType = domain.EventDebited
		err = account.Debit(req.Amount)
	case domain.OperationReserve:
		eventType = domain.EventReserved
		err = account.Reserve(req.Amount)
	case domain.OperationCapture:
		eventType = domain.EventCaptured
		err = account.Capture(req.Amount)
	}
	if err != nil {
		return nil, nil, err
	}

	opReq := p.operationRequest(req, op, account.AccountID)
	ledgerEvent := account.BuildLedgerEvent(opReq, now, eventType)

	if err := r.ledger.Append(ctx, ledgerEvent); err != nil {
		return nil, nil, err
	}
	if err := r.accounts.Update(ctx, account); err != nil {
		return nil, nil, err
	}

	return p.successRow(req, op, account, now), nil, nil
}

// processTransfer locks both accounts in lexical id order, debits the source
// and credits the destination.
func (p *Processor) processTransfer(
	ctx context.Context,
	r repoSet,
	req *models.TransactionRequest,
	now time.Time,
) (*models.PersistedTransaction, *models.TransactionResult, error) {
	ids := impactedIDs(req.AccountID, req.TargetAccountID)

	locked, err := r.accounts.GetManyForUpdate(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	if missing := missingID(ids, locked); missing != "" {
		return nil, nil, domain.Errorf(domain.ErrCodeAccountNotFound, "account %q not found", missing)
	}

	if replay, err := p.recheckIdempotency(ctx, r, req.ReferenceID); replay != nil || err != nil {
		return nil, replay, err
	}

	source := accountByID(locked, strings.TrimSpace(req.AccountID))
	dest := accountByID(locked, strings.TrimSpace(req.TargetAccountID))

	for _, account := range []*domain.Account{source, dest} {
		if err := account.EnsureActive(); err != nil {
			return nil, nil, err
		}
		if err := account.EnsureCurrency(req.Currency); err != nil {
			return nil, nil, err
		}
	}

	if err := source.Debit(req.Amount); err != nil {
		return nil, nil, err
	}
	if err := dest.Credit(req.Amount); err != nil {
		return nil, nil, err
	}

	opReq := p.operationRequest(req, domain.OperationTransfer, source.AccountID)
	sourceEvent := source.BuildLedgerEvent(opReq, now, domain.EventTransferDebited)

	opReqDest := opReq
	opReqDest.AccountID = dest.AccountID
	destEvent := dest.BuildLedgerEvent(opReqDest, now, domain.EventTransferCredited)

	if err := r.ledger.Append(ctx, sourceEvent); err != nil {
		return nil, nil, err
	}
	if err := r.ledger.Append(ctx, destEvent); err != nil {
		return nil, nil, err
	}
	if err := r.accounts.Update(ctx, source); err != nil {
		return nil, nil, err
	}
	if err := r.accounts.Update(ctx, dest); err != nil {
		return nil, nil, err
	}

	return p.successRow(req, domain.OperationTransfer, source, now), nil, nil
}

// processReversal looks up the original transaction, locks every impacted
// account in sorted order and applies the structural inverse of the original
// operation.
func (p *Processor) processReversal(
	ctx context.Context,
	r repoSet,
	req *models.TransactionRequest,
	now time.Time,
) (*models.PersistedTransaction, *models.TransactionResult, error) {
	if replay, err := p.recheckIdempotency(ctx, r, req.ReferenceID); replay != nil || err != nil {
		return nil, replay, err
	}

	original, err := r.transactions.GetByReference(ctx, req.RelatedReferenceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, domain.Errorf(domain.ErrCodeOriginalNotFound, "original transaction %q not found", req.RelatedReferenceID)
		}
		return nil, nil, err
	}
	if original.IsReversed {
		return nil, nil, domain.Errorf(domain.ErrCodeAlreadyReversed, "original transaction %q is already reversed", req.RelatedReferenceID)
	}

	ids := impactedIDs(original.AccountID, original.TargetAccountID)
	if original.Operation != domain.OperationTransfer {
		ids = impactedIDs(original.AccountID)
	}

	locked, err := r.accounts.GetManyForUpdate(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	if missing := missingID(ids, locked); missing != "" {
		return nil, nil, domain.Errorf(domain.ErrCodeAccountNotFound, "account %q not found", missing)
	}

	origin := accountByID(locked, original.AccountID)
	if err := origin.EnsureActive(); err != nil {
		return nil, nil, err
	}
	if err := origin.EnsureCurrency(original.Currency); err != nil {
		return nil, nil, err
	}

	var target *domain.Account
	if original.Operation == domain.OperationTransfer {
		target = accountByID(locked, original.TargetAccountID)
		if target == nil {
			return nil, nil, domain.Errorf(domain.ErrCodeUnsupportedReversal, "original transfer %q has no target account", original.ReferenceID)
		}
		if err := target.EnsureActive(); err != nil {
			return nil, nil, err
		}
		if err := target.EnsureCurrency(original.Currency); err != nil {
			return nil, nil, err
		}
	}

	switch original.Operation {
	case domain.OperationCredit:
		err = origin.Debit(original.Amount)
	case domain.OperationDebit:
		err = origin.Credit(original.Amount)
	case domain.OperationReserve:
		err = origin.ReleaseReservation(original.Amount)
	case domain.OperationCapture:
		err = origin.RefundCapture(original.Amount)
	case domain.OperationTransfer:
		if err = target.Debit(original.Amount); err == nil {
			err = origin.Credit(original.Amount)
		}
	default:
		err = domain.Errorf(domain.ErrCodeUnsupportedReversal, "reversal not supported for operation %q", original.Operation)
	}
	if err != nil {
		return nil, nil, err
	}

	opReq := domain.OperationRequest{
		Operation:          domain.OperationReversal,
		AccountID:          origin.AccountID,
		Amount:             original.Amount,
		Currency:           original.Currency,
		ReferenceID:        req.ReferenceID,
		TargetAccountID:    original.TargetAccountID,
		RelatedReferenceID: original.ReferenceID,
		Metadata:           req.Metadata,
	}

	originEvent := origin.BuildLedgerEvent(opReq, now, domain.EventReversed)
	if err := r.ledger.Append(ctx, originEvent); err != nil {
		return nil, nil, err
	}
	if err := r.accounts.Update(ctx, origin); err != nil {
		return nil, nil, err
	}

	if target != nil {
		opReqTarget := opReq
		opReqTarget.AccountID = target.AccountID
		targetEvent := target.BuildLedgerEvent(opReqTarget, now, domain.EventReversalApplied)
		if err := r.ledger.Append(ctx, targetEvent); err != nil {
			return nil, nil, err
		}
		if err := r.accounts.Update(ctx, target); err != nil {
			return nil, nil, err
		}
	}

	if err := r.transactions.MarkReversed(ctx, original.ReferenceID, req.ReferenceID); err != nil {
		return nil, nil, err
	}

	persisted := &models.PersistedTransaction{
		TransactionID:         transactionID(req.ReferenceID),
		ReferenceID:           req.ReferenceID,
		AccountID:             origin.AccountID,
		Operation:             domain.OperationReversal,
		Amount:                original.Amount,
		Currency:              origin.Currency,
		Status:                models.TransactionStatusSuccess,
		BalanceAfter:          origin.Balance,
		ReservedBalanceAfter:  origin.ReservedBalance,
		AvailableBalanceAfter: origin.AvailableBalance(),
		Timestamp:             now,
		TargetAccountID:       original.TargetAccountID,
		RelatedReferenceID:    original.ReferenceID,
	}

	return persisted, nil, nil
}

// recheckIdempotency is the authoritative duplicate check, run after the
// row locks are held so racing submissions of one reference id cannot both
// apply.
func (p *Processor) recheckIdempotency(ctx context.Context, r repoSet, referenceID string) (*models.TransactionResult, error) {
	existing, err := r.transactions.GetByReference(ctx, referenceID)
	if err == nil {
		return models.ResultFromPersisted(existing), nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

// persistFailure writes the failed outcome row together with its failed
// integration event, snapshotting the account's unchanged balances.
func (p *Processor) persistFailure(
	ctx context.Context,
	r repoSet,
	req *models.TransactionRequest,
	op domain.OperationType,
	now time.Time,
	errorMessage string,
) (*models.PersistedTransaction, error) {
	var balance, reserved, available int64
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))

	account, err := r.accounts.GetForUpdate(ctx, req.AccountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if account != nil {
		balance = account.Balance
		reserved = account.ReservedBalance
		available = account.AvailableBalance()
		currency = account.Currency
	}

	failed := &models.PersistedTransaction{
		TransactionID:         transactionID(req.ReferenceID),
		ReferenceID:           req.ReferenceID,
		AccountID:             req.AccountID,
		Operation:             op,
		Amount:                req.Amount,
		Currency:              currency,
		Status:                models.TransactionStatusFailed,
		BalanceAfter:          balance,
		ReservedBalanceAfter:  reserved,
		AvailableBalanceAfter: available,
		Timestamp:             now,
		ErrorMessage:          errorMessage,
		TargetAccountID:       req.TargetAccountID,
		RelatedReferenceID:    req.RelatedReferenceID,
	}

	if err := r.transactions.Add(ctx, failed); err != nil {
		return nil, err
	}
	if err := p.stageProcessedEvent(ctx, r, failed, req, now); err != nil {
		return nil, err
	}

	return failed, nil
}

// persistExhausted records the terminal failure after the retry budget is
// spent on concurrency conflicts.
func (p *Processor) persistExhausted(ctx context.Context, req *models.TransactionRequest, op domain.OperationType) (*models.TransactionResult, error) {
	p.logger.Error("retry budget exhausted on concurrency conflicts",
		"reference_id", req.ReferenceID,
		"attempts", p.policy.MaxAttempts,
	)

	var failed *models.PersistedTransaction

	err := p.tx.InSerializableTx(ctx, func(r repoSet) error {
		row, err := p.persistFailure(ctx, r, req, op, p.clock.Now(), domain.ErrCodeRetryExhausted)
		if err != nil {
			return err
		}
		failed = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	return models.ResultFromPersisted(failed), nil
}

// stageProcessedEvent serializes the integration event and stages it in the
// outbox within the same transaction as the state change it describes.
func (p *Processor) stageProcessedEvent(
	ctx context.Context,
	r repoSet,
	persisted *models.PersistedTransaction,
	req *models.TransactionRequest,
	now time.Time,
) error {
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	event := models.TransactionProcessedEvent{
		TransactionID:    persisted.TransactionID,
		ReferenceID:      persisted.ReferenceID,
		Operation:        strings.ToLower(strings.TrimSpace(req.Operation)),
		AccountID:        persisted.AccountID,
		TargetAccountID:  persisted.TargetAccountID,
		Amount:           persisted.Amount,
		Currency:         persisted.Currency,
		Status:           string(persisted.Status),
		Balance:          persisted.BalanceAfter,
		ReservedBalance:  persisted.ReservedBalanceAfter,
		AvailableBalance: persisted.AvailableBalanceAfter,
		Timestamp:        persisted.Timestamp,
		ErrorMessage:     persisted.ErrorMessage,
		Metadata:         metadata,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize integration event: %w", err)
	}

	return r.outbox.Enqueue(ctx, models.NewOutboxMessage(persisted.AccountID, models.EventTransactionProcessed, payload, now))
}

// successRow builds the persisted outcome for a completed single-account or
// transfer operation.
func (p *Processor) successRow(req *models.TransactionRequest, op domain.OperationType, account *domain.Account, now time.Time) *models.PersistedTransaction {
	return &models.PersistedTransaction{
		TransactionID:         transactionID(req.ReferenceID),
		ReferenceID:           req.ReferenceID,
		AccountID:             account.AccountID,
		Operation:             op,
		Amount:                req.Amount,
		Currency:              account.Currency,
		Status:                models.TransactionStatusSuccess,
		BalanceAfter:          account.Balance,
		ReservedBalanceAfter:  account.ReservedBalance,
		AvailableBalanceAfter: account.AvailableBalance(),
		Timestamp:             now,
		TargetAccountID:       req.TargetAccountID,
		RelatedReferenceID:    req.RelatedReferenceID,
	}
}

func (p *Processor) operationRequest(req *models.TransactionRequest, op domain.OperationType, accountID string) domain.OperationRequest {
	return domain.OperationRequest{
		Operation:          op,
		AccountID:          accountID,
		Amount:             req.Amount,
		Currency:           strings.ToUpper(strings.TrimSpace(req.Currency)),
		ReferenceID:        req.ReferenceID,
		TargetAccountID:    req.TargetAccountID,
		RelatedReferenceID: req.RelatedReferenceID,
		Metadata:           req.Metadata,
	}
}

// transactionID derives the stable transaction id for a reference.
func transactionID(referenceID string) string {
	return referenceID + "-PROCESSED"
}

// impactedIDs returns the sorted unique set of account ids an operation
// touches. Locking in this order gives a total order over accounts that
// prevents circular wait between any two multi-account operations.
func impactedIDs(ids ...string) []string {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)
	return unique
}

// missingID names the first requested id absent from the locked set. The
// store omits ids it cannot find instead of erroring, so the orchestrator
// compensates here.
func missingID(requested []string, locked []*domain.Account) string {
	have := make(map[string]struct{}, len(locked))
	for _, account := range locked {
		have[account.AccountID] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := have[id]; !ok {
			return id
		}
	}
	return ""
}

func accountByID(accounts []*domain.Account, accountID string) *domain.Account {
	for _, account := range accounts {
		if account.AccountID == accountID {
			return account
		}
	}
	return nil
}
