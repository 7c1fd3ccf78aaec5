// Package domain holds the pure account aggregate and its invariants.
// Nothing in this package performs I/O.
package domain

import (
	"strings"
	"time"
)

// AccountStatus represents the lifecycle state of an account
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
	AccountStatusBlocked  AccountStatus = "blocked"
)

// Account is the in-memory aggregate for a single account. All amounts are
// signed 64-bit integers in minor currency units. The invariant
// AvailableBalance() + ReservedBalance == Balance holds at all times; every
// mutator validates before writing any field, so a rejected mutation leaves
// the aggregate untouched.
type Account struct {
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
	AccountID       string        `db:"account_id"`
	ClientID        string        `db:"client_id"`
	Currency        string        `db:"currency"`
	Status          AccountStatus `db:"status"`
	Balance         int64         `db:"balance"`
	ReservedBalance int64         `db:"reserved_balance"`
	CreditLimit     int64         `db:"credit_limit"`
	LedgerSequence  int64         `db:"ledger_sequence"`
}

// NewAccount creates an active account with ledger sequence zero.
func NewAccount(accountID, clientID, currency string, initialBalance, creditLimit int64) *Account {
	return &Account{
		AccountID:       accountID,
		ClientID:        clientID,
		Currency:        strings.ToUpper(currency),
		Status:          AccountStatusActive,
		Balance:         initialBalance,
		ReservedBalance: 0,
		CreditLimit:     creditLimit,
		LedgerSequence:  0,
	}
}

// AvailableBalance is what may be freely debited or reserved. The credit
// limit is not part of it.
func (a *Account) AvailableBalance() int64 {
	return a.Balance - a.ReservedBalance
}

// EnsureActive fails unless the account is active.
func (a *Account) EnsureActive() error {
	if a.Status != AccountStatusActive {
		return Errorf(ErrCodeAccountNotActive, "account %q is not active (status=%s)", a.AccountID, a.Status)
	}
	return nil
}

// EnsureCurrency fails when the given code differs from the account currency.
// The comparison is case-insensitive.
func (a *Account) EnsureCurrency(currency string) error {
	if !strings.EqualFold(a.Currency, currency) {
		return Errorf(ErrCodeCurrencyMismatch, "currency mismatch for account %q: expected %q, got %q", a.AccountID, a.Currency, currency)
	}
	return nil
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount int64) error {
	if err := a.ensureMutable(amount); err != nil {
		return err
	}
	a.Balance += amount
	return nil
}

// Debit subtracts amount from the balance. The credit limit backs debits:
// the debit succeeds while available balance plus credit limit covers it.
// Reserved balance is untouched.
func (a *Account) Debit(amount int64) error {
	if err := a.ensureMutable(amount); err != nil {
		return err
	}
	if a.AvailableBalance()+a.CreditLimit < amount {
		return Errorf(ErrCodeInsufficientFunds, "insufficient funds on account %q considering credit limit", a.AccountID)
	}
	a.Balance -= amount
	return nil
}

// Reserve earmarks amount out of the available balance. The credit limit
// never backs a reservation.
func (a *Account) Reserve(amount int64) error {
	if err := a.ensureMutable(amount); err != nil {
		return err
	}
	if a.AvailableBalance() < amount {
		return Errorf(ErrCodeInsufficientAvailable, "insufficient available balance on account %q to reserve", a.AccountID)
	}
	a.ReservedBalance += amount
	return nil
}

// Capture settles amount of a previous reservation: the reservation is
// released and the balance reduced in one step.
func (a *Account) Capture(amount int64) error {
	if err := a.ensureMutable(amount); err != nil {
		return err
	}
	if a.ReservedBalance < amount {
		return Errorf(ErrCodeInsufficientReserved, "insufficient reserved balance on account %q to capture", a.AccountID)
	}
	a.ReservedBalance -= amount
	a.Balance -= amount
	return nil
}

// ReleaseReservation returns amount from the reserved balance to the
// available balance.
func (a *Account) ReleaseReservation(amount int64) error {
	if err := a.ensureMutable(amount); err != nil {
		return err
	}
	if a.ReservedBalance < amount {
		return Errorf(ErrCodeInsufficientReserved, "insufficient reserved balance on account %q to release", a.AccountID)
	}
	a.ReservedBalance -= amount
	return nil
}

// RefundCapture restores the balance effect of a capture. Only the balance
// moves; the reservation consumed by the capture is gone.
func (a *Account) RefundCapture(amount int64) error {
	if err := a.ensureMutable(amount); err != nil {
		return err
	}
	a.Balance += amount
	return nil
}

func (a *Account) ensureMutable(amount int64) error {
	if err := a.EnsureActive(); err != nil {
		return err
	}
	if amount <= 0 {
		return Errorf(ErrCodeInvalidAmount, "amount must be a positive integer in minor units")
	}
	return nil
}

// nextSequence increments and returns the per-account ledger counter. Callers
// must hold the account's exclusive lock.
func (a *Account) nextSequence() int64 {
	a.LedgerSequence++
	return a.LedgerSequence
}

// BuildLedgerEvent assigns the next ledger sequence and snapshots the
// post-mutation balances into an AccountEvent.
func (a *Account) BuildLedgerEvent(req OperationRequest, now time.Time, eventType EventType) AccountEvent {
	return AccountEvent{
		AccountID:             a.AccountID,
		Sequence:              a.nextSequence(),
		EventType:             eventType,
		Amount:                req.Amount,
		Currency:              req.Currency,
		ReferenceID:           req.ReferenceID,
		RelatedReferenceID:    req.RelatedReferenceID,
		TargetAccountID:       req.TargetAccountID,
		OccurredAt:            now,
		BalanceAfter:          a.Balance,
		ReservedBalanceAfter:  a.ReservedBalance,
		AvailableBalanceAfter: a.AvailableBalance(),
		Metadata:              req.Metadata,
	}
}
