// Package models defines the persisted row types and request/response shapes
// shared across the processing engine.
package models

import (
	"time"

	"github.com/finvolt/ledgercore/internal/domain"
)

// TransactionStatus represents the outcome of a processed transaction
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
	TransactionStatusPending TransactionStatus = "pending"
)

// PersistedTransaction is one immutable row per accepted attempt, keyed by
// the globally unique reference id (the idempotency key). It is created once
// and never mutated except to flag it reversed when a reversal against it
// succeeds.
type PersistedTransaction struct {
	Timestamp             time.Time            `db:"timestamp"`
	TransactionID         string               `db:"transaction_id"`
	ReferenceID           string               `db:"reference_id"`
	AccountID             string               `db:"account_id"`
	Operation             domain.OperationType `db:"operation"`
	Currency              string               `db:"currency"`
	Status                TransactionStatus    `db:"status"`
	ErrorMessage          string               `db:"error_message"`
	TargetAccountID       string               `db:"target_account_id"`
	RelatedReferenceID    string               `db:"related_reference_id"`
	ReversedByReferenceID string               `db:"reversed_by_reference_id"`
	Amount                int64                `db:"amount"`
	BalanceAfter          int64                `db:"balance_after"`
	ReservedBalanceAfter  int64                `db:"reserved_balance_after"`
	AvailableBalanceAfter int64                `db:"available_balance_after"`
	IsReversed            bool                 `db:"is_reversed"`
}

// TransactionRequest is the inbound shape for both the synchronous path and
// the queued payload. Operation names are case-insensitive strings.
type TransactionRequest struct {
	Operation          string         `json:"operation"`
	AccountID          string         `json:"account_id"`
	Amount             int64          `json:"amount"`
	Currency           string         `json:"currency"`
	ReferenceID        string         `json:"reference_id"`
	TargetAccountID    string         `json:"target_account_id,omitempty"`
	RelatedReferenceID string         `json:"related_reference_id,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// TransactionResult is the well-formed outcome returned by the orchestrator,
// success or failed. Business failures never surface as errors past it.
type TransactionResult struct {
	TransactionID    string            `json:"transaction_id"`
	Status           TransactionStatus `json:"status"`
	Balance          int64             `json:"balance"`
	ReservedBalance  int64             `json:"reserved_balance"`
	AvailableBalance int64             `json:"available_balance"`
	Timestamp        string            `json:"timestamp"`
	ErrorMessage     string            `json:"error_message,omitempty"`
}

// ResultFromPersisted maps a stored transaction row to the caller-facing
// outcome. Repeated submissions of one reference id always map the same row.
func ResultFromPersisted(tx *PersistedTransaction) *TransactionResult {
	return &TransactionResult{
		TransactionID:    tx.TransactionID,
		Status:           tx.Status,
		Balance:          tx.BalanceAfter,
		ReservedBalance:  tx.ReservedBalanceAfter,
		AvailableBalance: tx.AvailableBalanceAfter,
		Timestamp:        tx.Timestamp.UTC().Format(time.RFC3339Nano),
		ErrorMessage:     tx.ErrorMessage,
	}
}
