package domain

import "time"

// EventType identifies the kind of account mutation recorded in the ledger
type EventType string

const (
	EventCredited         EventType = "Credited"
	EventDebited          EventType = "Debited"
	EventReserved         EventType = "Reserved"
	EventCaptured         EventType = "Captured"
	EventReversed         EventType = "Reversed"
	EventTransferDebited  EventType = "TransferDebited"
	EventTransferCredited EventType = "TransferCredited"
	EventReversalApplied  EventType = "ReversalApplied"
)

// AccountEvent is one append-only ledger entry. The (AccountID, Sequence)
// pair is unique and strictly increasing per account, so the ledger gives a
// total order of mutations for that account.
type AccountEvent struct {
	AccountID             string         `db:"account_id" json:"account_id"`
	Sequence              int64          `db:"sequence" json:"sequence"`
	EventType             EventType      `db:"event_type" json:"event_type"`
	Amount                int64          `db:"amount" json:"amount"`
	Currency              string         `db:"currency" json:"currency"`
	ReferenceID           string         `db:"reference_id" json:"reference_id"`
	RelatedReferenceID    string         `db:"related_reference_id" json:"related_reference_id,omitempty"`
	TargetAccountID       string         `db:"target_account_id" json:"target_account_id,omitempty"`
	OccurredAt            time.Time      `db:"occurred_at" json:"occurred_at"`
	BalanceAfter          int64          `db:"balance_after" json:"balance_after"`
	ReservedBalanceAfter  int64          `db:"reserved_balance_after" json:"reserved_balance_after"`
	AvailableBalanceAfter int64          `db:"available_balance_after" json:"available_balance_after"`
	Metadata              map[string]any `db:"metadata" json:"metadata,omitempty"`
}
