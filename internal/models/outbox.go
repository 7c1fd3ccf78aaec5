package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is an integration event staged in the same transaction as
// the state change it describes. Rows are never deleted: the publisher marks
// them processed or reschedules them.
type OutboxMessage struct {
	OccurredAt    time.Time  `db:"occurred_at"`
	NextAttemptAt time.Time  `db:"next_attempt_at"`
	ProcessedAt   *time.Time `db:"processed_at"`
	AggregateID   string     `db:"aggregate_id"`
	EventType     string     `db:"event_type"`
	Payload       []byte     `db:"payload"`
	LastError     string     `db:"last_error"`
	Attempts      int        `db:"attempts"`
	EventID       uuid.UUID  `db:"event_id"`
}

// NewOutboxMessage stages an event due immediately.
func NewOutboxMessage(aggregateID, eventType string, payload []byte, occurredAt time.Time) *OutboxMessage {
	return &OutboxMessage{
		EventID:       uuid.New(),
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		OccurredAt:    occurredAt,
		NextAttemptAt: occurredAt,
	}
}

// TransactionProcessedEvent is the payload of the "transaction.processed"
// integration event. Consumers dedupe by event id or by reference id;
// delivery is at-least-once.
type TransactionProcessedEvent struct {
	TransactionID    string         `json:"transaction_id"`
	ReferenceID      string         `json:"reference_id"`
	Operation        string         `json:"operation"`
	AccountID        string         `json:"account_id"`
	TargetAccountID  string         `json:"target_account_id,omitempty"`
	Amount           int64          `json:"amount"`
	Currency         string         `json:"currency"`
	Status           string         `json:"status"`
	Balance          int64          `json:"balance"`
	ReservedBalance  int64          `json:"reserved_balance"`
	AvailableBalance int64          `json:"available_balance"`
	Timestamp        time.Time      `json:"timestamp"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Metadata         map[string]any `json:"metadata"`
}

// EventTransactionProcessed is the routing key for processed-transaction events.
const EventTransactionProcessed = "transaction.processed"
