package models

import (
	"time"

	"github.com/google/uuid"
)

// CommandStatus tracks a queued command through its lifecycle. Done and
// Failed are terminal.
type CommandStatus string

const (
	CommandStatusPending    CommandStatus = "pending"
	CommandStatusProcessing CommandStatus = "processing"
	CommandStatusDone       CommandStatus = "done"
	CommandStatusFailed     CommandStatus = "failed"
)

// QueuedCommand is an asynchronously submitted transaction request waiting
// to be fed through the orchestrator.
type QueuedCommand struct {
	EnqueuedAt   time.Time     `db:"enqueued_at"`
	ProcessedAt  *time.Time    `db:"processed_at"`
	Payload      []byte        `db:"payload"`
	Status       CommandStatus `db:"status"`
	ErrorMessage string        `db:"error_message"`
	CommandID    uuid.UUID     `db:"command_id"`
}
