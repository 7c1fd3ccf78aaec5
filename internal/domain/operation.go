package domain

import "strings"

// OperationType represents the kind of money movement applied to an account
type OperationType string

const (
	OperationCredit   OperationType = "credit"
	OperationDebit    OperationType = "debit"
	OperationReserve  OperationType = "reserve"
	OperationCapture  OperationType = "capture"
	OperationReversal OperationType = "reversal"
	OperationTransfer OperationType = "transfer"
)

// ParseOperation maps a case-insensitive operation name to its type
func ParseOperation(operation string) (OperationType, error) {
	switch strings.ToLower(strings.TrimSpace(operation)) {
	case "credit":
		return OperationCredit, nil
	case "debit":
		return OperationDebit, nil
	case "reserve":
		return OperationReserve, nil
	case "capture":
		return OperationCapture, nil
	case "reversal":
		return OperationReversal, nil
	case "transfer":
		return OperationTransfer, nil
	default:
		return "", Errorf(ErrCodeUnsupportedOperation, "unsupported operation %q", operation)
	}
}

// OperationRequest is the normalized operation fed to the account aggregate
// when building ledger events.
type OperationRequest struct {
	Operation          OperationType
	AccountID          string
	Amount             int64
	Currency           string
	ReferenceID        string
	TargetAccountID    string
	RelatedReferenceID string
	Metadata           map[string]any
}
