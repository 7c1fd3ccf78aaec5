package service

import (
	"fmt"
	"strings"

	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/models"
)

// ValidationError rejects a malformed request before the orchestrator runs.
// It is never persisted; callers map it to a bad-request response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

const (
	maxAccountIDLen   = 64
	maxReferenceIDLen = 128
)

// ValidateTransactionRequest checks the shape of a transaction request:
// required fields, field lengths and the per-operation conditional fields.
func ValidateTransactionRequest(req *models.TransactionRequest) error {
	op, err := domain.ParseOperation(req.Operation)
	if err != nil {
		return validationErrorf("%s", err.Error())
	}

	if strings.TrimSpace(req.AccountID) == "" {
		return validationErrorf("account_id is required")
	}
	if len(req.AccountID) > maxAccountIDLen {
		return validationErrorf("account_id must be at most %d characters", maxAccountIDLen)
	}
	if req.Amount <= 0 {
		return validationErrorf("amount must be a positive integer in minor units")
	}
	if len(strings.TrimSpace(req.Currency)) != 3 {
		return validationErrorf("currency must be a 3-letter code")
	}
	if strings.TrimSpace(req.ReferenceID) == "" {
		return validationErrorf("reference_id is required")
	}
	if len(req.ReferenceID) > maxReferenceIDLen {
		return validationErrorf("reference_id must be at most %d characters", maxReferenceIDLen)
	}

	switch op {
	case domain.OperationTransfer:
		if strings.TrimSpace(req.TargetAccountID) == "" {
			return validationErrorf("target_account_id is required for transfer")
		}
		if len(req.TargetAccountID) > maxAccountIDLen {
			return validationErrorf("target_account_id must be at most %d characters", maxAccountIDLen)
		}
	case domain.OperationReversal, domain.OperationCapture:
		if strings.TrimSpace(req.RelatedReferenceID) == "" {
			return validationErrorf("related_reference_id is required for %s", op)
		}
		if len(req.RelatedReferenceID) > maxReferenceIDLen {
			return validationErrorf("related_reference_id must be at most %d characters", maxReferenceIDLen)
		}
	}

	return nil
}

// ValidateCreateAccountRequest checks the shape of an account creation request.
func ValidateCreateAccountRequest(req *models.CreateAccountRequest) error {
	if strings.TrimSpace(req.ClientID) == "" {
		return validationErrorf("client_id is required")
	}
	if len(req.AccountID) > maxAccountIDLen {
		return validationErrorf("account_id must be at most %d characters", maxAccountIDLen)
	}
	if req.InitialBalance < 0 {
		return validationErrorf("initial_balance cannot be negative")
	}
	if req.CreditLimit < 0 {
		return validationErrorf("credit_limit cannot be negative")
	}
	if len(strings.TrimSpace(req.Currency)) != 3 {
		return validationErrorf("currency must be a 3-letter code")
	}
	return nil
}
