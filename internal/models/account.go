package models

import "github.com/finvolt/ledgercore/internal/domain"

// CreateAccountRequest opens a new account. AccountID is optional: when
// empty an external id is generated.
type CreateAccountRequest struct {
	ClientID       string `json:"client_id"`
	AccountID      string `json:"account_id,omitempty"`
	InitialBalance int64  `json:"initial_balance"`
	CreditLimit    int64  `json:"credit_limit"`
	Currency       string `json:"currency"`
}

// AccountResponse is the caller-facing snapshot of an account.
type AccountResponse struct {
	AccountID        string `json:"account_id"`
	ClientID         string `json:"client_id"`
	Currency         string `json:"currency"`
	Balance          int64  `json:"balance"`
	ReservedBalance  int64  `json:"reserved_balance"`
	AvailableBalance int64  `json:"available_balance"`
	CreditLimit      int64  `json:"credit_limit"`
	Status           string `json:"status"`
}

// AccountResponseFrom snapshots the aggregate state.
func AccountResponseFrom(account *domain.Account) *AccountResponse {
	return &AccountResponse{
		AccountID:        account.AccountID,
		ClientID:         account.ClientID,
		Currency:         account.Currency,
		Balance:          account.Balance,
		ReservedBalance:  account.ReservedBalance,
		AvailableBalance: account.AvailableBalance(),
		CreditLimit:      account.CreditLimit,
		Status:           string(account.Status),
	}
}
