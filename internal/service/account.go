package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/finvolt/ledgercore/internal/clock"
	"github.com/finvolt/ledgercore/internal/db"
	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
)

// AccountService manages account creation and lookup.
type AccountService struct {
	accounts repository.AccountRepository
	clock    clock.Clock
	logger   *slog.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(accounts repository.AccountRepository, clk clock.Clock, logger *slog.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		clock:    clk,
		logger:   logger,
	}
}

// CreateAccount opens a new active account. When no account id is supplied a
// unique one is generated.
func (s *AccountService) CreateAccount(ctx context.Context, req *models.CreateAccountRequest) (*models.AccountResponse, error) {
	if err := ValidateCreateAccountRequest(req); err != nil {
		return nil, err
	}

	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		accountID = "ACC-" + uuid.NewString()
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	account := domain.NewAccount(accountID, strings.TrimSpace(req.ClientID), currency, req.InitialBalance, req.CreditLimit)

	if err := s.accounts.Add(ctx, account); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.Errorf(domain.ErrCodeAccountExists, "account %q already exists", accountID)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created",
		"account_id", account.AccountID,
		"client_id", account.ClientID,
		"currency", account.Currency,
	)

	return models.AccountResponseFrom(account), nil
}

// GetAccount returns the current state of an account.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*models.AccountResponse, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Errorf(domain.ErrCodeAccountNotFound, "account %q not found", accountID)
		}
		return nil, err
	}
	return models.AccountResponseFrom(account), nil
}
