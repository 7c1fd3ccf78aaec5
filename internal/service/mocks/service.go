// Package mocks provides testify mocks for the service interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/service"
)

// MockTransactionProcessor is a mock implementation of service.TransactionProcessor.
type MockTransactionProcessor struct {
	mock.Mock
}

var _ service.TransactionProcessor = (*MockTransactionProcessor)(nil)

// NewMockTransactionProcessor creates a new mock with expectations asserted
// on test cleanup.
func NewMockTransactionProcessor(t *testing.T) *MockTransactionProcessor {
	m := &MockTransactionProcessor{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTransactionProcessor) Process(ctx context.Context, req *models.TransactionRequest) (*models.TransactionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionResult), args.Error(1)
}

// MockTransactionEnqueuer is a mock implementation of service.TransactionEnqueuer.
type MockTransactionEnqueuer struct {
	mock.Mock
}

var _ service.TransactionEnqueuer = (*MockTransactionEnqueuer)(nil)

// NewMockTransactionEnqueuer creates a new mock with expectations asserted
// on test cleanup.
func NewMockTransactionEnqueuer(t *testing.T) *MockTransactionEnqueuer {
	m := &MockTransactionEnqueuer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTransactionEnqueuer) EnqueueTransaction(ctx context.Context, req *models.TransactionRequest) (*models.TransactionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransactionResult), args.Error(1)
}

// MockAccountManager is a mock implementation of service.AccountManager.
type MockAccountManager struct {
	mock.Mock
}

var _ service.AccountManager = (*MockAccountManager)(nil)

// NewMockAccountManager creates a new mock with expectations asserted on
// test cleanup.
func NewMockAccountManager(t *testing.T) *MockAccountManager {
	m := &MockAccountManager{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountManager) CreateAccount(ctx context.Context, req *models.CreateAccountRequest) (*models.AccountResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccountResponse), args.Error(1)
}

func (m *MockAccountManager) GetAccount(ctx context.Context, accountID string) (*models.AccountResponse, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccountResponse), args.Error(1)
}

// MockTransactionReader is a mock implementation of service.TransactionReader.
type MockTransactionReader struct {
	mock.Mock
}

var _ service.TransactionReader = (*MockTransactionReader)(nil)

// NewMockTransactionReader creates a new mock with expectations asserted on
// test cleanup.
func NewMockTransactionReader(t *testing.T) *MockTransactionReader {
	m := &MockTransactionReader{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTransactionReader) GetTransactionByReference(ctx context.Context, referenceID string) (*models.PersistedTransaction, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PersistedTransaction), args.Error(1)
}

func (m *MockTransactionReader) GetReversalOf(ctx context.Context, referenceID string) (*models.PersistedTransaction, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PersistedTransaction), args.Error(1)
}

func (m *MockTransactionReader) ListAccountTransactions(ctx context.Context, accountID string) ([]*models.PersistedTransaction, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PersistedTransaction), args.Error(1)
}

func (m *MockTransactionReader) ListAccountEvents(ctx context.Context, accountID string) ([]domain.AccountEvent, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AccountEvent), args.Error(1)
}
