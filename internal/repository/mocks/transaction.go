package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
)

// MockTransactionRepository is a mock implementation of repository.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

var _ repository.TransactionRepository = (*MockTransactionRepository)(nil)

// NewMockTransactionRepository creates a new mock with expectations asserted
// on test cleanup.
func NewMockTransactionRepository(t *testing.T) *MockTransactionRepository {
	m := &MockTransactionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, referenceID string) (*models.PersistedTransaction, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PersistedTransaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByRelatedReference(ctx context.Context, relatedReferenceID string) (*models.PersistedTransaction, error) {
	args := m.Called(ctx, relatedReferenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PersistedTransaction), args.Error(1)
}

func (m *MockTransactionRepository) Add(ctx context.Context, tx *models.PersistedTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.PersistedTransaction, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PersistedTransaction), args.Error(1)
}

func (m *MockTransactionRepository) MarkReversed(ctx context.Context, referenceID, reversalReferenceID string) error {
	args := m.Called(ctx, referenceID, reversalReferenceID)
	return args.Error(0)
}
