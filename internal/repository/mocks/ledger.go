package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/finvolt/ledgercore/internal/domain"
	"github.com/finvolt/ledgercore/internal/repository"
)

// MockLedgerRepository is a mock implementation of repository.LedgerRepository.
type MockLedgerRepository struct {
	mock.Mock
}

var _ repository.LedgerRepository = (*MockLedgerRepository)(nil)

// NewMockLedgerRepository creates a new mock with expectations asserted on
// test cleanup.
func NewMockLedgerRepository(t *testing.T) *MockLedgerRepository {
	m := &MockLedgerRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockLedgerRepository) Append(ctx context.Context, event domain.AccountEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockLedgerRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.AccountEvent, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AccountEvent), args.Error(1)
}
