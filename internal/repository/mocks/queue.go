package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
)

// MockCommandQueueRepository is a mock implementation of repository.CommandQueueRepository.
type MockCommandQueueRepository struct {
	mock.Mock
}

var _ repository.CommandQueueRepository = (*MockCommandQueueRepository)(nil)

// NewMockCommandQueueRepository creates a new mock with expectations
// asserted on test cleanup.
func NewMockCommandQueueRepository(t *testing.T) *MockCommandQueueRepository {
	m := &MockCommandQueueRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCommandQueueRepository) Enqueue(ctx context.Context, cmd *models.QueuedCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *MockCommandQueueRepository) TryDequeue(ctx context.Context) (*models.QueuedCommand, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueuedCommand), args.Error(1)
}

func (m *MockCommandQueueRepository) MarkProcessed(ctx context.Context, commandID uuid.UUID, status models.CommandStatus, errorMessage string, processedAt time.Time) error {
	args := m.Called(ctx, commandID, status, errorMessage, processedAt)
	return args.Error(0)
}
