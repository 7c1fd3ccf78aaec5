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

// MockOutboxRepository is a mock implementation of repository.OutboxRepository.
type MockOutboxRepository struct {
	mock.Mock
}

var _ repository.OutboxRepository = (*MockOutboxRepository)(nil)

// NewMockOutboxRepository creates a new mock with expectations asserted on
// test cleanup.
func NewMockOutboxRepository(t *testing.T) *MockOutboxRepository {
	m := &MockOutboxRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOutboxRepository) Enqueue(ctx context.Context, msg *models.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockOutboxRepository) FetchDueBatch(ctx context.Context, batchSize int) ([]*models.OutboxMessage, error) {
	args := m.Called(ctx, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.OutboxMessage), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, eventID uuid.UUID, processedAt time.Time) error {
	args := m.Called(ctx, eventID, processedAt)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, eventID uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error {
	args := m.Called(ctx, eventID, attempts, nextAttemptAt, lastError)
	return args.Error(0)
}
