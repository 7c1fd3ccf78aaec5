package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finvolt/ledgercore/internal/clock"
	"github.com/finvolt/ledgercore/internal/models"
	"github.com/finvolt/ledgercore/internal/repository"
	"github.com/finvolt/ledgercore/internal/repository/mocks"
)

func TestEnqueuer_EnqueueTransaction(t *testing.T) {
	t.Run("enqueues pending command", func(t *testing.T) {
		queue := mocks.NewMockCommandQueueRepository(t)
		transactions := mocks.NewMockTransactionRepository(t)
		enqueuer := NewEnqueuer(queue, transactions, clock.Fixed{Instant: testNow}, discardLogger())
		ctx := context.Background()
		req := creditRequest()

		transactions.On("GetByReference", ctx, "ref-1").Return(nil, repository.ErrNotFound)
		queue.On("Enqueue", ctx, mock.MatchedBy(func(cmd *models.QueuedCommand) bool {
			var decoded models.TransactionRequest
			if err := json.Unmarshal(cmd.Payload, &decoded); err != nil {
				return false
			}
			return cmd.Status == models.CommandStatusPending &&
				cmd.EnqueuedAt.Equal(testNow) &&
				decoded.ReferenceID == "ref-1"
		})).Return(nil)

		result, err := enqueuer.EnqueueTransaction(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusPending, result.Status)
		assert.Equal(t, "ref-1-PENDING", result.TransactionID)
	})

	t.Run("duplicate reference returns stored outcome", func(t *testing.T) {
		queue := mocks.NewMockCommandQueueRepository(t)
		transactions := mocks.NewMockTransactionRepository(t)
		enqueuer := NewEnqueuer(queue, transactions, clock.Fixed{Instant: testNow}, discardLogger())
		ctx := context.Background()

		existing := &models.PersistedTransaction{
			TransactionID: "ref-1-PROCESSED",
			ReferenceID:   "ref-1",
			Status:        models.TransactionStatusSuccess,
			Timestamp:     testNow,
		}
		transactions.On("GetByReference", ctx, "ref-1").Return(existing, nil)

		result, err := enqueuer.EnqueueTransaction(ctx, creditRequest())

		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusSuccess, result.Status)
		assert.Equal(t, "ref-1-PROCESSED", result.TransactionID)
		queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("invalid request is rejected before enqueue", func(t *testing.T) {
		queue := mocks.NewMockCommandQueueRepository(t)
		transactions := mocks.NewMockTransactionRepository(t)
		enqueuer := NewEnqueuer(queue, transactions, clock.Fixed{Instant: testNow}, discardLogger())

		req := creditRequest()
		req.Amount = -1

		_, err := enqueuer.EnqueueTransaction(context.Background(), req)

		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
	})
}
