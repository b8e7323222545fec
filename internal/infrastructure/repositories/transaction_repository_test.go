package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/integration-hub/internal/domain/entities"
)

func TestTransactionRepositoryCreateAndGetByRefID(t *testing.T) {
	db := openTestDB(t)
	repo := NewTransactionRepository(db, testLogger())
	ctx := context.Background()

	tx := entities.NewInitiatedTransaction("ref-1", "player-1", 500, "USD", entities.WalletActionDebit, uuid.New(), 1500)
	require.NoError(t, repo.Create(ctx, tx))

	got, err := repo.GetByRefID(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, tx.PlayerID, got.PlayerID)
	assert.Equal(t, entities.TransactionStatusInitiated, got.Status)
	require.NotNil(t, got.BalanceCents)
	assert.EqualValues(t, 1500, *got.BalanceCents)
}

func TestTransactionRepositoryGetByRefIDNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewTransactionRepository(db, testLogger())

	_, err := repo.GetByRefID(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestTransactionRepositoryUpdateStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewTransactionRepository(db, testLogger())
	ctx := context.Background()

	tx := entities.NewInitiatedTransaction("ref-2", "player-2", 700, "EUR", entities.WalletActionCredit, uuid.New(), 0)
	require.NoError(t, repo.Create(ctx, tx))

	reason := "rejected by operator"
	balance := int64(2200)
	require.NoError(t, repo.UpdateStatus(ctx, tx.ID, entities.TransactionStatusRejected, &reason, &balance))

	got, err := repo.GetByRefID(ctx, "ref-2")
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusRejected, got.Status)
	require.NotNil(t, got.Reason)
	assert.Equal(t, reason, *got.Reason)
	require.NotNil(t, got.BalanceCents)
	assert.EqualValues(t, 2200, *got.BalanceCents)
}

func TestTransactionRepositoryUpdateStatusNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewTransactionRepository(db, testLogger())

	err := repo.UpdateStatus(context.Background(), uuid.New(), entities.TransactionStatusSent, nil, nil)
	assert.Error(t, err)
}

func TestTransactionRepositoryGetByCorrelationID(t *testing.T) {
	db := openTestDB(t)
	repo := NewTransactionRepository(db, testLogger())
	ctx := context.Background()

	correlationID := uuid.New()
	tx := entities.NewInitiatedTransaction("ref-3", "player-3", 300, "USD", entities.WalletActionDebit, correlationID, 900)
	require.NoError(t, repo.Create(ctx, tx))

	got, err := repo.GetByCorrelationID(ctx, correlationID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
}

func TestTransactionRepositoryListSince(t *testing.T) {
	db := openTestDB(t)
	repo := NewTransactionRepository(db, testLogger())
	ctx := context.Background()

	cutoff := time.Now().UTC().Add(-time.Minute)
	tx := entities.NewInitiatedTransaction("ref-4", "player-4", 100, "USD", entities.WalletActionCredit, uuid.New(), 0)
	require.NoError(t, repo.Create(ctx, tx))

	txs, err := repo.ListSince(ctx, cutoff)
	require.NoError(t, err)
	require.NotEmpty(t, txs)

	var found bool
	for _, got := range txs {
		if got.ID == tx.ID {
			found = true
		}
	}
	assert.True(t, found, "expected the newly created transaction to appear in ListSince")
}
