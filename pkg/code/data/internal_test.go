package data

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-distributor/pkg/code/data/custody"
	"github.com/code-payments/code-distributor/pkg/code/data/distribution"
	pg "github.com/code-payments/code-distributor/pkg/database/postgres"
)

func TestMemoryTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	provider := NewTestDataProvider()

	require.NoError(t, provider.CreateCustodyAccount(ctx, &custody.AccountRecord{
		Address: "funder",
		Owner:   "funder",
		Quarks:  100,
	}))

	err := provider.ExecuteInTx(ctx, sql.LevelSerializable, func(ctx context.Context) error {
		return provider.ExecuteCustodyTransfer(ctx, &custody.TransferRecord{
			TransferId:  uuid.NewString(),
			Source:      "funder",
			Destination: "custody",
			Authority:   "funder",
			Quarks:      40,
		})
	})
	require.NoError(t, err)

	expectedErr := errors.New("failure")
	err = provider.ExecuteInTx(ctx, sql.LevelSerializable, func(ctx context.Context) error {
		require.NoError(t, provider.CreateDistribution(ctx, &distribution.Record{
			Address:        "distribution",
			Kind:           distribution.KindFixedAmount,
			Authority:      "authority",
			Funder:         "funder",
			CustodyAccount: "custody",
			ClaimAmount:    10,
			TotalFunded:    60,
		}))

		require.NoError(t, provider.ExecuteCustodyTransfer(ctx, &custody.TransferRecord{
			TransferId:  uuid.NewString(),
			Source:      "funder",
			Destination: "custody",
			Authority:   "funder",
			Quarks:      20,
		}))

		return expectedErr
	})
	assert.Equal(t, expectedErr, err)

	_, err = provider.GetDistribution(ctx, "distribution")
	assert.Equal(t, distribution.ErrDistributionNotFound, err)

	accountRecord, err := provider.GetCustodyAccount(ctx, "funder")
	require.NoError(t, err)
	assert.EqualValues(t, 60, accountRecord.Quarks)

	accountRecord, err = provider.GetCustodyAccount(ctx, "custody")
	require.NoError(t, err)
	assert.EqualValues(t, 40, accountRecord.Quarks)

	transferRecords, err := provider.GetCustodyTransfers(ctx, "custody")
	require.NoError(t, err)
	assert.Len(t, transferRecords, 1)
}

func TestMemoryTx_NestedTxNotSupported(t *testing.T) {
	ctx := context.Background()
	provider := NewTestDataProvider()

	var called bool
	err := provider.ExecuteInTx(ctx, sql.LevelSerializable, func(ctx context.Context) error {
		return provider.ExecuteInTx(ctx, sql.LevelSerializable, func(ctx context.Context) error {
			called = true
			return nil
		})
	})
	assert.Equal(t, pg.ErrAlreadyInTx, err)
	assert.False(t, called)
}

func TestClose_MemoryProvider(t *testing.T) {
	assert.NoError(t, NewTestDataProvider().Close())
}
