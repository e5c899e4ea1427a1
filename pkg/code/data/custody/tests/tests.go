package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-distributor/pkg/code/data/custody"
)

// SnapshotStore is a custody.Store that supports in memory transactions
type SnapshotStore interface {
	custody.Store
	Snapshot() func()
}

func RunTests(t *testing.T, s custody.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s custody.Store){
		testAccountHappyPath,
		testTransferHappyPath,
		testTransferFailures,
		testConcurrentTransfers,
	} {
		tf(t, s)
		teardown()
	}
}

func RunSnapshotTests(t *testing.T, s SnapshotStore) {
	t.Run("testSnapshotRestore", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.CreateAccount(ctx, &custody.AccountRecord{Address: "source", Owner: "owner", Quarks: 100}))

		restore := s.Snapshot()

		require.NoError(t, s.Transfer(ctx, newTransfer("source", "destination", "owner", 60)))
		require.NoError(t, s.CreateAccount(ctx, &custody.AccountRecord{Address: "other", Owner: "owner"}))

		restore()

		actual, err := s.GetAccount(ctx, "source")
		require.NoError(t, err)
		assert.EqualValues(t, 100, actual.Quarks)

		_, err = s.GetAccount(ctx, "destination")
		assert.Equal(t, custody.ErrAccountNotFound, err)

		_, err = s.GetAccount(ctx, "other")
		assert.Equal(t, custody.ErrAccountNotFound, err)

		transfers, err := s.GetTransfers(ctx, "source")
		require.NoError(t, err)
		assert.Empty(t, transfers)
	})
}

func testAccountHappyPath(t *testing.T, s custody.Store) {
	t.Run("testAccountHappyPath", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAccount(ctx, "account")
		assert.Equal(t, custody.ErrAccountNotFound, err)

		expected := &custody.AccountRecord{
			Address: "account",
			Owner:   "owner",
			Quarks:  1000,
		}
		require.NoError(t, s.CreateAccount(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.False(t, expected.CreatedAt.IsZero())

		actual, err := s.GetAccount(ctx, "account")
		require.NoError(t, err)
		assert.Equal(t, expected.Address, actual.Address)
		assert.Equal(t, expected.Owner, actual.Owner)
		assert.EqualValues(t, 1000, actual.Quarks)

		assert.Equal(t, custody.ErrAccountExists, s.CreateAccount(ctx, &custody.AccountRecord{
			Address: "account",
			Owner:   "someone_else",
		}))

		assert.Error(t, s.CreateAccount(ctx, &custody.AccountRecord{Owner: "owner"}))
		assert.Error(t, s.CreateAccount(ctx, &custody.AccountRecord{Address: "address"}))
	})
}

func testTransferHappyPath(t *testing.T, s custody.Store) {
	t.Run("testTransferHappyPath", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.CreateAccount(ctx, &custody.AccountRecord{Address: "funder", Owner: "funder_authority", Quarks: 1000}))
		require.NoError(t, s.CreateAccount(ctx, &custody.AccountRecord{Address: "custody", Owner: "distribution"}))

		funding := newTransfer("funder", "custody", "funder_authority", 700)
		require.NoError(t, s.Transfer(ctx, funding))
		assert.True(t, funding.Id > 0)

		claim := newTransfer("custody", "claimant", "distribution", 50)
		require.NoError(t, s.Transfer(ctx, claim))

		for address, expected := range map[string]uint64{
			"funder":   300,
			"custody":  650,
			"claimant": 50,
		} {
			actual, err := s.GetAccount(ctx, address)
			require.NoError(t, err)
			assert.Equal(t, expected, actual.Quarks, address)
		}

		claimant, err := s.GetAccount(ctx, "claimant")
		require.NoError(t, err)
		assert.Equal(t, "claimant", claimant.Owner)

		transfers, err := s.GetTransfers(ctx, "custody")
		require.NoError(t, err)
		require.Len(t, transfers, 2)
		assert.Equal(t, funding.TransferId, transfers[0].TransferId)
		assert.Equal(t, claim.TransferId, transfers[1].TransferId)
		assert.EqualValues(t, 700, transfers[0].Quarks)
		assert.Equal(t, "funder_authority", transfers[0].Authority)

		transfers, err = s.GetTransfers(ctx, "claimant")
		require.NoError(t, err)
		require.Len(t, transfers, 1)

		transfers, err = s.GetTransfers(ctx, "unknown")
		require.NoError(t, err)
		assert.Empty(t, transfers)
	})
}

func testTransferFailures(t *testing.T, s custody.Store) {
	t.Run("testTransferFailures", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.CreateAccount(ctx, &custody.AccountRecord{Address: "source", Owner: "owner", Quarks: 100}))

		assert.Equal(t, custody.ErrAccountNotFound, s.Transfer(ctx, newTransfer("unknown", "destination", "owner", 1)))
		assert.Equal(t, custody.ErrUnauthorized, s.Transfer(ctx, newTransfer("source", "destination", "not_owner", 1)))
		assert.Equal(t, custody.ErrInsufficientBalance, s.Transfer(ctx, newTransfer("source", "destination", "owner", 101)))
		assert.Error(t, s.Transfer(ctx, newTransfer("source", "source", "owner", 1)))
		assert.Error(t, s.Transfer(ctx, newTransfer("source", "destination", "owner", 0)))

		transfer := newTransfer("source", "destination", "owner", 10)
		require.NoError(t, s.Transfer(ctx, transfer))

		duplicate := newTransfer("source", "destination", "owner", 10)
		duplicate.TransferId = transfer.TransferId
		assert.Equal(t, custody.ErrTransferExists, s.Transfer(ctx, duplicate))

		source, err := s.GetAccount(ctx, "source")
		require.NoError(t, err)
		assert.EqualValues(t, 90, source.Quarks)

		destination, err := s.GetAccount(ctx, "destination")
		require.NoError(t, err)
		assert.EqualValues(t, 10, destination.Quarks)
	})
}

func testConcurrentTransfers(t *testing.T, s custody.Store) {
	t.Run("testConcurrentTransfers", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.CreateAccount(ctx, &custody.AccountRecord{Address: "pool", Owner: "owner", Quarks: 10}))

		var wg sync.WaitGroup
		var successMu sync.Mutex
		var successes int
		for i := 0; i < 25; i++ {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()

				err := s.Transfer(ctx, newTransfer("pool", fmt.Sprintf("destination%d", i), "owner", 1))
				if err == nil {
					successMu.Lock()
					successes++
					successMu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.LessOrEqual(t, successes, 10)

		pool, err := s.GetAccount(ctx, "pool")
		require.NoError(t, err)
		assert.EqualValues(t, 10-successes, pool.Quarks)
	})
}

func newTransfer(source, destination, authority string, quarks uint64) *custody.TransferRecord {
	return &custody.TransferRecord{
		TransferId:  uuid.NewString(),
		Source:      source,
		Destination: destination,
		Authority:   authority,
		Quarks:      quarks,
	}
}
