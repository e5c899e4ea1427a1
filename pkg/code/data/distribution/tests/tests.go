package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-distributor/pkg/code/data/distribution"
	"github.com/code-payments/code-distributor/pkg/database/query"
	"github.com/code-payments/code-distributor/pkg/pointer"
)

// SnapshotStore is a distribution.Store that supports in memory transactions
type SnapshotStore interface {
	distribution.Store
	Snapshot() func()
}

func RunTests(t *testing.T, s distribution.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s distribution.Store){
		testDistributionHappyPath,
		testDistributionStaleVersion,
		testEligibilityHappyPath,
		testReplaceEligible,
		testClaimHappyPath,
		testClaimFailures,
		testConcurrentClaims,
		testAuditLog,
	} {
		tf(t, s)
		teardown()
	}
}

func RunSnapshotTests(t *testing.T, s SnapshotStore) {
	t.Run("testSnapshotRestore", func(t *testing.T) {
		ctx := context.Background()

		record := newAllowlistRecord("distribution")
		require.NoError(t, s.CreateDistribution(ctx, record))
		require.NoError(t, s.AddEligible(ctx, newEligible("distribution", "alice", 10)))

		restore := s.Snapshot()

		require.NoError(t, s.AddEligible(ctx, newEligible("distribution", "bob", 20)))
		record.TotalAmountClaimed += 10
		record.NumClaimantsServed++
		require.NoError(t, s.CommitClaim(ctx, record, newClaim("distribution", "alice", 10, 0)))
		require.NoError(t, s.SaveAuditRecord(ctx, newAuditRecord("distribution", distribution.AuditKindFund)))

		restore()

		actual, err := s.GetDistribution(ctx, "distribution")
		require.NoError(t, err)
		assert.EqualValues(t, 0, actual.Version)
		assert.EqualValues(t, 0, actual.TotalAmountClaimed)
		assert.EqualValues(t, 0, actual.NumClaimantsServed)

		_, err = s.GetEligible(ctx, "distribution", "bob")
		assert.Equal(t, distribution.ErrNotListed, err)

		_, err = s.GetEligible(ctx, "distribution", "alice")
		assert.NoError(t, err)

		_, err = s.GetClaim(ctx, "distribution", "alice")
		assert.Equal(t, distribution.ErrClaimNotFound, err)

		auditRecords, err := s.GetAuditRecords(ctx, "distribution", query.EmptyCursor, 0, query.Ascending)
		require.NoError(t, err)
		assert.Empty(t, auditRecords)
	})
}

func testDistributionHappyPath(t *testing.T, s distribution.Store) {
	t.Run("testDistributionHappyPath", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetDistribution(ctx, "merkle")
		assert.Equal(t, distribution.ErrDistributionNotFound, err)

		all, err := s.GetAllDistributions(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		expected := &distribution.Record{
			Address:         "merkle",
			Kind:            distribution.KindMerkleProof,
			Authority:       "authority",
			Funder:          "funder",
			CustodyAccount:  "custody",
			MerkleRoot:      make([]byte, 32),
			MaxTotalClaim:   1000,
			MaxNumClaimants: 10,
			TotalFunded:     1000,
		}
		expected.MerkleRoot[0] = 1
		cloned := expected.Clone()

		require.NoError(t, s.CreateDistribution(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.EqualValues(t, 0, expected.Version)

		assert.Equal(t, distribution.ErrDistributionExists, s.CreateDistribution(ctx, &cloned))

		actual, err := s.GetDistribution(ctx, "merkle")
		require.NoError(t, err)
		assert.True(t, expected.Equals(actual))
		assert.Equal(t, expected.Id, actual.Id)

		actual.TotalFunded += 500
		require.NoError(t, s.UpdateDistribution(ctx, actual))
		assert.EqualValues(t, 1, actual.Version)

		updated, err := s.GetDistribution(ctx, "merkle")
		require.NoError(t, err)
		assert.True(t, actual.Equals(updated))
		assert.EqualValues(t, 1500, updated.TotalFunded)

		require.NoError(t, s.CreateDistribution(ctx, newFixedAmountRecord("fixed")))

		all, err = s.GetAllDistributions(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "merkle", all[0].Address)
		assert.Equal(t, "fixed", all[1].Address)
	})
}

func testDistributionStaleVersion(t *testing.T, s distribution.Store) {
	t.Run("testDistributionStaleVersion", func(t *testing.T) {
		ctx := context.Background()

		record := newFixedAmountRecord("distribution")
		assert.Equal(t, distribution.ErrDistributionNotFound, s.UpdateDistribution(ctx, record))

		require.NoError(t, s.CreateDistribution(ctx, record))

		first, err := s.GetDistribution(ctx, "distribution")
		require.NoError(t, err)
		second, err := s.GetDistribution(ctx, "distribution")
		require.NoError(t, err)

		first.ClaimAmount = 75
		require.NoError(t, s.UpdateDistribution(ctx, first))

		second.ClaimAmount = 25
		assert.Equal(t, distribution.ErrStaleDistribution, s.UpdateDistribution(ctx, second))
		assert.EqualValues(t, 0, second.Version)

		actual, err := s.GetDistribution(ctx, "distribution")
		require.NoError(t, err)
		assert.EqualValues(t, 75, actual.ClaimAmount)
		assert.EqualValues(t, 1, actual.Version)
	})
}

func testEligibilityHappyPath(t *testing.T, s distribution.Store) {
	t.Run("testEligibilityHappyPath", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.CreateDistribution(ctx, newAllowlistRecord("distribution")))

		_, err := s.GetEligible(ctx, "distribution", "alice")
		assert.Equal(t, distribution.ErrNotListed, err)

		all, err := s.GetAllEligible(ctx, "distribution")
		require.NoError(t, err)
		assert.Empty(t, all)

		for _, party := range []string{"carol", "alice", "bob"} {
			require.NoError(t, s.AddEligible(ctx, newEligible("distribution", party, 10)))
		}
		require.NoError(t, s.AddEligible(ctx, newEligible("distribution", "dave", 0)))
		require.NoError(t, s.AddEligible(ctx, &distribution.EligibilityRecord{Distribution: "distribution", Party: "erin"}))
		require.NoError(t, s.AddEligible(ctx, newEligible("other", "alice", 99)))

		assert.Equal(t, distribution.ErrAlreadyListed, s.AddEligible(ctx, newEligible("distribution", "alice", 1000)))

		actual, err := s.GetEligible(ctx, "distribution", "alice")
		require.NoError(t, err)
		require.NotNil(t, actual.Allocation)
		assert.EqualValues(t, 10, *actual.Allocation)

		actual, err = s.GetEligible(ctx, "distribution", "dave")
		require.NoError(t, err)
		require.NotNil(t, actual.Allocation)
		assert.EqualValues(t, 0, *actual.Allocation)

		actual, err = s.GetEligible(ctx, "distribution", "erin")
		require.NoError(t, err)
		assert.Nil(t, actual.Allocation)

		all, err = s.GetAllEligible(ctx, "distribution")
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i, party := range []string{"alice", "bob", "carol", "dave", "erin"} {
			assert.Equal(t, party, all[i].Party)
			assert.Equal(t, "distribution", all[i].Distribution)
		}
	})
}

func testReplaceEligible(t *testing.T, s distribution.Store) {
	t.Run("testReplaceEligible", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.CreateDistribution(ctx, newAllowlistRecord("distribution")))
		require.NoError(t, s.AddEligible(ctx, newEligible("distribution", "alice", 10)))
		require.NoError(t, s.AddEligible(ctx, newEligible("distribution", "bob", 10)))

		duplicated := []*distribution.EligibilityRecord{
			newEligible("distribution", "carol", 1),
			newEligible("distribution", "carol", 2),
		}
		assert.Equal(t, distribution.ErrAlreadyListed, s.ReplaceEligible(ctx, "distribution", duplicated))

		all, err := s.GetAllEligible(ctx, "distribution")
		require.NoError(t, err)
		require.Len(t, all, 2)

		replacement := []*distribution.EligibilityRecord{
			newEligible("distribution", "dave", 40),
			newEligible("distribution", "bob", 30),
		}
		require.NoError(t, s.ReplaceEligible(ctx, "distribution", replacement))

		_, err = s.GetEligible(ctx, "distribution", "alice")
		assert.Equal(t, distribution.ErrNotListed, err)

		all, err = s.GetAllEligible(ctx, "distribution")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "bob", all[0].Party)
		assert.EqualValues(t, 30, *all[0].Allocation)
		assert.Equal(t, "dave", all[1].Party)
		assert.EqualValues(t, 40, *all[1].Allocation)

		require.NoError(t, s.ReplaceEligible(ctx, "distribution", nil))

		all, err = s.GetAllEligible(ctx, "distribution")
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func testClaimHappyPath(t *testing.T, s distribution.Store) {
	t.Run("testClaimHappyPath", func(t *testing.T) {
		ctx := context.Background()

		record := newAllowlistRecord("distribution")
		require.NoError(t, s.CreateDistribution(ctx, record))

		count, err := s.CountClaims(ctx, "distribution")
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		_, err = s.GetClaim(ctx, "distribution", "alice")
		assert.Equal(t, distribution.ErrClaimNotFound, err)

		for i, claimant := range []string{"bob", "alice", "carol"} {
			record.TotalAmountClaimed += uint64(10 * (i + 1))
			record.NumClaimantsServed++

			claim := newClaim("distribution", claimant, uint64(10*(i+1)), uint64(i))
			require.NoError(t, s.CommitClaim(ctx, record, claim))
			assert.True(t, claim.Id > 0)
			assert.EqualValues(t, i+1, record.Version)
		}

		actual, err := s.GetDistribution(ctx, "distribution")
		require.NoError(t, err)
		assert.True(t, record.Equals(actual))
		assert.EqualValues(t, 60, actual.TotalAmountClaimed)
		assert.EqualValues(t, 3, actual.NumClaimantsServed)

		claim, err := s.GetClaim(ctx, "distribution", "alice")
		require.NoError(t, err)
		assert.EqualValues(t, 20, claim.Quarks)
		assert.EqualValues(t, 1, claim.Index)

		claims, err := s.GetAllClaims(ctx, "distribution")
		require.NoError(t, err)
		require.Len(t, claims, 3)
		for i, claimant := range []string{"bob", "alice", "carol"} {
			assert.Equal(t, claimant, claims[i].Claimant)
			assert.EqualValues(t, i, claims[i].Index)
		}

		count, err = s.CountClaims(ctx, "distribution")
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
	})
}

func testClaimFailures(t *testing.T, s distribution.Store) {
	t.Run("testClaimFailures", func(t *testing.T) {
		ctx := context.Background()

		record := newAllowlistRecord("distribution")
		require.NoError(t, s.CreateDistribution(ctx, record))

		stale := record.Clone()

		record.TotalAmountClaimed += 10
		record.NumClaimantsServed++
		require.NoError(t, s.CommitClaim(ctx, record, newClaim("distribution", "alice", 10, 0)))

		// Replayed claimant
		next := record.Clone()
		next.TotalAmountClaimed += 10
		next.NumClaimantsServed++
		assert.Equal(t, distribution.ErrAlreadyClaimed, s.CommitClaim(ctx, &next, newClaim("distribution", "alice", 10, 1)))

		// Reused index
		next = record.Clone()
		next.TotalAmountClaimed += 10
		next.NumClaimantsServed++
		assert.Equal(t, distribution.ErrAlreadyClaimed, s.CommitClaim(ctx, &next, newClaim("distribution", "bob", 10, 0)))

		// Stale state
		stale.TotalAmountClaimed += 10
		stale.NumClaimantsServed++
		assert.Equal(t, distribution.ErrStaleDistribution, s.CommitClaim(ctx, &stale, newClaim("distribution", "bob", 10, 1)))

		actual, err := s.GetDistribution(ctx, "distribution")
		require.NoError(t, err)
		assert.True(t, record.Equals(actual))

		_, err = s.GetClaim(ctx, "distribution", "bob")
		assert.Equal(t, distribution.ErrClaimNotFound, err)

		count, err := s.CountClaims(ctx, "distribution")
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func testConcurrentClaims(t *testing.T, s distribution.Store) {
	t.Run("testConcurrentClaims", func(t *testing.T) {
		ctx := context.Background()

		record := newAllowlistRecord("distribution")
		require.NoError(t, s.CreateDistribution(ctx, record))

		var wg sync.WaitGroup
		var mu sync.Mutex
		var succeeded int
		for i := 0; i < 10; i++ {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()

				next := record.Clone()
				next.TotalAmountClaimed += 10
				next.NumClaimantsServed++

				err := s.CommitClaim(ctx, &next, newClaim("distribution", fmt.Sprintf("claimant%d", i), 10, 0))
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				}
				assert.Contains(t, []error{distribution.ErrStaleDistribution, distribution.ErrAlreadyClaimed}, err)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)

		actual, err := s.GetDistribution(ctx, "distribution")
		require.NoError(t, err)
		assert.EqualValues(t, 10, actual.TotalAmountClaimed)
		assert.EqualValues(t, 1, actual.NumClaimantsServed)

		count, err := s.CountClaims(ctx, "distribution")
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func testAuditLog(t *testing.T, s distribution.Store) {
	t.Run("testAuditLog", func(t *testing.T) {
		ctx := context.Background()

		actual, err := s.GetAuditRecords(ctx, "distribution", query.EmptyCursor, 0, query.Ascending)
		require.NoError(t, err)
		assert.Empty(t, actual)

		var expected []*distribution.AuditRecord
		for i, kind := range []distribution.AuditKind{
			distribution.AuditKindInitialize,
			distribution.AuditKindFund,
			distribution.AuditKindSetClaimAmount,
		} {
			record := newAuditRecord("distribution", kind)
			record.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
			require.NoError(t, s.SaveAuditRecord(ctx, record))
			expected = append(expected, record)
		}
		require.NoError(t, s.SaveAuditRecord(ctx, newAuditRecord("other", distribution.AuditKindInitialize)))

		duplicate := expected[0].Clone()
		assert.Equal(t, distribution.ErrAuditRecordExists, s.SaveAuditRecord(ctx, &duplicate))

		invalid := newAuditRecord("distribution", "unknown")
		assert.Error(t, s.SaveAuditRecord(ctx, invalid))

		actual, err = s.GetAuditRecords(ctx, "distribution", query.EmptyCursor, 0, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, len(expected))
		for i := range expected {
			assert.Equal(t, expected[i].Id, actual[i].Id)
			assert.Equal(t, expected[i].AuditId, actual[i].AuditId)
			assert.Equal(t, expected[i].Kind, actual[i].Kind)
			assert.Equal(t, expected[i].Actor, actual[i].Actor)
			assert.Equal(t, expected[i].Details, actual[i].Details)
		}

		actual, err = s.GetAuditRecords(ctx, "distribution", query.EmptyCursor, 0, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, len(expected))
		for i := range expected {
			assert.Equal(t, expected[len(expected)-1-i].AuditId, actual[i].AuditId)
		}

		actual, err = s.GetAuditRecords(ctx, "distribution", query.EmptyCursor, 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, expected[0].AuditId, actual[0].AuditId)
		assert.Equal(t, expected[1].AuditId, actual[1].AuditId)

		actual, err = s.GetAuditRecords(ctx, "distribution", query.ToCursor(actual[1].Id), 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assert.Equal(t, expected[2].AuditId, actual[0].AuditId)

		actual, err = s.GetAuditRecords(ctx, "distribution", query.ToCursor(expected[2].Id), 0, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assert.Equal(t, expected[1].AuditId, actual[0].AuditId)
		assert.Equal(t, expected[0].AuditId, actual[1].AuditId)
	})
}

func newFixedAmountRecord(address string) *distribution.Record {
	return &distribution.Record{
		Address:        address,
		Kind:           distribution.KindFixedAmount,
		Authority:      "authority",
		Funder:         "funder",
		CustodyAccount: "custody-" + address,
		ClaimAmount:    50,
		TotalFunded:    1000,
	}
}

func newAllowlistRecord(address string) *distribution.Record {
	return &distribution.Record{
		Address:        address,
		Kind:           distribution.KindAllowlist,
		Authority:      "authority",
		Funder:         "funder",
		CustodyAccount: "custody-" + address,
		TotalFunded:    1000,
	}
}

func newEligible(distributionAddress, party string, allocation uint64) *distribution.EligibilityRecord {
	return &distribution.EligibilityRecord{
		Distribution: distributionAddress,
		Party:        party,
		Allocation:   pointer.Uint64(allocation),
	}
}

func newClaim(distributionAddress, claimant string, quarks, index uint64) *distribution.ClaimRecord {
	return &distribution.ClaimRecord{
		Distribution: distributionAddress,
		Claimant:     claimant,
		Quarks:       quarks,
		Index:        index,
		TransferId:   uuid.NewString(),
	}
}

func newAuditRecord(distributionAddress string, kind distribution.AuditKind) *distribution.AuditRecord {
	return &distribution.AuditRecord{
		AuditId:      uuid.NewString(),
		Distribution: distributionAddress,
		Kind:         kind,
		Actor:        "authority",
		Details:      `{"quarks":100}`,
	}
}
