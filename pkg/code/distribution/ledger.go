package distribution

import (
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/code-distributor/pkg/code/common"
	distribution_data "github.com/code-payments/code-distributor/pkg/code/data/distribution"
	"github.com/code-payments/code-distributor/pkg/merkletree"
)

// claimCheck is everything the claim ledger needs to decide a claim. It's
// loaded by the controller within the same transaction the result is
// committed in.
type claimCheck struct {
	state *distribution_data.Record

	// Nil when the claimant isn't listed. Unused for MerkleProof distributions.
	eligibility *distribution_data.EligibilityRecord

	alreadyClaimed bool

	claimant  *common.Account
	requested uint64
	proof     []merkletree.Hash
}

// checkClaim runs the claim ledger checks in order, stopping at the first
// failure: eligibility, allocation, replay and capacity. On success, it
// returns the next distribution state and the claim to record alongside it.
// Neither the input state nor any store is modified.
func checkClaim(in *claimCheck) (*distribution_data.Record, *distribution_data.ClaimRecord, error) {
	state := in.state

	// Eligibility and allocation
	var quarks uint64
	switch state.Kind {
	case distribution_data.KindFixedAmount:
		if in.eligibility == nil {
			return nil, nil, ErrNotEligible
		}

		quarks = state.ClaimAmount
	case distribution_data.KindAllowlist:
		if in.eligibility == nil {
			return nil, nil, ErrNotEligible
		}
		if in.eligibility.Allocation == nil {
			return nil, nil, errors.Wrap(ErrInvalidPersistedState, "allowlist entry is missing an allocation")
		}

		allocation := *in.eligibility.Allocation
		if allocation == 0 {
			return nil, nil, errors.Wrap(ErrNotEligible, "allocation is zero")
		}

		quarks = allocation
		if in.requested > 0 {
			if in.requested > allocation {
				return nil, nil, ErrAmountExceedsAllocation
			}
			quarks = in.requested
		}
	case distribution_data.KindMerkleProof:
		if in.requested == 0 {
			return nil, nil, ErrInvalidProof
		}

		if !merkletree.Verify(in.proof, state.MerkleRoot, ClaimLeaf(in.claimant, in.requested)) {
			return nil, nil, ErrInvalidProof
		}

		quarks = in.requested
	default:
		return nil, nil, errors.Wrap(ErrInvalidPersistedState, "unknown distribution kind")
	}

	// Replay
	if in.alreadyClaimed {
		return nil, nil, ErrAlreadyClaimed
	}

	// Capacity
	if state.ClaimCapacity > 0 && state.NumClaimantsServed >= state.ClaimCapacity {
		return nil, nil, ErrCapacityExceeded
	}

	if state.MaxNumClaimants > 0 && state.NumClaimantsServed >= state.MaxNumClaimants {
		return nil, nil, errors.Wrap(ErrAggregateCapExceeded, "max number of claimants reached")
	}

	if state.MaxTotalClaim > 0 {
		if state.TotalAmountClaimed > state.MaxTotalClaim || quarks > state.MaxTotalClaim-state.TotalAmountClaimed {
			return nil, nil, errors.Wrap(ErrAggregateCapExceeded, "max total claim reached")
		}
	}

	if quarks > math.MaxUint64-state.TotalAmountClaimed || state.NumClaimantsServed == math.MaxUint64 {
		return nil, nil, errors.Wrap(ErrAggregateCapExceeded, "counter overflow")
	}

	// Commit
	next := state.Clone()
	next.TotalAmountClaimed += quarks
	next.NumClaimantsServed++

	claim := &distribution_data.ClaimRecord{
		Distribution: state.Address,
		Claimant:     in.claimant.PublicKey().ToBase58(),
		Quarks:       quarks,
		Index:        state.NumClaimantsServed,
	}

	return &next, claim, nil
}
