package distribution

import (
	"encoding/binary"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/code-payments/code-distributor/pkg/code/common"
	"github.com/code-payments/code-distributor/pkg/merkletree"
)

const claimLeafPrefix = "distribution:claim:v1"

// ClaimLeaf is the leaf committed to in a MerkleProof distribution's tree for
// a claimant entitled to quarks. The amount is part of the leaf, so a proof
// only ever verifies for the amount it was issued for.
func ClaimLeaf(claimant *common.Account, quarks uint64) merkletree.Leaf {
	publicKey := claimant.PublicKey().ToBytes()

	leaf := make([]byte, 0, len(claimLeafPrefix)+len(publicKey)+8)
	leaf = append(leaf, claimLeafPrefix...)
	leaf = append(leaf, publicKey...)
	leaf = binary.LittleEndian.AppendUint64(leaf, quarks)
	return leaf
}

// MerkleAllocation is a claimant's entitlement in a MerkleProof distribution
type MerkleAllocation struct {
	Claimant *common.Account
	Quarks   uint64
}

// BuildMerkleTree builds the smallest tree holding a leaf per allocation. Its
// root is what gets published with InitializeParams.MerkleRoot, and the proof
// for the allocation at index i is GetProofForLeafAtIndex(i).
func BuildMerkleTree(allocations []*MerkleAllocation) (*merkletree.MerkleTree, error) {
	if len(allocations) == 0 {
		return nil, errors.Wrap(ErrInvalidParameters, "at least one allocation is required")
	}

	levels := uint8(1)
	if len(allocations) > 2 {
		levels = uint8(bits.Len64(uint64(len(allocations) - 1)))
	}

	tree, err := merkletree.New(levels, []merkletree.Seed{merkletree.Seed(claimLeafPrefix)})
	if err != nil {
		return nil, err
	}

	for _, allocation := range allocations {
		if allocation.Quarks == 0 {
			return nil, errors.Wrap(ErrInvalidParameters, "allocation must be positive")
		}

		if err := tree.AddLeaf(ClaimLeaf(allocation.Claimant, allocation.Quarks)); err != nil {
			return nil, err
		}
	}

	return tree, nil
}
