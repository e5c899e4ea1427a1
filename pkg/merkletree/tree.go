package merkletree

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

type Hash []byte
type Seed []byte
type Leaf []byte

const (
	// todo: 64 levels causes an overflow issue when computing capacity
	MaxLevels = 63

	HashSize = sha256.Size
)

var (
	ErrMerkleTreeFull    = errors.New("merkle tree is full")
	ErrInvalidLevelCount = errors.New("level count is invalid")
	ErrLeafNotFound      = errors.New("leaf not found")
)

// MerkleTree is an append-only, fixed depth tree used to publish the root for
// a proof-based distribution and to generate the proofs handed to claimants.
// Unused positions are padded with zero values derived from the seeds.
//
// It's an in-memory builder. Claim verification never needs a tree instance,
// only Verify.
type MerkleTree struct {
	levels     uint8
	root       Hash
	leaves     []Hash
	zeroValues []Hash
}

func New(levels uint8, seeds []Seed) (*MerkleTree, error) {
	if levels < 1 || levels > MaxLevels {
		return nil, ErrInvalidLevelCount
	}

	zeroValues := calculateZeroValues(levels, seeds)

	top := zeroValues[len(zeroValues)-1]

	return &MerkleTree{
		levels:     levels,
		root:       hashLeftRight(top, top),
		zeroValues: zeroValues,
	}, nil
}

// AddLeaf appends a leaf and recomputes the root
func (t *MerkleTree) AddLeaf(leaf Leaf) error {
	if uint64(len(t.leaves)) >= t.capacity() {
		return ErrMerkleTreeFull
	}

	t.leaves = append(t.leaves, hash(leaf))

	layer := t.leaves
	for level := 0; level < int(t.levels); level++ {
		layer = hashPairs(padLayer(layer, t.zeroValues[level]))
	}
	t.root = layer[0]

	return nil
}

func (t *MerkleTree) GetRoot() Hash {
	var cpy Hash
	return append(cpy, t.root...)
}

func (t *MerkleTree) GetLevels() uint8 {
	return t.levels
}

func (t *MerkleTree) GetLeafCount() uint64 {
	return uint64(len(t.leaves))
}

func (t *MerkleTree) GetIndexForLeaf(leaf Leaf) (int, error) {
	hashed := hash(leaf)
	for i, existing := range t.leaves {
		if bytes.Equal(hashed, existing) {
			return i, nil
		}
	}
	return 0, ErrLeafNotFound
}

// GetProofForLeafAtIndex returns the sibling hashes, ordered leaf to root, that
// prove membership of the leaf at the provided index against the current root.
func (t *MerkleTree) GetProofForLeafAtIndex(index uint64) ([]Hash, error) {
	if index >= uint64(len(t.leaves)) {
		return nil, ErrLeafNotFound
	}

	proof := make([]Hash, t.levels)

	layer := t.leaves
	current := index
	for level := 0; level < int(t.levels); level++ {
		layer = padLayer(layer, t.zeroValues[level])

		sibling := current ^ 1
		proof[level] = append(Hash{}, layer[sibling]...)

		layer = hashPairs(layer)
		current /= 2
	}

	return proof, nil
}

func (t *MerkleTree) String() string {
	var res string
	for i, leaf := range t.leaves {
		res += fmt.Sprintf("Leaf %d: %s\n", i, leaf.String())
	}
	res += fmt.Sprintf("Root: %s\n", t.root.String())
	return res
}

func (t *MerkleTree) capacity() uint64 {
	return uint64(1) << t.levels
}

// Verify determines whether leaf is committed to by root. Proof elements are
// consumed in order, starting at the leaf level. Malformed input never verifies.
func Verify(proof []Hash, root Hash, leaf Leaf) bool {
	if len(proof) == 0 || len(proof) > MaxLevels {
		return false
	}
	if len(root) != HashSize {
		return false
	}

	computed := hash(leaf)
	for _, sibling := range proof {
		if len(sibling) != HashSize {
			return false
		}
		computed = hashLeftRight(computed, sibling)
	}
	return bytes.Equal(computed, root)
}

// HashLeaf returns the level zero hash for a leaf value
func HashLeaf(leaf Leaf) Hash {
	return hash(leaf)
}

func calculateZeroValues(levels uint8, seeds []Seed) []Hash {
	var combinedSeed Seed
	for _, seed := range seeds {
		combinedSeed = append(combinedSeed, seed...)
	}

	zeros := make([]Hash, 0, levels)
	current := hash(combinedSeed)
	for i := 0; i < int(levels); i++ {
		zeros = append(zeros, current)
		current = hashLeftRight(current, current)
	}
	return zeros
}

// hashLeftRight orders the pair before hashing, so the position of a sibling
// within the tree doesn't need to be part of the proof.
func hashLeftRight(left, right Hash) Hash {
	combined := make([]byte, 0, len(left)+len(right))
	if bytes.Compare(left, right) < 0 {
		combined = append(append(combined, left...), right...)
	} else {
		combined = append(append(combined, right...), left...)
	}
	return hash(combined)
}

func hash(value []byte) Hash {
	hashed := sha256.Sum256(value)
	return hashed[:]
}

func hashPairs(layer []Hash) []Hash {
	res := make([]Hash, 0, len(layer)/2)
	for i := 0; i < len(layer); i += 2 {
		res = append(res, hashLeftRight(layer[i], layer[i+1]))
	}
	return res
}

func padLayer(layer []Hash, zeroValue Hash) []Hash {
	if len(layer) == 0 {
		return []Hash{zeroValue, zeroValue}
	}
	if len(layer)%2 == 0 {
		return layer
	}

	res := make([]Hash, 0, len(layer)+1)
	res = append(res, layer...)
	return append(res, zeroValue)
}

func (h Hash) String() string {
	return hex.EncodeToString(h)
}
