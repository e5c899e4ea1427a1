package distribution

import (
	"bytes"
	"errors"
	"math"
	"time"

	"github.com/code-payments/code-distributor/pkg/pointer"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindFixedAmount
	KindAllowlist
	KindMerkleProof
)

const merkleRootSize = 32

// Record is the state of a single distribution. Counters only ever increase
// and never pass their configured caps. Version is advanced by the store on
// every committed mutation.
type Record struct {
	Id uint64

	Address        string
	Kind           Kind
	Authority      string
	Funder         string
	CustodyAccount string

	// FixedAmount only
	ClaimAmount uint64

	// MerkleProof only
	MerkleRoot []byte

	// Zero values are uncapped
	MaxTotalClaim   uint64
	MaxNumClaimants uint64
	ClaimCapacity   uint64

	TotalFunded        uint64
	TotalAmountClaimed uint64
	NumClaimantsServed uint64

	Version uint64

	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// EligibilityRecord lists a party as being allowed to claim. Allocation is nil
// for FixedAmount distributions, where presence alone is enough.
type EligibilityRecord struct {
	Id uint64

	Distribution string
	Party        string
	Allocation   *uint64

	CreatedAt time.Time
}

// ClaimRecord is an entry in the claim ledger. Index is the ordinal slot the
// claim occupies and is never reused.
type ClaimRecord struct {
	Id uint64

	Distribution string
	Claimant     string
	Quarks       uint64
	Index        uint64
	TransferId   string

	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if len(r.Address) == 0 {
		return errors.New("address is required")
	}

	if len(r.Authority) == 0 {
		return errors.New("authority is required")
	}

	if len(r.Funder) == 0 {
		return errors.New("funder is required")
	}

	if len(r.CustodyAccount) == 0 {
		return errors.New("custody account is required")
	}

	switch r.Kind {
	case KindFixedAmount:
		if r.ClaimAmount == 0 {
			return errors.New("claim amount is required")
		}
		if len(r.MerkleRoot) != 0 {
			return errors.New("merkle root cannot be set")
		}
	case KindAllowlist:
		if r.ClaimAmount != 0 {
			return errors.New("claim amount cannot be set")
		}
		if len(r.MerkleRoot) != 0 {
			return errors.New("merkle root cannot be set")
		}
	case KindMerkleProof:
		if r.ClaimAmount != 0 {
			return errors.New("claim amount cannot be set")
		}
		if len(r.MerkleRoot) != merkleRootSize {
			return errors.New("merkle root must be 32 bytes")
		}
		if r.ClaimCapacity != 0 {
			return errors.New("claim capacity cannot be set")
		}
	default:
		return errors.New("invalid distribution kind")
	}

	if r.TotalAmountClaimed > r.TotalFunded {
		return errors.New("total amount claimed exceeds total funded")
	}

	if r.MaxTotalClaim > 0 && r.TotalAmountClaimed > r.MaxTotalClaim {
		return errors.New("total amount claimed exceeds max total claim")
	}

	if r.MaxNumClaimants > 0 && r.NumClaimantsServed > r.MaxNumClaimants {
		return errors.New("number of claimants served exceeds max number of claimants")
	}

	if r.ClaimCapacity > 0 && r.NumClaimantsServed > r.ClaimCapacity {
		return errors.New("number of claimants served exceeds claim capacity")
	}

	if r.Version == math.MaxUint64 {
		return errors.New("version overflow")
	}

	return nil
}

func (r *Record) Clone() Record {
	var merkleRoot []byte
	if r.MerkleRoot != nil {
		merkleRoot = make([]byte, len(r.MerkleRoot))
		copy(merkleRoot, r.MerkleRoot)
	}

	return Record{
		Id: r.Id,

		Address:        r.Address,
		Kind:           r.Kind,
		Authority:      r.Authority,
		Funder:         r.Funder,
		CustodyAccount: r.CustodyAccount,

		ClaimAmount: r.ClaimAmount,
		MerkleRoot:  merkleRoot,

		MaxTotalClaim:   r.MaxTotalClaim,
		MaxNumClaimants: r.MaxNumClaimants,
		ClaimCapacity:   r.ClaimCapacity,

		TotalFunded:        r.TotalFunded,
		TotalAmountClaimed: r.TotalAmountClaimed,
		NumClaimantsServed: r.NumClaimantsServed,

		Version: r.Version,

		CreatedAt:     r.CreatedAt,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Address = r.Address
	dst.Kind = r.Kind
	dst.Authority = r.Authority
	dst.Funder = r.Funder
	dst.CustodyAccount = r.CustodyAccount

	dst.ClaimAmount = r.ClaimAmount
	dst.MerkleRoot = nil
	if r.MerkleRoot != nil {
		dst.MerkleRoot = append([]byte{}, r.MerkleRoot...)
	}

	dst.MaxTotalClaim = r.MaxTotalClaim
	dst.MaxNumClaimants = r.MaxNumClaimants
	dst.ClaimCapacity = r.ClaimCapacity

	dst.TotalFunded = r.TotalFunded
	dst.TotalAmountClaimed = r.TotalAmountClaimed
	dst.NumClaimantsServed = r.NumClaimantsServed

	dst.Version = r.Version

	dst.CreatedAt = r.CreatedAt
	dst.LastUpdatedAt = r.LastUpdatedAt
}

// Equals compares the configuration and counters of two records, ignoring
// IDs and timestamps
func (r *Record) Equals(other *Record) bool {
	return r.Address == other.Address &&
		r.Kind == other.Kind &&
		r.Authority == other.Authority &&
		r.Funder == other.Funder &&
		r.CustodyAccount == other.CustodyAccount &&
		r.ClaimAmount == other.ClaimAmount &&
		bytes.Equal(r.MerkleRoot, other.MerkleRoot) &&
		r.MaxTotalClaim == other.MaxTotalClaim &&
		r.MaxNumClaimants == other.MaxNumClaimants &&
		r.ClaimCapacity == other.ClaimCapacity &&
		r.TotalFunded == other.TotalFunded &&
		r.TotalAmountClaimed == other.TotalAmountClaimed &&
		r.NumClaimantsServed == other.NumClaimantsServed &&
		r.Version == other.Version
}

func (r *EligibilityRecord) Validate() error {
	if len(r.Distribution) == 0 {
		return errors.New("distribution is required")
	}

	if len(r.Party) == 0 {
		return errors.New("party is required")
	}

	return nil
}

func (r *EligibilityRecord) Clone() EligibilityRecord {
	return EligibilityRecord{
		Id: r.Id,

		Distribution: r.Distribution,
		Party:        r.Party,
		Allocation:   pointer.Uint64Copy(r.Allocation),

		CreatedAt: r.CreatedAt,
	}
}

func (r *EligibilityRecord) CopyTo(dst *EligibilityRecord) {
	cloned := r.Clone()

	dst.Id = cloned.Id

	dst.Distribution = cloned.Distribution
	dst.Party = cloned.Party
	dst.Allocation = cloned.Allocation

	dst.CreatedAt = cloned.CreatedAt
}

func (r *ClaimRecord) Validate() error {
	if len(r.Distribution) == 0 {
		return errors.New("distribution is required")
	}

	if len(r.Claimant) == 0 {
		return errors.New("claimant is required")
	}

	if r.Quarks == 0 {
		return errors.New("quarks must be positive")
	}

	if len(r.TransferId) == 0 {
		return errors.New("transfer id is required")
	}

	return nil
}

func (r *ClaimRecord) Clone() ClaimRecord {
	return ClaimRecord{
		Id: r.Id,

		Distribution: r.Distribution,
		Claimant:     r.Claimant,
		Quarks:       r.Quarks,
		Index:        r.Index,
		TransferId:   r.TransferId,

		CreatedAt: r.CreatedAt,
	}
}

func (r *ClaimRecord) CopyTo(dst *ClaimRecord) {
	dst.Id = r.Id

	dst.Distribution = r.Distribution
	dst.Claimant = r.Claimant
	dst.Quarks = r.Quarks
	dst.Index = r.Index
	dst.TransferId = r.TransferId

	dst.CreatedAt = r.CreatedAt
}

func (k Kind) String() string {
	switch k {
	case KindFixedAmount:
		return "fixed_amount"
	case KindAllowlist:
		return "allowlist"
	case KindMerkleProof:
		return "merkle_proof"
	}
	return "unknown"
}

// KindFromString is the inverse of Kind.String. KindUnknown is returned for
// unrecognized values.
func KindFromString(value string) Kind {
	switch value {
	case "fixed_amount":
		return KindFixedAmount
	case "allowlist":
		return KindAllowlist
	case "merkle_proof":
		return KindMerkleProof
	}
	return KindUnknown
}
