package distribution

import (
	"context"
	"errors"

	"github.com/code-payments/code-distributor/pkg/database/query"
)

var (
	ErrDistributionExists   = errors.New("distribution already exists")
	ErrDistributionNotFound = errors.New("distribution not found")
	ErrStaleDistribution    = errors.New("distribution version is stale")

	ErrAlreadyListed = errors.New("party is already listed")
	ErrNotListed     = errors.New("party is not listed")

	ErrAlreadyClaimed = errors.New("claimant already claimed")
	ErrClaimNotFound  = errors.New("claim not found")

	ErrAuditRecordExists = errors.New("audit record already exists")
)

// Store persists distribution state, the eligibility registry, the claim
// ledger and the audit log. It performs no authorization, callers are
// expected to have verified the acting party before mutating anything.
type Store interface {
	// CreateDistribution creates a new distribution at version zero.
	// ErrDistributionExists is returned if the address is already in use.
	CreateDistribution(ctx context.Context, record *Record) error

	// GetDistribution gets a distribution by address. ErrDistributionNotFound is
	// returned if it doesn't exist.
	GetDistribution(ctx context.Context, address string) (*Record, error)

	// GetAllDistributions gets all distributions ordered by creation
	GetAllDistributions(ctx context.Context) ([]*Record, error)

	// UpdateDistribution saves the record when its version matches the persisted
	// one, then advances the version. ErrStaleDistribution is returned otherwise.
	UpdateDistribution(ctx context.Context, record *Record) error

	// AddEligible adds a party to a distribution's registry. ErrAlreadyListed is
	// returned if the party is already present, leaving the entry untouched.
	AddEligible(ctx context.Context, record *EligibilityRecord) error

	// GetEligible gets a party's entry in the registry. ErrNotListed is returned
	// if the party isn't present.
	GetEligible(ctx context.Context, distribution, party string) (*EligibilityRecord, error)

	// GetAllEligible gets the full registry for a distribution, ordered by party
	GetAllEligible(ctx context.Context, distribution string) ([]*EligibilityRecord, error)

	// ReplaceEligible swaps the full registry for a distribution. ErrAlreadyListed
	// is returned if records contains a party more than once.
	ReplaceEligible(ctx context.Context, distribution string, records []*EligibilityRecord) error

	// CommitClaim records a claim and saves the distribution's updated counters
	// as a unit. The distribution is version checked like UpdateDistribution.
	// ErrAlreadyClaimed is returned if the claimant has a claim already.
	CommitClaim(ctx context.Context, record *Record, claim *ClaimRecord) error

	// GetClaim gets a claimant's claim. ErrClaimNotFound is returned if the
	// claimant hasn't claimed.
	GetClaim(ctx context.Context, distribution, claimant string) (*ClaimRecord, error)

	// GetAllClaims gets all claims for a distribution ordered by index
	GetAllClaims(ctx context.Context, distribution string) ([]*ClaimRecord, error)

	// CountClaims counts the claims for a distribution
	CountClaims(ctx context.Context, distribution string) (uint64, error)

	// SaveAuditRecord appends to the audit log. ErrAuditRecordExists is returned
	// if the ID is already in use.
	SaveAuditRecord(ctx context.Context, record *AuditRecord) error

	// GetAuditRecords gets a page of the audit log for a distribution. Records
	// are ordered by ID, which follows the order they were saved in.
	GetAuditRecords(ctx context.Context, distribution string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*AuditRecord, error)
}
