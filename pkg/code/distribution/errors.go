package distribution

import (
	"github.com/pkg/errors"
)

var (
	ErrNotEligible               = errors.New("claimant is not eligible")
	ErrAlreadyClaimed            = errors.New("claimant already claimed")
	ErrAmountExceedsAllocation   = errors.New("requested amount exceeds allocation")
	ErrCapacityExceeded          = errors.New("claim capacity exceeded")
	ErrAggregateCapExceeded      = errors.New("aggregate claim cap exceeded")
	ErrInvalidProof              = errors.New("merkle proof is invalid")
	ErrAlreadyListed             = errors.New("party is already listed")
	ErrInsufficientAuthorization = errors.New("insufficient authorization")
	ErrTransferFailure           = errors.New("custody transfer failed")
	ErrInvalidPersistedState     = errors.New("persisted state is invalid")

	ErrDistributionNotFound = errors.New("distribution not found")
	ErrClaimNotFound        = errors.New("claim not found")
	ErrInvalidParameters    = errors.New("invalid parameters")
	ErrClaimsDisabled       = errors.New("claims are disabled")
	ErrAlreadyProcessed     = errors.New("request was already processed")
)
