package distribution

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-distributor/pkg/code/common"
	code_data "github.com/code-payments/code-distributor/pkg/code/data"
	"github.com/code-payments/code-distributor/pkg/code/data/custody"
	distribution_data "github.com/code-payments/code-distributor/pkg/code/data/distribution"
	pg "github.com/code-payments/code-distributor/pkg/database/postgres"
	"github.com/code-payments/code-distributor/pkg/database/query"
	"github.com/code-payments/code-distributor/pkg/merkletree"
	"github.com/code-payments/code-distributor/pkg/metrics"
	"github.com/code-payments/code-distributor/pkg/pointer"
	"github.com/code-payments/code-distributor/pkg/retry"
	"github.com/code-payments/code-distributor/pkg/retry/backoff"
	sync_util "github.com/code-payments/code-distributor/pkg/sync"
)

const (
	metricsStructName = "distribution.controller"

	claimEventName = "DistributionClaim"
	fundEventName  = "DistributionFunded"

	// Amounts and counters are persisted as signed 64 bit integers
	maxPersistedValue = math.MaxInt64
)

// auditIdNamespace scopes audit ids derived from idempotency keys
var auditIdNamespace = uuid.MustParse("5d0b4b1e-3c55-4a37-9d4b-8f62f0a4c1e7")

type idempotencyKeyContextKey struct{}

// WithIdempotencyKey ties the command run with ctx to key. The audit record
// the command writes gets an id derived from key, so a second command with
// the same key fails with ErrAlreadyProcessed and nothing it did is kept,
// whichever process runs it.
func WithIdempotencyKey(ctx context.Context, key []byte) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

func newAuditId(ctx context.Context) string {
	key, ok := ctx.Value(idempotencyKeyContextKey{}).([]byte)
	if !ok || len(key) == 0 {
		return uuid.NewString()
	}
	return uuid.NewSHA1(auditIdNamespace, key).String()
}

// InitializeParams configures a new distribution. Zero valued caps are
// uncapped.
type InitializeParams struct {
	Kind distribution_data.Kind

	// Defaults to the funder when not provided
	Authority *common.Account

	InitialFunding uint64

	// FixedAmount only
	ClaimAmount uint64

	// MerkleProof only
	MerkleRoot merkletree.Hash

	MaxTotalClaim   uint64
	MaxNumClaimants uint64
	ClaimCapacity   uint64
}

// ClaimRequest is a claimant's request against a distribution. Quarks is
// ignored for FixedAmount distributions. For Allowlist distributions, zero
// claims the full allocation. Proof is only used by MerkleProof
// distributions, where Quarks must match the amount committed to in the tree.
type ClaimRequest struct {
	Distribution string
	Quarks       uint64
	Proof        []merkletree.Hash
}

// AllowlistEntry lists a party in a distribution's registry. Allowlist
// distributions require an allocation. FixedAmount entries only record
// presence and must leave it nil.
type AllowlistEntry struct {
	Party      *common.Account
	Allocation *uint64
}

// Controller owns every mutation of distribution state. Commands against the
// same distribution are serialized locally with a striped lock, and across
// processes with serializable DB transactions.
type Controller struct {
	log   *logrus.Entry
	conf  *conf
	data  code_data.Provider
	clock clockwork.Clock

	distributionLocks *sync_util.StripedLock
}

func NewController(data code_data.Provider, configProvider ConfigProvider, clock clockwork.Clock) *Controller {
	conf := configProvider()
	return &Controller{
		log:   logrus.StandardLogger().WithField("type", "distribution/controller"),
		conf:  conf,
		data:  data,
		clock: clock,

		distributionLocks: sync_util.NewStripedLock(uint(conf.stripedLockParallelization.Get(context.Background()))),
	}
}

// Initialize creates a distribution, along with the custody account that
// holds its funds, and moves the initial funding from the funder's account.
func (c *Controller) Initialize(ctx context.Context, funder *common.Account, params *InitializeParams) (*distribution_data.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Initialize")
	defer tracer.End()

	log := c.log.WithFields(logrus.Fields{
		"method": "Initialize",
		"funder": funder.PublicKey().ToBase58(),
		"kind":   params.Kind.String(),
	})

	distributionAccount, err := common.NewRandomAccount()
	if err != nil {
		log.WithError(err).Warn("failure generating distribution address")
		tracer.OnError(err)
		return nil, err
	}

	custodyAccount, err := common.NewRandomAccount()
	if err != nil {
		log.WithError(err).Warn("failure generating custody address")
		tracer.OnError(err)
		return nil, err
	}

	authority := funder
	if params.Authority != nil {
		authority = params.Authority
	}

	record := &distribution_data.Record{
		Address:        distributionAccount.PublicKey().ToBase58(),
		Kind:           params.Kind,
		Authority:      authority.PublicKey().ToBase58(),
		Funder:         funder.PublicKey().ToBase58(),
		CustodyAccount: custodyAccount.PublicKey().ToBase58(),

		ClaimAmount: params.ClaimAmount,
		MerkleRoot:  params.MerkleRoot,

		MaxTotalClaim:   params.MaxTotalClaim,
		MaxNumClaimants: params.MaxNumClaimants,
		ClaimCapacity:   params.ClaimCapacity,

		TotalFunded: params.InitialFunding,

		CreatedAt:     c.clock.Now(),
		LastUpdatedAt: c.clock.Now(),
	}
	if err := validateInitializeParams(record); err != nil {
		return nil, err
	}

	log = log.WithField("distribution", record.Address)

	err = c.executeInTx(ctx, func(ctx context.Context) error {
		err := c.data.CreateDistribution(ctx, record)
		if err != nil {
			return errors.Wrap(err, "error creating distribution")
		}

		err = c.data.CreateCustodyAccount(ctx, &custody.AccountRecord{
			Address:   record.CustodyAccount,
			Owner:     record.Address,
			CreatedAt: c.clock.Now(),
		})
		if err != nil {
			return errors.Wrap(err, "error creating custody account")
		}

		if params.InitialFunding > 0 {
			err = c.data.ExecuteCustodyTransfer(ctx, &custody.TransferRecord{
				TransferId:  uuid.NewString(),
				Source:      record.Funder,
				Destination: record.CustodyAccount,
				Authority:   record.Funder,
				Quarks:      params.InitialFunding,
				CreatedAt:   c.clock.Now(),
			})
			if err != nil {
				return toFundingTransferError(err)
			}
		}

		return c.saveAuditRecord(ctx, record.Address, distribution_data.AuditKindInitialize, funder, map[string]interface{}{
			"kind":              record.Kind.String(),
			"authority":         record.Authority,
			"custody_account":   record.CustodyAccount,
			"initial_funding":   params.InitialFunding,
			"claim_amount":      record.ClaimAmount,
			"merkle_root":       merkletree.Hash(record.MerkleRoot).String(),
			"max_total_claim":   record.MaxTotalClaim,
			"max_num_claimants": record.MaxNumClaimants,
			"claim_capacity":    record.ClaimCapacity,
		})
	})
	if err != nil {
		c.logUnexpectedError(log, err, "failure initializing distribution")
		tracer.OnError(err)
		return nil, err
	}

	log.Info("distribution initialized")

	return record, nil
}

// Claim pays out a claimant's entitlement. The ledger is committed and funds
// are moved in the same transaction, so a failed transfer leaves no claim
// recorded.
func (c *Controller) Claim(ctx context.Context, claimant *common.Account, req *ClaimRequest) (*distribution_data.ClaimRecord, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Claim")
	defer tracer.End()
	tracer.AddAttribute("distribution", req.Distribution)

	log := c.log.WithFields(logrus.Fields{
		"method":       "Claim",
		"distribution": req.Distribution,
		"claimant":     claimant.PublicKey().ToBase58(),
		"quarks":       req.Quarks,
	})

	if c.conf.disableClaims.Get(ctx) {
		return nil, ErrClaimsDisabled
	}

	unlock, err := c.lockDistribution(ctx, req.Distribution)
	if err != nil {
		log.WithError(err).Warn("failure acquiring distribution lock")
		tracer.OnError(err)
		return nil, err
	}
	defer unlock()

	var state *distribution_data.Record
	var claim *distribution_data.ClaimRecord
	err = c.executeInTx(ctx, func(ctx context.Context) error {
		var err error
		state, err = c.getDistribution(ctx, req.Distribution)
		if err != nil {
			return err
		}

		var eligibility *distribution_data.EligibilityRecord
		if state.Kind != distribution_data.KindMerkleProof {
			eligibility, err = c.data.GetDistributionEligibility(ctx, state.Address, claimant.PublicKey().ToBase58())
			if err == distribution_data.ErrNotListed {
				eligibility = nil
			} else if err != nil {
				return errors.Wrap(err, "error getting eligibility")
			}
		}

		var alreadyClaimed bool
		_, err = c.data.GetDistributionClaim(ctx, state.Address, claimant.PublicKey().ToBase58())
		if err == nil {
			alreadyClaimed = true
		} else if err != distribution_data.ErrClaimNotFound {
			return errors.Wrap(err, "error getting existing claim")
		}

		next, newClaim, err := checkClaim(&claimCheck{
			state:          state,
			eligibility:    eligibility,
			alreadyClaimed: alreadyClaimed,
			claimant:       claimant,
			requested:      req.Quarks,
			proof:          req.Proof,
		})
		if err != nil {
			return err
		}

		custodyAccount, err := c.data.GetCustodyAccount(ctx, state.CustodyAccount)
		if err == custody.ErrAccountNotFound {
			return errors.Wrap(ErrInvalidPersistedState, "custody account not found")
		} else if err != nil {
			return errors.Wrap(err, "error getting custody account")
		}

		if custodyAccount.Quarks < newClaim.Quarks {
			return errors.Wrap(ErrTransferFailure, "custody balance is insufficient")
		}

		newClaim.TransferId = uuid.NewString()
		newClaim.CreatedAt = c.clock.Now()
		next.LastUpdatedAt = c.clock.Now()

		err = c.data.CommitDistributionClaim(ctx, next, newClaim)
		if err == distribution_data.ErrAlreadyClaimed {
			return ErrAlreadyClaimed
		} else if err != nil {
			return errors.Wrap(err, "error committing claim")
		}

		err = c.data.ExecuteCustodyTransfer(ctx, &custody.TransferRecord{
			TransferId:  newClaim.TransferId,
			Source:      state.CustodyAccount,
			Destination: newClaim.Claimant,
			Authority:   state.Address,
			Quarks:      newClaim.Quarks,
			CreatedAt:   c.clock.Now(),
		})
		if err != nil {
			return toClaimTransferError(err)
		}

		claim = newClaim
		return nil
	})
	if err != nil {
		c.logUnexpectedError(log, err, "failure processing claim")
		tracer.OnError(err)
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"claimed": claim.Quarks,
		"index":   claim.Index,
	}).Info("claim processed")

	metrics.RecordEvent(ctx, claimEventName, map[string]interface{}{
		"distribution": claim.Distribution,
		"kind":         state.Kind.String(),
		"claimant":     claim.Claimant,
		"quarks":       claim.Quarks,
		"index":        claim.Index,
	})

	return claim, nil
}

// AddEligible lists a party within a FixedAmount or Allowlist distribution.
// Allocation is required for Allowlist distributions and must be nil
// otherwise.
func (c *Controller) AddEligible(ctx context.Context, authority *common.Account, distributionAddress string, party *common.Account, allocation *uint64) (*distribution_data.EligibilityRecord, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "AddEligible")
	defer tracer.End()
	tracer.AddAttribute("distribution", distributionAddress)

	log := c.log.WithFields(logrus.Fields{
		"method":       "AddEligible",
		"distribution": distributionAddress,
		"authority":    authority.PublicKey().ToBase58(),
		"party":        party.PublicKey().ToBase58(),
	})

	unlock, err := c.lockDistribution(ctx, distributionAddress)
	if err != nil {
		log.WithError(err).Warn("failure acquiring distribution lock")
		tracer.OnError(err)
		return nil, err
	}
	defer unlock()

	var record *distribution_data.EligibilityRecord
	err = c.executeInTx(ctx, func(ctx context.Context) error {
		state, err := c.getDistribution(ctx, distributionAddress)
		if err != nil {
			return err
		}

		if err := requireAuthority(state, authority); err != nil {
			return err
		}

		switch state.Kind {
		case distribution_data.KindFixedAmount:
			if allocation != nil {
				return errors.Wrap(ErrInvalidParameters, "allocation cannot be set for fixed amount distributions")
			}
		case distribution_data.KindAllowlist:
			if allocation == nil {
				return errors.Wrap(ErrInvalidParameters, "allocation is required for allowlist distributions")
			}
			if *allocation > maxPersistedValue {
				return errors.Wrap(ErrInvalidParameters, "allocation is too large")
			}
		default:
			return errors.Wrap(ErrInvalidParameters, "distribution doesn't use an eligibility registry")
		}

		newRecord := &distribution_data.EligibilityRecord{
			Distribution: state.Address,
			Party:        party.PublicKey().ToBase58(),
			Allocation:   allocation,
			CreatedAt:    c.clock.Now(),
		}

		err = c.data.AddDistributionEligibility(ctx, newRecord)
		if err == distribution_data.ErrAlreadyListed {
			return ErrAlreadyListed
		} else if err != nil {
			return errors.Wrap(err, "error adding eligibility")
		}

		// Bump the version so in flight claims against the prior registry
		// are retried
		if err := c.touchDistribution(ctx, state); err != nil {
			return err
		}

		details := map[string]interface{}{
			"party": newRecord.Party,
		}
		if allocation != nil {
			details["allocation"] = *allocation
		}
		if err := c.saveAuditRecord(ctx, state.Address, distribution_data.AuditKindAddEligible, authority, details); err != nil {
			return err
		}

		record = newRecord
		return nil
	})
	if err != nil {
		c.logUnexpectedError(log, err, "failure adding eligible party")
		tracer.OnError(err)
		return nil, err
	}

	log.Debug("eligible party added")

	return record, nil
}

// Fund tops up a distribution's custody account from the funder's account.
// Anyone can fund a distribution.
func (c *Controller) Fund(ctx context.Context, funder *common.Account, distributionAddress string, quarks uint64) (*distribution_data.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Fund")
	defer tracer.End()
	tracer.AddAttribute("distribution", distributionAddress)

	log := c.log.WithFields(logrus.Fields{
		"method":       "Fund",
		"distribution": distributionAddress,
		"funder":       funder.PublicKey().ToBase58(),
		"quarks":       quarks,
	})

	if quarks == 0 {
		return nil, errors.Wrap(ErrInvalidParameters, "quarks must be positive")
	}

	unlock, err := c.lockDistribution(ctx, distributionAddress)
	if err != nil {
		log.WithError(err).Warn("failure acquiring distribution lock")
		tracer.OnError(err)
		return nil, err
	}
	defer unlock()

	var updated *distribution_data.Record
	err = c.executeInTx(ctx, func(ctx context.Context) error {
		state, err := c.getDistribution(ctx, distributionAddress)
		if err != nil {
			return err
		}

		if state.TotalFunded > maxPersistedValue || quarks > maxPersistedValue-state.TotalFunded {
			return errors.Wrap(ErrInvalidParameters, "total funded overflow")
		}

		err = c.data.ExecuteCustodyTransfer(ctx, &custody.TransferRecord{
			TransferId:  uuid.NewString(),
			Source:      funder.PublicKey().ToBase58(),
			Destination: state.CustodyAccount,
			Authority:   funder.PublicKey().ToBase58(),
			Quarks:      quarks,
			CreatedAt:   c.clock.Now(),
		})
		if err != nil {
			return toFundingTransferError(err)
		}

		next := state.Clone()
		next.TotalFunded += quarks
		next.LastUpdatedAt = c.clock.Now()
		err = c.data.UpdateDistribution(ctx, &next)
		if err != nil {
			return errors.Wrap(err, "error updating distribution")
		}

		err = c.saveAuditRecord(ctx, state.Address, distribution_data.AuditKindFund, funder, map[string]interface{}{
			"quarks":       quarks,
			"total_funded": next.TotalFunded,
		})
		if err != nil {
			return err
		}

		updated = &next
		return nil
	})
	if err != nil {
		c.logUnexpectedError(log, err, "failure funding distribution")
		tracer.OnError(err)
		return nil, err
	}

	log.Info("distribution funded")

	metrics.RecordEvent(ctx, fundEventName, map[string]interface{}{
		"distribution": updated.Address,
		"funder":       funder.PublicKey().ToBase58(),
		"quarks":       quarks,
		"total_funded": updated.TotalFunded,
	})

	return updated, nil
}

// SetClaimAmount changes the per claimant amount of a FixedAmount
// distribution. Claims already recorded keep the amount they were paid.
func (c *Controller) SetClaimAmount(ctx context.Context, authority *common.Account, distributionAddress string, quarks uint64) (*distribution_data.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SetClaimAmount")
	defer tracer.End()
	tracer.AddAttribute("distribution", distributionAddress)

	log := c.log.WithFields(logrus.Fields{
		"method":       "SetClaimAmount",
		"distribution": distributionAddress,
		"authority":    authority.PublicKey().ToBase58(),
		"quarks":       quarks,
	})

	if quarks == 0 {
		return nil, errors.Wrap(ErrInvalidParameters, "claim amount must be positive")
	}
	if quarks > maxPersistedValue {
		return nil, errors.Wrap(ErrInvalidParameters, "claim amount is too large")
	}

	unlock, err := c.lockDistribution(ctx, distributionAddress)
	if err != nil {
		log.WithError(err).Warn("failure acquiring distribution lock")
		tracer.OnError(err)
		return nil, err
	}
	defer unlock()

	var updated *distribution_data.Record
	err = c.executeInTx(ctx, func(ctx context.Context) error {
		state, err := c.getDistribution(ctx, distributionAddress)
		if err != nil {
			return err
		}

		if err := requireAuthority(state, authority); err != nil {
			return err
		}

		if state.Kind != distribution_data.KindFixedAmount {
			return errors.Wrap(ErrInvalidParameters, "claim amount only applies to fixed amount distributions")
		}

		if err := validateClaimAmount(state.MaxTotalClaim, quarks); err != nil {
			return err
		}

		next := state.Clone()
		next.ClaimAmount = quarks
		next.LastUpdatedAt = c.clock.Now()
		err = c.data.UpdateDistribution(ctx, &next)
		if err != nil {
			return errors.Wrap(err, "error updating distribution")
		}

		err = c.saveAuditRecord(ctx, state.Address, distribution_data.AuditKindSetClaimAmount, authority, map[string]interface{}{
			"previous_claim_amount": state.ClaimAmount,
			"claim_amount":          quarks,
		})
		if err != nil {
			return err
		}

		updated = &next
		return nil
	})
	if err != nil {
		c.logUnexpectedError(log, err, "failure setting claim amount")
		tracer.OnError(err)
		return nil, err
	}

	log.Info("claim amount updated")

	return updated, nil
}

// SetAllowlist replaces the registry of an Allowlist or FixedAmount
// distribution. Claims already recorded are unaffected, and a party that
// already claimed can't claim again after being relisted.
func (c *Controller) SetAllowlist(ctx context.Context, authority *common.Account, distributionAddress string, entries []*AllowlistEntry) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SetAllowlist")
	defer tracer.End()
	tracer.AddAttribute("distribution", distributionAddress)

	log := c.log.WithFields(logrus.Fields{
		"method":       "SetAllowlist",
		"distribution": distributionAddress,
		"authority":    authority.PublicKey().ToBase58(),
		"entries":      len(entries),
	})

	records := make([]*distribution_data.EligibilityRecord, len(entries))
	seen := make(map[string]struct{})
	for i, entry := range entries {
		party := entry.Party.PublicKey().ToBase58()
		if _, ok := seen[party]; ok {
			return errors.Wrapf(ErrAlreadyListed, "%s is listed more than once", party)
		}
		seen[party] = struct{}{}

		if entry.Allocation != nil && *entry.Allocation > maxPersistedValue {
			return errors.Wrapf(ErrInvalidParameters, "allocation for %s is too large", party)
		}

		records[i] = &distribution_data.EligibilityRecord{
			Distribution: distributionAddress,
			Party:        party,
			Allocation:   pointer.Uint64Copy(entry.Allocation),
			CreatedAt:    c.clock.Now(),
		}
	}

	unlock, err := c.lockDistribution(ctx, distributionAddress)
	if err != nil {
		log.WithError(err).Warn("failure acquiring distribution lock")
		tracer.OnError(err)
		return err
	}
	defer unlock()

	err = c.executeInTx(ctx, func(ctx context.Context) error {
		state, err := c.getDistribution(ctx, distributionAddress)
		if err != nil {
			return err
		}

		if err := requireAuthority(state, authority); err != nil {
			return err
		}

		for _, record := range records {
			switch state.Kind {
			case distribution_data.KindFixedAmount:
				if record.Allocation != nil {
					return errors.Wrap(ErrInvalidParameters, "allocation cannot be set for fixed amount distributions")
				}
			case distribution_data.KindAllowlist:
				if record.Allocation == nil {
					return errors.Wrap(ErrInvalidParameters, "allocation is required for allowlist distributions")
				}
			default:
				return errors.Wrap(ErrInvalidParameters, "distribution doesn't use an eligibility registry")
			}
		}

		err = c.data.ReplaceDistributionEligibility(ctx, state.Address, records)
		if err != nil {
			return errors.Wrap(err, "error replacing eligibility")
		}

		if err := c.touchDistribution(ctx, state); err != nil {
			return err
		}

		// Presence only entries are recorded with a null allocation
		allowlist := make(map[string]*uint64)
		for _, record := range records {
			allowlist[record.Party] = record.Allocation
		}
		return c.saveAuditRecord(ctx, state.Address, distribution_data.AuditKindSetAllowlist, authority, map[string]interface{}{
			"allowlist": allowlist,
		})
	})
	if err != nil {
		c.logUnexpectedError(log, err, "failure setting allowlist")
		tracer.OnError(err)
		return err
	}

	log.Info("allowlist replaced")

	return nil
}

// GetDistribution gets the current state of a distribution
func (c *Controller) GetDistribution(ctx context.Context, distributionAddress string) (*distribution_data.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetDistribution")
	defer tracer.End()

	record, err := c.getDistribution(ctx, distributionAddress)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return record, nil
}

// GetClaim gets a claimant's recorded claim against a distribution
func (c *Controller) GetClaim(ctx context.Context, distributionAddress string, claimant *common.Account) (*distribution_data.ClaimRecord, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetClaim")
	defer tracer.End()

	if _, err := c.getDistribution(ctx, distributionAddress); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	record, err := c.data.GetDistributionClaim(ctx, distributionAddress, claimant.PublicKey().ToBase58())
	if err == distribution_data.ErrClaimNotFound {
		return nil, ErrClaimNotFound
	} else if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error getting claim")
	}
	return record, nil
}

// GetEligibility gets a party's registry entry. ErrNotEligible is returned
// when the party isn't listed.
func (c *Controller) GetEligibility(ctx context.Context, distributionAddress string, party *common.Account) (*distribution_data.EligibilityRecord, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetEligibility")
	defer tracer.End()

	if _, err := c.getDistribution(ctx, distributionAddress); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	record, err := c.data.GetDistributionEligibility(ctx, distributionAddress, party.PublicKey().ToBase58())
	if err == distribution_data.ErrNotListed {
		return nil, ErrNotEligible
	} else if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error getting eligibility")
	}
	return record, nil
}

// GetAuditLog gets a page of the administrative history of a distribution.
// Without options, up to the first 1000 entries are returned oldest first.
func (c *Controller) GetAuditLog(ctx context.Context, distributionAddress string, opts ...query.Option) ([]*distribution_data.AuditRecord, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetAuditLog")
	defer tracer.End()

	if _, err := c.getDistribution(ctx, distributionAddress); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	records, err := c.data.GetDistributionAuditRecords(ctx, distributionAddress, opts...)
	if err == query.ErrQueryNotSupported || err == query.ErrInvalidCursor {
		tracer.OnError(err)
		return nil, errors.Wrap(ErrInvalidParameters, err.Error())
	}
	if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error getting audit records")
	}
	return records, nil
}

// getDistribution loads a distribution, refusing to operate on state that
// doesn't validate
func (c *Controller) getDistribution(ctx context.Context, address string) (*distribution_data.Record, error) {
	record, err := c.data.GetDistribution(ctx, address)
	if err == distribution_data.ErrDistributionNotFound {
		return nil, ErrDistributionNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting distribution")
	}

	if err := record.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidPersistedState, err.Error())
	}

	return record, nil
}

func (c *Controller) touchDistribution(ctx context.Context, state *distribution_data.Record) error {
	next := state.Clone()
	next.LastUpdatedAt = c.clock.Now()
	if err := c.data.UpdateDistribution(ctx, &next); err != nil {
		return errors.Wrap(err, "error updating distribution")
	}
	return nil
}

func (c *Controller) saveAuditRecord(ctx context.Context, distributionAddress string, kind distribution_data.AuditKind, actor *common.Account, details map[string]interface{}) error {
	encoded, err := json.Marshal(details)
	if err != nil {
		return errors.Wrap(err, "error encoding audit details")
	}

	err = c.data.SaveDistributionAuditRecord(ctx, &distribution_data.AuditRecord{
		AuditId:      newAuditId(ctx),
		Distribution: distributionAddress,
		Kind:         kind,
		Actor:        actor.PublicKey().ToBase58(),
		Details:      string(encoded),
		CreatedAt:    c.clock.Now(),
	})
	if errors.Is(err, distribution_data.ErrAuditRecordExists) {
		return ErrAlreadyProcessed
	} else if err != nil {
		return errors.Wrap(err, "error saving audit record")
	}
	return nil
}

// executeInTx runs fn in a serializable transaction, retrying when it lost a
// race with another writer
func (c *Controller) executeInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := retry.Retry(
		func() error {
			return c.data.ExecuteInTx(ctx, sql.LevelSerializable, fn)
		},
		retry.Limit(uint(c.conf.maxTxAttempts.Get(ctx))),
		retry.RetriableErrorFunc(isRetriableTxError),
		retry.WhileContextAlive(ctx),
		retry.BackoffWithJitter(backoff.BinaryExponential(c.conf.txRetryBaseDelay.Get(ctx)), c.conf.txRetryMaxDelay.Get(ctx), 0.25),
	)
	return err
}

// lockDistribution acquires the local lock for a distribution, giving up
// after the configured timeout or when ctx is done
func (c *Controller) lockDistribution(ctx context.Context, address string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, c.conf.lockTimeout.Get(ctx))
	defer cancel()

	unlock, err := c.distributionLocks.LockContext(ctx, []byte(address))
	if err != nil {
		return nil, errors.Wrap(err, "timed out acquiring distribution lock")
	}
	return unlock, nil
}

func (c *Controller) logUnexpectedError(log *logrus.Entry, err error, message string) {
	if isDomainError(err) {
		log.WithError(err).Debug(message)
		return
	}
	log.WithError(err).Warn(message)
}

func requireAuthority(state *distribution_data.Record, signer *common.Account) error {
	if state.Authority != signer.PublicKey().ToBase58() {
		return ErrInsufficientAuthorization
	}
	return nil
}

func validateInitializeParams(record *distribution_data.Record) error {
	if err := record.Validate(); err != nil {
		return errors.Wrap(ErrInvalidParameters, err.Error())
	}

	if record.Kind == distribution_data.KindMerkleProof && record.MaxTotalClaim == 0 && record.MaxNumClaimants == 0 {
		return errors.Wrap(ErrInvalidParameters, "merkle proof distributions require a max total claim or max number of claimants")
	}

	for _, field := range []struct {
		name  string
		value uint64
	}{
		{"initial funding", record.TotalFunded},
		{"claim amount", record.ClaimAmount},
		{"max total claim", record.MaxTotalClaim},
		{"max number of claimants", record.MaxNumClaimants},
		{"claim capacity", record.ClaimCapacity},
	} {
		if field.value > maxPersistedValue {
			return errors.Wrapf(ErrInvalidParameters, "%s is too large", field.name)
		}
	}

	if record.Kind == distribution_data.KindFixedAmount {
		return validateClaimAmount(record.MaxTotalClaim, record.ClaimAmount)
	}
	return nil
}

// validateClaimAmount ensures a single fixed amount claim fits under the
// aggregate cap
func validateClaimAmount(maxTotalClaim, claimAmount uint64) error {
	if maxTotalClaim > 0 && claimAmount > maxTotalClaim {
		return errors.Wrap(ErrInvalidParameters, "claim amount exceeds max total claim")
	}
	return nil
}

func isRetriableTxError(err error) bool {
	return pg.IsSerializationFailure(err) || errors.Is(err, distribution_data.ErrStaleDistribution)
}

// toFundingTransferError maps failures moving funds from a funder's account
func toFundingTransferError(err error) error {
	if isRetriableTxError(err) {
		return err
	}

	switch errors.Cause(err) {
	case custody.ErrUnauthorized:
		return ErrInsufficientAuthorization
	case custody.ErrAccountNotFound:
		return errors.Wrap(ErrTransferFailure, "funding account not found")
	case custody.ErrInsufficientBalance:
		return errors.Wrap(ErrTransferFailure, "funding account balance is insufficient")
	}
	return errors.Wrap(ErrTransferFailure, err.Error())
}

// toClaimTransferError maps failures moving funds out of custody. The
// distribution always owns its custody account, so every failure is a
// transfer failure.
func toClaimTransferError(err error) error {
	if isRetriableTxError(err) {
		return err
	}
	return errors.Wrap(ErrTransferFailure, err.Error())
}

func isDomainError(err error) bool {
	for _, domainErr := range []error{
		ErrNotEligible,
		ErrAlreadyClaimed,
		ErrAmountExceedsAllocation,
		ErrCapacityExceeded,
		ErrAggregateCapExceeded,
		ErrInvalidProof,
		ErrAlreadyListed,
		ErrInsufficientAuthorization,
		ErrDistributionNotFound,
		ErrClaimNotFound,
		ErrInvalidParameters,
		ErrClaimsDisabled,
		ErrAlreadyProcessed,
	} {
		if errors.Is(err, domainErr) {
			return true
		}
	}
	return false
}
