package distribution

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type AuditKind string

const (
	AuditKindInitialize     AuditKind = "initialize"
	AuditKindFund           AuditKind = "fund"
	AuditKindAddEligible    AuditKind = "add_eligible"
	AuditKindSetClaimAmount AuditKind = "set_claim_amount"
	AuditKindSetAllowlist   AuditKind = "set_allowlist"
)

// AuditRecord is an append-only entry describing a command that changed a
// distribution's funding or configuration. Claims are recorded in the claim
// ledger instead.
type AuditRecord struct {
	Id      uint64
	AuditId string

	Distribution string
	Kind         AuditKind
	Actor        string
	Details      string

	CreatedAt time.Time
}

func (r *AuditRecord) Validate() error {
	if _, err := uuid.Parse(r.AuditId); err != nil {
		return errors.New("id must be a uuid")
	}

	if len(r.Distribution) == 0 {
		return errors.New("distribution is required")
	}

	switch r.Kind {
	case AuditKindInitialize, AuditKindFund, AuditKindAddEligible, AuditKindSetClaimAmount, AuditKindSetAllowlist:
	default:
		return errors.New("invalid audit kind")
	}

	if len(r.Actor) == 0 {
		return errors.New("actor is required")
	}

	return nil
}

func (r *AuditRecord) Clone() AuditRecord {
	return AuditRecord{
		Id:      r.Id,
		AuditId: r.AuditId,

		Distribution: r.Distribution,
		Kind:         r.Kind,
		Actor:        r.Actor,
		Details:      r.Details,

		CreatedAt: r.CreatedAt,
	}
}

func (r *AuditRecord) CopyTo(dst *AuditRecord) {
	dst.Id = r.Id
	dst.AuditId = r.AuditId

	dst.Distribution = r.Distribution
	dst.Kind = r.Kind
	dst.Actor = r.Actor
	dst.Details = r.Details

	dst.CreatedAt = r.CreatedAt
}
