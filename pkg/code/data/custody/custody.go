package custody

import (
	"time"

	"github.com/pkg/errors"
)

// AccountRecord is a token balance held on behalf of an owner. A distribution's
// custody account is owned by the distribution itself.
type AccountRecord struct {
	Id uint64

	Address string
	Owner   string
	Quarks  uint64

	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

// TransferRecord moves Quarks from Source to Destination. Authority must own
// the source account.
type TransferRecord struct {
	Id uint64

	TransferId  string
	Source      string
	Destination string
	Authority   string
	Quarks      uint64

	CreatedAt time.Time
}

func (r *AccountRecord) Validate() error {
	if len(r.Address) == 0 {
		return errors.New("address is required")
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	return nil
}

func (r *AccountRecord) Clone() AccountRecord {
	return AccountRecord{
		Id: r.Id,

		Address: r.Address,
		Owner:   r.Owner,
		Quarks:  r.Quarks,

		CreatedAt:     r.CreatedAt,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *AccountRecord) CopyTo(dst *AccountRecord) {
	dst.Id = r.Id

	dst.Address = r.Address
	dst.Owner = r.Owner
	dst.Quarks = r.Quarks

	dst.CreatedAt = r.CreatedAt
	dst.LastUpdatedAt = r.LastUpdatedAt
}

func (r *TransferRecord) Validate() error {
	if len(r.TransferId) == 0 {
		return errors.New("transfer id is required")
	}

	if len(r.Source) == 0 {
		return errors.New("source is required")
	}

	if len(r.Destination) == 0 {
		return errors.New("destination is required")
	}

	if r.Source == r.Destination {
		return errors.New("source and destination must be different")
	}

	if len(r.Authority) == 0 {
		return errors.New("authority is required")
	}

	if r.Quarks == 0 {
		return errors.New("quarks must be positive")
	}

	return nil
}

func (r *TransferRecord) Clone() TransferRecord {
	return TransferRecord{
		Id: r.Id,

		TransferId:  r.TransferId,
		Source:      r.Source,
		Destination: r.Destination,
		Authority:   r.Authority,
		Quarks:      r.Quarks,

		CreatedAt: r.CreatedAt,
	}
}

func (r *TransferRecord) CopyTo(dst *TransferRecord) {
	dst.Id = r.Id

	dst.TransferId = r.TransferId
	dst.Source = r.Source
	dst.Destination = r.Destination
	dst.Authority = r.Authority
	dst.Quarks = r.Quarks

	dst.CreatedAt = r.CreatedAt
}
