package memory

import (
	"context"
	"sync"
	"time"

	"github.com/code-payments/code-distributor/pkg/code/data/custody"
)

type store struct {
	mu              sync.Mutex
	accountRecords  []*custody.AccountRecord
	transferRecords []*custody.TransferRecord
	last            uint64
}

// New returns a new in memory custody.Store
func New() custody.Store {
	return &store{}
}

// CreateAccount implements custody.Store.CreateAccount
func (s *store) CreateAccount(_ context.Context, data *custody.AccountRecord) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findAccount(data.Address); item != nil {
		return custody.ErrAccountExists
	}

	s.openAccount(data)

	return nil
}

// GetAccount implements custody.Store.GetAccount
func (s *store) GetAccount(_ context.Context, address string) (*custody.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findAccount(address)
	if item == nil {
		return nil, custody.ErrAccountNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// Transfer implements custody.Store.Transfer
func (s *store) Transfer(_ context.Context, data *custody.TransferRecord) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findTransfer(data.TransferId); item != nil {
		return custody.ErrTransferExists
	}

	source := s.findAccount(data.Source)
	if source == nil {
		return custody.ErrAccountNotFound
	}

	if source.Owner != data.Authority {
		return custody.ErrUnauthorized
	}

	if source.Quarks < data.Quarks {
		return custody.ErrInsufficientBalance
	}

	destination := s.findAccount(data.Destination)
	if destination == nil {
		destination = s.openAccount(&custody.AccountRecord{
			Address: data.Destination,
			Owner:   data.Destination,
		})
	}

	now := time.Now()

	source.Quarks -= data.Quarks
	source.LastUpdatedAt = now

	destination.Quarks += data.Quarks
	destination.LastUpdatedAt = now

	s.last++
	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = now
	}

	cloned := data.Clone()
	s.transferRecords = append(s.transferRecords, &cloned)

	return nil
}

// GetTransfers implements custody.Store.GetTransfers
func (s *store) GetTransfers(_ context.Context, address string) ([]*custody.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*custody.TransferRecord
	for _, item := range s.transferRecords {
		if item.Source == address || item.Destination == address {
			cloned := item.Clone()
			res = append(res, &cloned)
		}
	}
	return res, nil
}

// Snapshot captures the store's state and returns a func that restores it. It
// backs transactions for the in memory data provider.
func (s *store) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountRecords := make([]*custody.AccountRecord, len(s.accountRecords))
	for i, item := range s.accountRecords {
		cloned := item.Clone()
		accountRecords[i] = &cloned
	}

	transferRecords := make([]*custody.TransferRecord, len(s.transferRecords))
	copy(transferRecords, s.transferRecords)

	last := s.last

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.accountRecords = accountRecords
		s.transferRecords = transferRecords
		s.last = last
	}
}

func (s *store) openAccount(data *custody.AccountRecord) *custody.AccountRecord {
	s.last++

	now := time.Now()

	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = now
	}
	data.LastUpdatedAt = now

	cloned := data.Clone()
	s.accountRecords = append(s.accountRecords, &cloned)
	return &cloned
}

func (s *store) findAccount(address string) *custody.AccountRecord {
	for _, item := range s.accountRecords {
		if item.Address == address {
			return item
		}
	}
	return nil
}

func (s *store) findTransfer(transferId string) *custody.TransferRecord {
	for _, item := range s.transferRecords {
		if item.TransferId == transferId {
			return item
		}
	}
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accountRecords = nil
	s.transferRecords = nil
	s.last = 0
}
