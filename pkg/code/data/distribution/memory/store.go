package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/code-payments/code-distributor/pkg/code/data/distribution"
	"github.com/code-payments/code-distributor/pkg/database/query"
)

type store struct {
	mu sync.Mutex

	distributionRecords []*distribution.Record
	claimRecords        []*distribution.ClaimRecord
	auditRecords        []*distribution.AuditRecord

	// distribution -> party -> *distribution.EligibilityRecord
	eligibilityRecords map[string]*treemap.Map

	last uint64
}

// New returns a new in memory distribution.Store
func New() distribution.Store {
	return &store{
		eligibilityRecords: make(map[string]*treemap.Map),
	}
}

// CreateDistribution implements distribution.Store.CreateDistribution
func (s *store) CreateDistribution(_ context.Context, data *distribution.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findDistribution(data.Address); item != nil {
		return distribution.ErrDistributionExists
	}

	s.last++
	now := time.Now()

	data.Id = s.last
	data.Version = 0
	if data.CreatedAt.IsZero() {
		data.CreatedAt = now
	}
	data.LastUpdatedAt = now

	cloned := data.Clone()
	s.distributionRecords = append(s.distributionRecords, &cloned)

	return nil
}

// GetDistribution implements distribution.Store.GetDistribution
func (s *store) GetDistribution(_ context.Context, address string) (*distribution.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findDistribution(address)
	if item == nil {
		return nil, distribution.ErrDistributionNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetAllDistributions implements distribution.Store.GetAllDistributions
func (s *store) GetAllDistributions(_ context.Context) ([]*distribution.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*distribution.Record, len(s.distributionRecords))
	for i, item := range s.distributionRecords {
		cloned := item.Clone()
		res[i] = &cloned
	}
	return res, nil
}

// UpdateDistribution implements distribution.Store.UpdateDistribution
func (s *store) UpdateDistribution(_ context.Context, data *distribution.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateDistribution(data)
}

// AddEligible implements distribution.Store.AddEligible
func (s *store) AddEligible(_ context.Context, data *distribution.EligibilityRecord) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	registry := s.getRegistry(data.Distribution)
	if _, ok := registry.Get(data.Party); ok {
		return distribution.ErrAlreadyListed
	}

	s.putEligible(registry, data)

	return nil
}

// GetEligible implements distribution.Store.GetEligible
func (s *store) GetEligible(_ context.Context, distributionAddress, party string) (*distribution.EligibilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	registry, ok := s.eligibilityRecords[distributionAddress]
	if !ok {
		return nil, distribution.ErrNotListed
	}

	value, ok := registry.Get(party)
	if !ok {
		return nil, distribution.ErrNotListed
	}

	cloned := value.(*distribution.EligibilityRecord).Clone()
	return &cloned, nil
}

// GetAllEligible implements distribution.Store.GetAllEligible
func (s *store) GetAllEligible(_ context.Context, distributionAddress string) ([]*distribution.EligibilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	registry, ok := s.eligibilityRecords[distributionAddress]
	if !ok {
		return nil, nil
	}

	var res []*distribution.EligibilityRecord
	for _, value := range registry.Values() {
		cloned := value.(*distribution.EligibilityRecord).Clone()
		res = append(res, &cloned)
	}
	return res, nil
}

// ReplaceEligible implements distribution.Store.ReplaceEligible
func (s *store) ReplaceEligible(_ context.Context, distributionAddress string, data []*distribution.EligibilityRecord) error {
	for _, item := range data {
		if err := item.Validate(); err != nil {
			return err
		}
		if item.Distribution != distributionAddress {
			return errors.New("eligibility record belongs to another distribution")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := treemap.NewWithStringComparator()
	for _, item := range data {
		if _, ok := replacement.Get(item.Party); ok {
			return distribution.ErrAlreadyListed
		}
		replacement.Put(item.Party, item)
	}

	registry := treemap.NewWithStringComparator()
	for _, item := range data {
		s.putEligible(registry, item)
	}
	s.eligibilityRecords[distributionAddress] = registry

	return nil
}

// CommitClaim implements distribution.Store.CommitClaim
func (s *store) CommitClaim(_ context.Context, data *distribution.Record, claim *distribution.ClaimRecord) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if err := claim.Validate(); err != nil {
		return err
	}
	if claim.Distribution != data.Address {
		return errors.New("claim belongs to another distribution")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.claimRecords {
		if item.Distribution != claim.Distribution {
			continue
		}
		if item.Claimant == claim.Claimant || item.Index == claim.Index {
			return distribution.ErrAlreadyClaimed
		}
	}

	if err := s.updateDistribution(data); err != nil {
		return err
	}

	s.last++
	claim.Id = s.last
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now()
	}

	cloned := claim.Clone()
	s.claimRecords = append(s.claimRecords, &cloned)

	return nil
}

// GetClaim implements distribution.Store.GetClaim
func (s *store) GetClaim(_ context.Context, distributionAddress, claimant string) (*distribution.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.claimRecords {
		if item.Distribution == distributionAddress && item.Claimant == claimant {
			cloned := item.Clone()
			return &cloned, nil
		}
	}
	return nil, distribution.ErrClaimNotFound
}

// GetAllClaims implements distribution.Store.GetAllClaims
func (s *store) GetAllClaims(_ context.Context, distributionAddress string) ([]*distribution.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Claims are appended in index order, since indices come from the
	// version-checked claimant counter
	var res []*distribution.ClaimRecord
	for _, item := range s.claimRecords {
		if item.Distribution == distributionAddress {
			cloned := item.Clone()
			res = append(res, &cloned)
		}
	}
	return res, nil
}

// CountClaims implements distribution.Store.CountClaims
func (s *store) CountClaims(_ context.Context, distributionAddress string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, item := range s.claimRecords {
		if item.Distribution == distributionAddress {
			count++
		}
	}
	return count, nil
}

// SaveAuditRecord implements distribution.Store.SaveAuditRecord
func (s *store) SaveAuditRecord(_ context.Context, data *distribution.AuditRecord) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.auditRecords {
		if item.AuditId == data.AuditId {
			return distribution.ErrAuditRecordExists
		}
	}

	s.last++
	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	s.auditRecords = append(s.auditRecords, &cloned)

	return nil
}

// GetAuditRecords implements distribution.Store.GetAuditRecords
func (s *store) GetAuditRecords(_ context.Context, distributionAddress string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*distribution.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var start uint64
	if direction == query.Descending {
		start = s.last + 1
	}
	if len(cursor) > 0 {
		start = cursor.ToUint64()
	}

	var res []*distribution.AuditRecord
	for _, item := range s.auditRecords {
		if item.Distribution != distributionAddress {
			continue
		}

		if (direction == query.Ascending && item.Id > start) || (direction == query.Descending && item.Id < start) {
			cloned := item.Clone()
			res = append(res, &cloned)
		}
	}

	if direction == query.Descending {
		sort.Slice(res, func(i, j int) bool {
			return res[i].Id > res[j].Id
		})
	}

	if limit > 0 && len(res) > int(limit) {
		res = res[:limit]
	}
	return res, nil
}

// Snapshot captures the store's state and returns a func that restores it. It
// backs transactions for the in memory data provider.
func (s *store) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	distributionRecords := make([]*distribution.Record, len(s.distributionRecords))
	for i, item := range s.distributionRecords {
		cloned := item.Clone()
		distributionRecords[i] = &cloned
	}

	// Claim and audit records are immutable once written
	claimRecords := make([]*distribution.ClaimRecord, len(s.claimRecords))
	copy(claimRecords, s.claimRecords)

	auditRecords := make([]*distribution.AuditRecord, len(s.auditRecords))
	copy(auditRecords, s.auditRecords)

	// Registries are only ever added to or swapped out wholesale
	eligibilityRecords := make(map[string]*treemap.Map, len(s.eligibilityRecords))
	for key, registry := range s.eligibilityRecords {
		cloned := treemap.NewWithStringComparator()
		for _, party := range registry.Keys() {
			value, _ := registry.Get(party)
			cloned.Put(party, value)
		}
		eligibilityRecords[key] = cloned
	}

	last := s.last

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.distributionRecords = distributionRecords
		s.claimRecords = claimRecords
		s.auditRecords = auditRecords
		s.eligibilityRecords = eligibilityRecords
		s.last = last
	}
}

func (s *store) updateDistribution(data *distribution.Record) error {
	item := s.findDistribution(data.Address)
	if item == nil {
		return distribution.ErrDistributionNotFound
	}

	if item.Version != data.Version {
		return distribution.ErrStaleDistribution
	}

	data.Id = item.Id
	data.Version++
	data.CreatedAt = item.CreatedAt
	data.LastUpdatedAt = time.Now()

	data.CopyTo(item)

	return nil
}

func (s *store) putEligible(registry *treemap.Map, data *distribution.EligibilityRecord) {
	s.last++

	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	registry.Put(cloned.Party, &cloned)
}

func (s *store) getRegistry(distributionAddress string) *treemap.Map {
	registry, ok := s.eligibilityRecords[distributionAddress]
	if !ok {
		registry = treemap.NewWithStringComparator()
		s.eligibilityRecords[distributionAddress] = registry
	}
	return registry
}

func (s *store) findDistribution(address string) *distribution.Record {
	for _, item := range s.distributionRecords {
		if item.Address == address {
			return item
		}
	}
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.distributionRecords = nil
	s.claimRecords = nil
	s.auditRecords = nil
	s.eligibilityRecords = make(map[string]*treemap.Map)
	s.last = 0
}
