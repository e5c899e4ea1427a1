package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-distributor/pkg/code/data/distribution"
	"github.com/code-payments/code-distributor/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres distribution.Store
func New(db *sql.DB) distribution.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// CreateDistribution implements distribution.Store.CreateDistribution
func (s *store) CreateDistribution(ctx context.Context, record *distribution.Record) error {
	model, err := toDistributionModel(record)
	if err != nil {
		return err
	}

	if err := model.dbCreate(ctx, s.db); err != nil {
		return err
	}

	fromDistributionModel(model).CopyTo(record)
	return nil
}

// GetDistribution implements distribution.Store.GetDistribution
func (s *store) GetDistribution(ctx context.Context, address string) (*distribution.Record, error) {
	model, err := dbGetDistribution(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	return fromDistributionModel(model), nil
}

// GetAllDistributions implements distribution.Store.GetAllDistributions
func (s *store) GetAllDistributions(ctx context.Context) ([]*distribution.Record, error) {
	models, err := dbGetAllDistributions(ctx, s.db)
	if err != nil {
		return nil, err
	}

	res := make([]*distribution.Record, len(models))
	for i, model := range models {
		res[i] = fromDistributionModel(model)
	}
	return res, nil
}

// UpdateDistribution implements distribution.Store.UpdateDistribution
func (s *store) UpdateDistribution(ctx context.Context, record *distribution.Record) error {
	model, err := toDistributionModel(record)
	if err != nil {
		return err
	}

	if err := model.dbSave(ctx, s.db); err != nil {
		return err
	}

	fromDistributionModel(model).CopyTo(record)
	return nil
}

// AddEligible implements distribution.Store.AddEligible
func (s *store) AddEligible(ctx context.Context, record *distribution.EligibilityRecord) error {
	model, err := toEligibilityModel(record)
	if err != nil {
		return err
	}

	if err := model.dbAdd(ctx, s.db); err != nil {
		return err
	}

	fromEligibilityModel(model).CopyTo(record)
	return nil
}

// GetEligible implements distribution.Store.GetEligible
func (s *store) GetEligible(ctx context.Context, distributionAddress, party string) (*distribution.EligibilityRecord, error) {
	model, err := dbGetEligible(ctx, s.db, distributionAddress, party)
	if err != nil {
		return nil, err
	}
	return fromEligibilityModel(model), nil
}

// GetAllEligible implements distribution.Store.GetAllEligible
func (s *store) GetAllEligible(ctx context.Context, distributionAddress string) ([]*distribution.EligibilityRecord, error) {
	models, err := dbGetAllEligible(ctx, s.db, distributionAddress)
	if err != nil {
		return nil, err
	}

	res := make([]*distribution.EligibilityRecord, len(models))
	for i, model := range models {
		res[i] = fromEligibilityModel(model)
	}
	return res, nil
}

// ReplaceEligible implements distribution.Store.ReplaceEligible
func (s *store) ReplaceEligible(ctx context.Context, distributionAddress string, records []*distribution.EligibilityRecord) error {
	models := make([]*eligibilityModel, len(records))
	for i, record := range records {
		if record.Distribution != distributionAddress {
			return errors.New("eligibility record belongs to another distribution")
		}

		model, err := toEligibilityModel(record)
		if err != nil {
			return err
		}
		models[i] = model
	}

	if err := dbReplaceEligible(ctx, s.db, distributionAddress, models); err != nil {
		return err
	}

	for i, model := range models {
		fromEligibilityModel(model).CopyTo(records[i])
	}
	return nil
}

// CommitClaim implements distribution.Store.CommitClaim
func (s *store) CommitClaim(ctx context.Context, record *distribution.Record, claim *distribution.ClaimRecord) error {
	if claim.Distribution != record.Address {
		return errors.New("claim belongs to another distribution")
	}

	model, err := toDistributionModel(record)
	if err != nil {
		return err
	}

	claimModel, err := toClaimModel(claim)
	if err != nil {
		return err
	}

	if err := model.dbCommitClaim(ctx, s.db, claimModel); err != nil {
		return err
	}

	fromDistributionModel(model).CopyTo(record)
	fromClaimModel(claimModel).CopyTo(claim)
	return nil
}

// GetClaim implements distribution.Store.GetClaim
func (s *store) GetClaim(ctx context.Context, distributionAddress, claimant string) (*distribution.ClaimRecord, error) {
	model, err := dbGetClaim(ctx, s.db, distributionAddress, claimant)
	if err != nil {
		return nil, err
	}
	return fromClaimModel(model), nil
}

// GetAllClaims implements distribution.Store.GetAllClaims
func (s *store) GetAllClaims(ctx context.Context, distributionAddress string) ([]*distribution.ClaimRecord, error) {
	models, err := dbGetAllClaims(ctx, s.db, distributionAddress)
	if err != nil {
		return nil, err
	}

	res := make([]*distribution.ClaimRecord, len(models))
	for i, model := range models {
		res[i] = fromClaimModel(model)
	}
	return res, nil
}

// CountClaims implements distribution.Store.CountClaims
func (s *store) CountClaims(ctx context.Context, distributionAddress string) (uint64, error) {
	return dbCountClaims(ctx, s.db, distributionAddress)
}

// SaveAuditRecord implements distribution.Store.SaveAuditRecord
func (s *store) SaveAuditRecord(ctx context.Context, record *distribution.AuditRecord) error {
	model, err := toAuditModel(record)
	if err != nil {
		return err
	}

	if err := model.dbSave(ctx, s.db); err != nil {
		return err
	}

	fromAuditModel(model).CopyTo(record)
	return nil
}

// GetAuditRecords implements distribution.Store.GetAuditRecords
func (s *store) GetAuditRecords(ctx context.Context, distributionAddress string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*distribution.AuditRecord, error) {
	models, err := dbGetAuditRecords(ctx, s.db, distributionAddress, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	res := make([]*distribution.AuditRecord, len(models))
	for i, model := range models {
		res[i] = fromAuditModel(model)
	}
	return res, nil
}
