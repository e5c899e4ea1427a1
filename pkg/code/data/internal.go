package data

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"

	pg "github.com/code-payments/code-distributor/pkg/database/postgres"
	"github.com/code-payments/code-distributor/pkg/database/query"

	"github.com/code-payments/code-distributor/pkg/code/data/custody"
	"github.com/code-payments/code-distributor/pkg/code/data/distribution"

	custody_memory_client "github.com/code-payments/code-distributor/pkg/code/data/custody/memory"
	distribution_memory_client "github.com/code-payments/code-distributor/pkg/code/data/distribution/memory"

	custody_postgres_client "github.com/code-payments/code-distributor/pkg/code/data/custody/postgres"
	distribution_postgres_client "github.com/code-payments/code-distributor/pkg/code/data/distribution/postgres"
)

type DatabaseData interface {
	// Distributions
	// --------------------------------------------------------------------------------
	CreateDistribution(ctx context.Context, record *distribution.Record) error
	GetDistribution(ctx context.Context, address string) (*distribution.Record, error)
	GetAllDistributions(ctx context.Context) ([]*distribution.Record, error)
	UpdateDistribution(ctx context.Context, record *distribution.Record) error
	AddDistributionEligibility(ctx context.Context, record *distribution.EligibilityRecord) error
	GetDistributionEligibility(ctx context.Context, distributionAddress, party string) (*distribution.EligibilityRecord, error)
	GetAllDistributionEligibility(ctx context.Context, distributionAddress string) ([]*distribution.EligibilityRecord, error)
	ReplaceDistributionEligibility(ctx context.Context, distributionAddress string, records []*distribution.EligibilityRecord) error
	CommitDistributionClaim(ctx context.Context, record *distribution.Record, claim *distribution.ClaimRecord) error
	GetDistributionClaim(ctx context.Context, distributionAddress, claimant string) (*distribution.ClaimRecord, error)
	GetAllDistributionClaims(ctx context.Context, distributionAddress string) ([]*distribution.ClaimRecord, error)
	GetDistributionClaimCount(ctx context.Context, distributionAddress string) (uint64, error)
	SaveDistributionAuditRecord(ctx context.Context, record *distribution.AuditRecord) error
	GetDistributionAuditRecords(ctx context.Context, distributionAddress string, opts ...query.Option) ([]*distribution.AuditRecord, error)

	// Custody
	// --------------------------------------------------------------------------------
	CreateCustodyAccount(ctx context.Context, record *custody.AccountRecord) error
	GetCustodyAccount(ctx context.Context, address string) (*custody.AccountRecord, error)
	ExecuteCustodyTransfer(ctx context.Context, record *custody.TransferRecord) error
	GetCustodyTransfers(ctx context.Context, address string) ([]*custody.TransferRecord, error)

	// ExecuteInTx executes fn with a single DB transaction that is scoped to the call.
	// This enables more complex transactions that can span many calls across the provider.
	//
	// Against in memory stores, transactions are serialized and every store is
	// restored to its state prior to the call when fn returns an error.
	ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error
}

type DatabaseProvider struct {
	distributions distribution.Store
	custody       custody.Store

	db *sqlx.DB

	// In memory transaction support
	txMu sync.Mutex
}

type snapshotter interface {
	Snapshot() func()
}

type memoryTxContextKey struct{}

func NewDatabaseProvider(dbConfig *pg.Config) (DatabaseData, error) {
	db, err := pg.Open(dbConfig)
	if err != nil {
		return nil, err
	}

	return &DatabaseProvider{
		distributions: distribution_postgres_client.New(db),
		custody:       custody_postgres_client.New(db),

		db: sqlx.NewDb(db, "pgx"),
	}, nil
}

func NewTestDatabaseProvider() DatabaseData {
	return &DatabaseProvider{
		distributions: distribution_memory_client.New(),
		custody:       custody_memory_client.New(),
	}
}

func (dp *DatabaseProvider) ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error {
	if dp.db == nil {
		return dp.executeInMemoryTx(ctx, fn)
	}

	return pg.ExecuteTxWithinCtx(ctx, dp.db, isolation, fn)
}

// Writes made outside of ExecuteInTx while a memory transaction is rolled
// back are lost along with it.
func (dp *DatabaseProvider) executeInMemoryTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxContextKey{}) != nil {
		return pg.ErrAlreadyInTx
	}

	dp.txMu.Lock()
	defer dp.txMu.Unlock()

	var restores []func()
	for _, store := range []interface{}{dp.distributions, dp.custody} {
		if s, ok := store.(snapshotter); ok {
			restores = append(restores, s.Snapshot())
		}
	}

	err := fn(context.WithValue(ctx, memoryTxContextKey{}, struct{}{}))
	if err != nil {
		for _, restore := range restores {
			restore()
		}
	}
	return err
}

// Distributions
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) CreateDistribution(ctx context.Context, record *distribution.Record) error {
	return dp.distributions.CreateDistribution(ctx, record)
}
func (dp *DatabaseProvider) GetDistribution(ctx context.Context, address string) (*distribution.Record, error) {
	return dp.distributions.GetDistribution(ctx, address)
}
func (dp *DatabaseProvider) GetAllDistributions(ctx context.Context) ([]*distribution.Record, error) {
	return dp.distributions.GetAllDistributions(ctx)
}
func (dp *DatabaseProvider) UpdateDistribution(ctx context.Context, record *distribution.Record) error {
	return dp.distributions.UpdateDistribution(ctx, record)
}
func (dp *DatabaseProvider) AddDistributionEligibility(ctx context.Context, record *distribution.EligibilityRecord) error {
	return dp.distributions.AddEligible(ctx, record)
}
func (dp *DatabaseProvider) GetDistributionEligibility(ctx context.Context, distributionAddress, party string) (*distribution.EligibilityRecord, error) {
	return dp.distributions.GetEligible(ctx, distributionAddress, party)
}
func (dp *DatabaseProvider) GetAllDistributionEligibility(ctx context.Context, distributionAddress string) ([]*distribution.EligibilityRecord, error) {
	return dp.distributions.GetAllEligible(ctx, distributionAddress)
}
func (dp *DatabaseProvider) ReplaceDistributionEligibility(ctx context.Context, distributionAddress string, records []*distribution.EligibilityRecord) error {
	return dp.distributions.ReplaceEligible(ctx, distributionAddress, records)
}
func (dp *DatabaseProvider) CommitDistributionClaim(ctx context.Context, record *distribution.Record, claim *distribution.ClaimRecord) error {
	return dp.distributions.CommitClaim(ctx, record, claim)
}
func (dp *DatabaseProvider) GetDistributionClaim(ctx context.Context, distributionAddress, claimant string) (*distribution.ClaimRecord, error) {
	return dp.distributions.GetClaim(ctx, distributionAddress, claimant)
}
func (dp *DatabaseProvider) GetAllDistributionClaims(ctx context.Context, distributionAddress string) ([]*distribution.ClaimRecord, error) {
	return dp.distributions.GetAllClaims(ctx, distributionAddress)
}
func (dp *DatabaseProvider) GetDistributionClaimCount(ctx context.Context, distributionAddress string) (uint64, error) {
	return dp.distributions.CountClaims(ctx, distributionAddress)
}
func (dp *DatabaseProvider) SaveDistributionAuditRecord(ctx context.Context, record *distribution.AuditRecord) error {
	return dp.distributions.SaveAuditRecord(ctx, record)
}
func (dp *DatabaseProvider) GetDistributionAuditRecords(ctx context.Context, distributionAddress string, opts ...query.Option) ([]*distribution.AuditRecord, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	return dp.distributions.GetAuditRecords(ctx, distributionAddress, req.Cursor, req.Limit, req.SortBy)
}

// Custody
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) CreateCustodyAccount(ctx context.Context, record *custody.AccountRecord) error {
	return dp.custody.CreateAccount(ctx, record)
}
func (dp *DatabaseProvider) GetCustodyAccount(ctx context.Context, address string) (*custody.AccountRecord, error) {
	return dp.custody.GetAccount(ctx, address)
}
func (dp *DatabaseProvider) ExecuteCustodyTransfer(ctx context.Context, record *custody.TransferRecord) error {
	return dp.custody.Transfer(ctx, record)
}
func (dp *DatabaseProvider) GetCustodyTransfers(ctx context.Context, address string) ([]*custody.TransferRecord, error) {
	return dp.custody.GetTransfers(ctx, address)
}
