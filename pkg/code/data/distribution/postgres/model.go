package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-distributor/pkg/code/data/distribution"
	pgutil "github.com/code-payments/code-distributor/pkg/database/postgres"
	q "github.com/code-payments/code-distributor/pkg/database/query"
	"github.com/code-payments/code-distributor/pkg/pointer"
)

const (
	distributionTableName = "distributor__core_distribution"
	eligibilityTableName  = "distributor__core_distributioneligibility"
	claimTableName        = "distributor__core_distributionclaim"
	auditTableName        = "distributor__core_distributionaudit"

	allDistributionFields = `id, address, kind, authority, funder, custody_account, claim_amount, merkle_root, max_total_claim, max_num_claimants, claim_capacity, total_funded, total_amount_claimed, num_claimants_served, version, created_at, last_updated_at`
	allEligibilityFields  = `id, distribution, party, allocation, created_at`
	allClaimFields        = `id, distribution, claimant, quarks, claim_index, transfer_id, created_at`
	allAuditFields        = `id, audit_id, distribution, kind, actor, details, created_at`
)

type distributionModel struct {
	Id sql.NullInt64 `db:"id"`

	Address        string `db:"address"`
	Kind           uint8  `db:"kind"`
	Authority      string `db:"authority"`
	Funder         string `db:"funder"`
	CustodyAccount string `db:"custody_account"`

	ClaimAmount uint64 `db:"claim_amount"`
	MerkleRoot  []byte `db:"merkle_root"`

	MaxTotalClaim   uint64 `db:"max_total_claim"`
	MaxNumClaimants uint64 `db:"max_num_claimants"`
	ClaimCapacity   uint64 `db:"claim_capacity"`

	TotalFunded        uint64 `db:"total_funded"`
	TotalAmountClaimed uint64 `db:"total_amount_claimed"`
	NumClaimantsServed uint64 `db:"num_claimants_served"`

	Version uint64 `db:"version"`

	CreatedAt     time.Time `db:"created_at"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

type eligibilityModel struct {
	Id sql.NullInt64 `db:"id"`

	Distribution string        `db:"distribution"`
	Party        string        `db:"party"`
	Allocation   sql.NullInt64 `db:"allocation"`

	CreatedAt time.Time `db:"created_at"`
}

type claimModel struct {
	Id sql.NullInt64 `db:"id"`

	Distribution string `db:"distribution"`
	Claimant     string `db:"claimant"`
	Quarks       uint64 `db:"quarks"`
	Index        uint64 `db:"claim_index"`
	TransferId   string `db:"transfer_id"`

	CreatedAt time.Time `db:"created_at"`
}

type auditModel struct {
	Id      sql.NullInt64 `db:"id"`
	AuditId string        `db:"audit_id"`

	Distribution string `db:"distribution"`
	Kind         string `db:"kind"`
	Actor        string `db:"actor"`
	Details      string `db:"details"`

	CreatedAt time.Time `db:"created_at"`
}

func toDistributionModel(obj *distribution.Record) (*distributionModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	merkleRoot := []byte{}
	if obj.MerkleRoot != nil {
		merkleRoot = append(merkleRoot, obj.MerkleRoot...)
	}

	return &distributionModel{
		Address:            obj.Address,
		Kind:               uint8(obj.Kind),
		Authority:          obj.Authority,
		Funder:             obj.Funder,
		CustodyAccount:     obj.CustodyAccount,
		ClaimAmount:        obj.ClaimAmount,
		MerkleRoot:         merkleRoot,
		MaxTotalClaim:      obj.MaxTotalClaim,
		MaxNumClaimants:    obj.MaxNumClaimants,
		ClaimCapacity:      obj.ClaimCapacity,
		TotalFunded:        obj.TotalFunded,
		TotalAmountClaimed: obj.TotalAmountClaimed,
		NumClaimantsServed: obj.NumClaimantsServed,
		Version:            obj.Version,
		CreatedAt:          obj.CreatedAt,
		LastUpdatedAt:      obj.LastUpdatedAt,
	}, nil
}

func fromDistributionModel(obj *distributionModel) *distribution.Record {
	var merkleRoot []byte
	if len(obj.MerkleRoot) > 0 {
		merkleRoot = obj.MerkleRoot
	}

	return &distribution.Record{
		Id:                 uint64(obj.Id.Int64),
		Address:            obj.Address,
		Kind:               distribution.Kind(obj.Kind),
		Authority:          obj.Authority,
		Funder:             obj.Funder,
		CustodyAccount:     obj.CustodyAccount,
		ClaimAmount:        obj.ClaimAmount,
		MerkleRoot:         merkleRoot,
		MaxTotalClaim:      obj.MaxTotalClaim,
		MaxNumClaimants:    obj.MaxNumClaimants,
		ClaimCapacity:      obj.ClaimCapacity,
		TotalFunded:        obj.TotalFunded,
		TotalAmountClaimed: obj.TotalAmountClaimed,
		NumClaimantsServed: obj.NumClaimantsServed,
		Version:            obj.Version,
		CreatedAt:          obj.CreatedAt,
		LastUpdatedAt:      obj.LastUpdatedAt,
	}
}

func toEligibilityModel(obj *distribution.EligibilityRecord) (*eligibilityModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	var allocation sql.NullInt64
	if obj.Allocation != nil {
		allocation.Valid = true
		allocation.Int64 = int64(*obj.Allocation)
	}

	return &eligibilityModel{
		Distribution: obj.Distribution,
		Party:        obj.Party,
		Allocation:   allocation,
		CreatedAt:    obj.CreatedAt,
	}, nil
}

func fromEligibilityModel(obj *eligibilityModel) *distribution.EligibilityRecord {
	return &distribution.EligibilityRecord{
		Id:           uint64(obj.Id.Int64),
		Distribution: obj.Distribution,
		Party:        obj.Party,
		Allocation:   pointer.Uint64IfValid(obj.Allocation.Valid, uint64(obj.Allocation.Int64)),
		CreatedAt:    obj.CreatedAt,
	}
}

func toClaimModel(obj *distribution.ClaimRecord) (*claimModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &claimModel{
		Distribution: obj.Distribution,
		Claimant:     obj.Claimant,
		Quarks:       obj.Quarks,
		Index:        obj.Index,
		TransferId:   obj.TransferId,
		CreatedAt:    obj.CreatedAt,
	}, nil
}

func fromClaimModel(obj *claimModel) *distribution.ClaimRecord {
	return &distribution.ClaimRecord{
		Id:           uint64(obj.Id.Int64),
		Distribution: obj.Distribution,
		Claimant:     obj.Claimant,
		Quarks:       obj.Quarks,
		Index:        obj.Index,
		TransferId:   obj.TransferId,
		CreatedAt:    obj.CreatedAt,
	}
}

func toAuditModel(obj *distribution.AuditRecord) (*auditModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &auditModel{
		Id:           sql.NullInt64{Int64: int64(obj.Id), Valid: obj.Id > 0},
		AuditId:      obj.AuditId,
		Distribution: obj.Distribution,
		Kind:         string(obj.Kind),
		Actor:        obj.Actor,
		Details:      obj.Details,
		CreatedAt:    obj.CreatedAt,
	}, nil
}

func fromAuditModel(obj *auditModel) *distribution.AuditRecord {
	return &distribution.AuditRecord{
		Id:           uint64(obj.Id.Int64),
		AuditId:      obj.AuditId,
		Distribution: obj.Distribution,
		Kind:         distribution.AuditKind(obj.Kind),
		Actor:        obj.Actor,
		Details:      obj.Details,
		CreatedAt:    obj.CreatedAt,
	}
}

func (m *distributionModel) dbCreate(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + distributionTableName + `
			(address, kind, authority, funder, custody_account, claim_amount, merkle_root, max_total_claim, max_num_claimants, claim_capacity, total_funded, total_amount_claimed, num_claimants_served, version, created_at, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, $14, $15)
			RETURNING ` + allDistributionFields

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		m.LastUpdatedAt = time.Now()

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.Address,
			m.Kind,
			m.Authority,
			m.Funder,
			m.CustodyAccount,
			m.ClaimAmount,
			m.MerkleRoot,
			m.MaxTotalClaim,
			m.MaxNumClaimants,
			m.ClaimCapacity,
			m.TotalFunded,
			m.TotalAmountClaimed,
			m.NumClaimantsServed,
			m.CreatedAt.UTC(),
			m.LastUpdatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckUniqueViolation(err, distribution.ErrDistributionExists)
	})
}

// dbUpdate must be called within a transaction. The configuration columns
// that never change after creation aren't written.
func (m *distributionModel) dbUpdate(ctx context.Context, tx *sqlx.Tx) error {
	query := `UPDATE ` + distributionTableName + `
		SET claim_amount = $3, max_total_claim = $4, max_num_claimants = $5, claim_capacity = $6, total_funded = $7, total_amount_claimed = $8, num_claimants_served = $9, version = version + 1, last_updated_at = $10
		WHERE address = $1 AND version = $2
		RETURNING ` + allDistributionFields

	err := tx.QueryRowxContext(
		ctx,
		query,
		m.Address,
		m.Version,
		m.ClaimAmount,
		m.MaxTotalClaim,
		m.MaxNumClaimants,
		m.ClaimCapacity,
		m.TotalFunded,
		m.TotalAmountClaimed,
		m.NumClaimantsServed,
		time.Now().UTC(),
	).StructScan(m)
	if pgutil.IsNoRows(err) {
		var exists bool
		existsQuery := `SELECT EXISTS (SELECT 1 FROM ` + distributionTableName + ` WHERE address = $1)`
		if err := tx.GetContext(ctx, &exists, existsQuery, m.Address); err != nil {
			return err
		}
		if !exists {
			return distribution.ErrDistributionNotFound
		}
		return distribution.ErrStaleDistribution
	}
	return err
}

func (m *distributionModel) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return m.dbUpdate(ctx, tx)
	})
}

func (m *distributionModel) dbCommitClaim(ctx context.Context, db *sqlx.DB, claim *claimModel) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		if err := m.dbUpdate(ctx, tx); err != nil {
			return err
		}

		if claim.CreatedAt.IsZero() {
			claim.CreatedAt = time.Now()
		}

		query := `INSERT INTO ` + claimTableName + `
			(distribution, claimant, quarks, claim_index, transfer_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING ` + allClaimFields

		err := tx.QueryRowxContext(
			ctx,
			query,
			claim.Distribution,
			claim.Claimant,
			claim.Quarks,
			claim.Index,
			claim.TransferId,
			claim.CreatedAt.UTC(),
		).StructScan(claim)

		return pgutil.CheckUniqueViolation(err, distribution.ErrAlreadyClaimed)
	})
}

func (m *eligibilityModel) dbInsert(ctx context.Context, tx *sqlx.Tx) error {
	query := `INSERT INTO ` + eligibilityTableName + `
		(distribution, party, allocation, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + allEligibilityFields

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	err := tx.QueryRowxContext(
		ctx,
		query,
		m.Distribution,
		m.Party,
		m.Allocation,
		m.CreatedAt.UTC(),
	).StructScan(m)

	return pgutil.CheckUniqueViolation(err, distribution.ErrAlreadyListed)
}

func (m *eligibilityModel) dbAdd(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return m.dbInsert(ctx, tx)
	})
}

func dbReplaceEligible(ctx context.Context, db *sqlx.DB, distributionAddress string, models []*eligibilityModel) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `DELETE FROM ` + eligibilityTableName + `
			WHERE distribution = $1`
		if _, err := tx.ExecContext(ctx, query, distributionAddress); err != nil {
			return err
		}

		for _, model := range models {
			if err := model.dbInsert(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *auditModel) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + auditTableName + `
			(audit_id, distribution, kind, actor, details, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING ` + allAuditFields

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.AuditId,
			m.Distribution,
			m.Kind,
			m.Actor,
			m.Details,
			m.CreatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckUniqueViolation(err, distribution.ErrAuditRecordExists)
	})
}

func dbGetDistribution(ctx context.Context, db *sqlx.DB, address string) (*distributionModel, error) {
	res := &distributionModel{}

	query := `SELECT ` + allDistributionFields + ` FROM ` + distributionTableName + `
		WHERE address = $1
		LIMIT 1`

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, res, query, address)
	})
	if err != nil {
		return nil, pgutil.CheckNoRows(err, distribution.ErrDistributionNotFound)
	}
	return res, nil
}

func dbGetAllDistributions(ctx context.Context, db *sqlx.DB) ([]*distributionModel, error) {
	res := []*distributionModel{}

	query := `SELECT ` + allDistributionFields + ` FROM ` + distributionTableName + `
		ORDER BY id ASC`

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &res, query)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func dbGetEligible(ctx context.Context, db *sqlx.DB, distributionAddress, party string) (*eligibilityModel, error) {
	res := &eligibilityModel{}

	query := `SELECT ` + allEligibilityFields + ` FROM ` + eligibilityTableName + `
		WHERE distribution = $1 AND party = $2
		LIMIT 1`

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, res, query, distributionAddress, party)
	})
	if err != nil {
		return nil, pgutil.CheckNoRows(err, distribution.ErrNotListed)
	}
	return res, nil
}

func dbGetAllEligible(ctx context.Context, db *sqlx.DB, distributionAddress string) ([]*eligibilityModel, error) {
	res := []*eligibilityModel{}

	query := `SELECT ` + allEligibilityFields + ` FROM ` + eligibilityTableName + `
		WHERE distribution = $1
		ORDER BY party ASC`

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &res, query, distributionAddress)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func dbGetClaim(ctx context.Context, db *sqlx.DB, distributionAddress, claimant string) (*claimModel, error) {
	res := &claimModel{}

	query := `SELECT ` + allClaimFields + ` FROM ` + claimTableName + `
		WHERE distribution = $1 AND claimant = $2
		LIMIT 1`

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, res, query, distributionAddress, claimant)
	})
	if err != nil {
		return nil, pgutil.CheckNoRows(err, distribution.ErrClaimNotFound)
	}
	return res, nil
}

func dbGetAllClaims(ctx context.Context, db *sqlx.DB, distributionAddress string) ([]*claimModel, error) {
	res := []*claimModel{}

	query := `SELECT ` + allClaimFields + ` FROM ` + claimTableName + `
		WHERE distribution = $1
		ORDER BY claim_index ASC`

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &res, query, distributionAddress)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func dbCountClaims(ctx context.Context, db *sqlx.DB, distributionAddress string) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + claimTableName + `
		WHERE distribution = $1`

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &res, query, distributionAddress)
	})
	if err != nil {
		return 0, err
	}
	return res, nil
}

func dbGetAuditRecords(ctx context.Context, db *sqlx.DB, distributionAddress string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*auditModel, error) {
	res := []*auditModel{}

	query := `SELECT ` + allAuditFields + ` FROM ` + auditTableName + `
		WHERE (distribution = $1)`

	opts := []interface{}{distributionAddress}
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &res, query, opts...)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
