package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-distributor/pkg/code/data/custody"
	pgutil "github.com/code-payments/code-distributor/pkg/database/postgres"
)

const (
	accountTableName  = "distributor__core_custodyaccount"
	transferTableName = "distributor__core_custodytransfer"
)

type accountModel struct {
	Id sql.NullInt64 `db:"id"`

	Address string `db:"address"`
	Owner   string `db:"owner"`
	Quarks  uint64 `db:"quarks"`

	CreatedAt     time.Time `db:"created_at"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

type transferModel struct {
	Id sql.NullInt64 `db:"id"`

	TransferId  string `db:"transfer_id"`
	Source      string `db:"source"`
	Destination string `db:"destination"`
	Authority   string `db:"authority"`
	Quarks      uint64 `db:"quarks"`

	CreatedAt time.Time `db:"created_at"`
}

func toAccountModel(obj *custody.AccountRecord) (*accountModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &accountModel{
		Address:       obj.Address,
		Owner:         obj.Owner,
		Quarks:        obj.Quarks,
		CreatedAt:     obj.CreatedAt,
		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromAccountModel(obj *accountModel) *custody.AccountRecord {
	return &custody.AccountRecord{
		Id:            uint64(obj.Id.Int64),
		Address:       obj.Address,
		Owner:         obj.Owner,
		Quarks:        obj.Quarks,
		CreatedAt:     obj.CreatedAt,
		LastUpdatedAt: obj.LastUpdatedAt,
	}
}

func toTransferModel(obj *custody.TransferRecord) (*transferModel, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &transferModel{
		TransferId:  obj.TransferId,
		Source:      obj.Source,
		Destination: obj.Destination,
		Authority:   obj.Authority,
		Quarks:      obj.Quarks,
		CreatedAt:   obj.CreatedAt,
	}, nil
}

func fromTransferModel(obj *transferModel) *custody.TransferRecord {
	return &custody.TransferRecord{
		Id:          uint64(obj.Id.Int64),
		TransferId:  obj.TransferId,
		Source:      obj.Source,
		Destination: obj.Destination,
		Authority:   obj.Authority,
		Quarks:      obj.Quarks,
		CreatedAt:   obj.CreatedAt,
	}
}

func (m *accountModel) dbCreate(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + accountTableName + `
			(address, owner, quarks, created_at, last_updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, address, owner, quarks, created_at, last_updated_at`

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		m.LastUpdatedAt = time.Now()

		err := tx.QueryRowxContext(
			ctx,
			query,
			m.Address,
			m.Owner,
			m.Quarks,
			m.CreatedAt.UTC(),
			m.LastUpdatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckUniqueViolation(err, custody.ErrAccountExists)
	})
}

// dbTransfer locks the source row, so concurrent transfers out of the same
// account are serialized by the database.
func (m *transferModel) dbTransfer(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		source := &accountModel{}
		selectQuery := `SELECT id, address, owner, quarks, created_at, last_updated_at FROM ` + accountTableName + `
			WHERE address = $1
			FOR UPDATE`
		err := tx.GetContext(ctx, source, selectQuery, m.Source)
		if err != nil {
			return pgutil.CheckNoRows(err, custody.ErrAccountNotFound)
		}

		if source.Owner != m.Authority {
			return custody.ErrUnauthorized
		}

		if source.Quarks < m.Quarks {
			return custody.ErrInsufficientBalance
		}

		now := time.Now().UTC()

		debitQuery := `UPDATE ` + accountTableName + `
			SET quarks = quarks - $2, last_updated_at = $3
			WHERE address = $1 AND quarks >= $2`
		result, err := tx.ExecContext(ctx, debitQuery, m.Source, m.Quarks, now)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		} else if rowsAffected != 1 {
			return custody.ErrInsufficientBalance
		}

		creditQuery := `INSERT INTO ` + accountTableName + `
			(address, owner, quarks, created_at, last_updated_at)
			VALUES ($1, $1, $2, $3, $3)

			ON CONFLICT (address)
			DO UPDATE
				SET quarks = ` + accountTableName + `.quarks + $2, last_updated_at = $3
				WHERE ` + accountTableName + `.address = $1`
		_, err = tx.ExecContext(ctx, creditQuery, m.Destination, m.Quarks, now)
		if err != nil {
			return err
		}

		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}

		insertQuery := `INSERT INTO ` + transferTableName + `
			(transfer_id, source, destination, authority, quarks, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, transfer_id, source, destination, authority, quarks, created_at`
		err = tx.QueryRowxContext(
			ctx,
			insertQuery,
			m.TransferId,
			m.Source,
			m.Destination,
			m.Authority,
			m.Quarks,
			m.CreatedAt.UTC(),
		).StructScan(m)
		return pgutil.CheckUniqueViolation(err, custody.ErrTransferExists)
	})
}

func dbGetAccount(ctx context.Context, db *sqlx.DB, address string) (*accountModel, error) {
	res := &accountModel{}

	query := `SELECT id, address, owner, quarks, created_at, last_updated_at FROM ` + accountTableName + `
		WHERE address = $1
		LIMIT 1`

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, res, query, address)
	})
	if err != nil {
		return nil, pgutil.CheckNoRows(err, custody.ErrAccountNotFound)
	}
	return res, nil
}

func dbGetTransfers(ctx context.Context, db *sqlx.DB, address string) ([]*transferModel, error) {
	res := []*transferModel{}

	query := `SELECT id, transfer_id, source, destination, authority, quarks, created_at FROM ` + transferTableName + `
		WHERE source = $1 OR destination = $1
		ORDER BY id ASC`

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &res, query, address)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
