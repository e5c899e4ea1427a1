package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-distributor/pkg/code/data/custody"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres custody.Store
func New(db *sql.DB) custody.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// CreateAccount implements custody.Store.CreateAccount
func (s *store) CreateAccount(ctx context.Context, record *custody.AccountRecord) error {
	model, err := toAccountModel(record)
	if err != nil {
		return err
	}

	if err := model.dbCreate(ctx, s.db); err != nil {
		return err
	}

	fromAccountModel(model).CopyTo(record)
	return nil
}

// GetAccount implements custody.Store.GetAccount
func (s *store) GetAccount(ctx context.Context, address string) (*custody.AccountRecord, error) {
	model, err := dbGetAccount(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	return fromAccountModel(model), nil
}

// Transfer implements custody.Store.Transfer
func (s *store) Transfer(ctx context.Context, record *custody.TransferRecord) error {
	model, err := toTransferModel(record)
	if err != nil {
		return err
	}

	if err := model.dbTransfer(ctx, s.db); err != nil {
		return err
	}

	fromTransferModel(model).CopyTo(record)
	return nil
}

// GetTransfers implements custody.Store.GetTransfers
func (s *store) GetTransfers(ctx context.Context, address string) ([]*custody.TransferRecord, error) {
	models, err := dbGetTransfers(ctx, s.db, address)
	if err != nil {
		return nil, err
	}

	res := make([]*custody.TransferRecord, len(models))
	for i, model := range models {
		res[i] = fromTransferModel(model)
	}
	return res, nil
}
