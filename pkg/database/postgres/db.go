package pg

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type txContextKey struct{}

// txState is the transaction carried by a context, along with the isolation
// level it was opened with
type txState struct {
	tx        *sqlx.Tx
	isolation sql.IsolationLevel
}

var (
	ErrAlreadyInTx = errors.New("already executing in existing db tx")
	ErrNotInTx     = errors.New("not executing in existing db tx")
)

// ExecuteTxWithinCtx runs fn in a new transaction that travels with the
// context passed to fn. Store calls made with that context join it through
// ExecuteInTx. The transaction commits when fn succeeds and rolls back
// otherwise.
func ExecuteTxWithinCtx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(context.Context) error) error {
	if ctx.Value(txContextKey{}) != nil {
		return ErrAlreadyInTx
	}

	isolation = normalizeIsolation(isolation)

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}

	ctx = context.WithValue(ctx, txContextKey{}, &txState{tx: tx, isolation: isolation})
	return finishTx(tx, fn(ctx))
}

// ExecuteInTx runs fn within the transaction carried by ctx, or within a new
// one it owns when there is none. A carried transaction must be at least as
// strict as the requested isolation level, and its commit is left to whoever
// opened it.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	isolation = normalizeIsolation(isolation)

	existing, err := getTxFromCtx(ctx, isolation)
	switch err {
	case nil:
		return fn(existing)
	case ErrNotInTx:
	default:
		return err
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return err
	}
	return finishTx(tx, fn(tx))
}

func finishTx(tx *sqlx.Tx, err error) error {
	if err != nil {
		// A rollback is always required so sql.DB releases the connection
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrap(rollbackErr, "failed to rollback transaction")
		}
		return err
	}
	return tx.Commit()
}

func normalizeIsolation(isolation sql.IsolationLevel) sql.IsolationLevel {
	if isolation == sql.LevelDefault {
		return sql.LevelReadCommitted // Postgres default
	}
	return isolation
}

func getTxFromCtx(ctx context.Context, desiredIsolation sql.IsolationLevel) (*sqlx.Tx, error) {
	state, ok := ctx.Value(txContextKey{}).(*txState)
	if !ok {
		return nil, ErrNotInTx
	}

	if state.isolation < desiredIsolation {
		return nil, errors.Errorf("current tx isolation %s doesn't meet %s", state.isolation, desiredIsolation)
	}
	return state.tx, nil
}
