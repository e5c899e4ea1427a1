package pg

import (
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
)

// CheckNoRows maps sql.ErrNoRows to outErr, passing any other error through
func CheckNoRows(inErr, outErr error) error {
	if IsNoRows(inErr) {
		return outErr
	}
	return inErr
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// CheckUniqueViolation maps a unique constraint violation to outErr, passing
// any other error through
func CheckUniqueViolation(inErr, outErr error) error {
	if IsUniqueViolation(inErr) {
		return outErr
	}
	return inErr
}

func IsUniqueViolation(err error) bool {
	return hasErrorCode(err, pgerrcode.UniqueViolation)
}

// IsSerializationFailure returns whether the error is a serializable isolation
// conflict or deadlock, which is safe to retry from the start of the
// transaction.
func IsSerializationFailure(err error) bool {
	return hasErrorCode(err, pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected)
}

func hasErrorCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return false
	}

	for _, code := range codes {
		if pgErr.Code == code {
			return true
		}
	}
	return false
}
