package pg

import (
	"database/sql"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorChecks(t *testing.T) {
	errMapped := errors.New("mapped")
	errOther := errors.New("other")

	assert.Equal(t, errMapped, CheckNoRows(sql.ErrNoRows, errMapped))
	assert.Equal(t, errMapped, CheckNoRows(errors.Wrap(sql.ErrNoRows, "wrapped"), errMapped))
	assert.Equal(t, errOther, CheckNoRows(errOther, errMapped))
	assert.NoError(t, CheckNoRows(nil, errMapped))

	uniqueViolation := &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	assert.Equal(t, errMapped, CheckUniqueViolation(uniqueViolation, errMapped))
	assert.Equal(t, errMapped, CheckUniqueViolation(errors.Wrap(uniqueViolation, "wrapped"), errMapped))
	assert.Equal(t, errOther, CheckUniqueViolation(errOther, errMapped))
	assert.NoError(t, CheckUniqueViolation(nil, errMapped))

	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: pgerrcode.SerializationFailure}))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: pgerrcode.DeadlockDetected}))
	assert.False(t, IsSerializationFailure(uniqueViolation))
	assert.False(t, IsSerializationFailure(nil))
}
