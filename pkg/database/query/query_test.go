package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	cursor := ToCursor(1234567)
	assert.EqualValues(t, 1234567, cursor.ToUint64())

	decoded, err := CursorFromBase58(cursor.ToBase58())
	require.NoError(t, err)
	assert.Equal(t, cursor, decoded)

	for _, invalid := range []string{"0OIl", "", "2"} {
		_, err = CursorFromBase58(invalid)
		assert.Equal(t, ErrInvalidCursor, err, invalid)
	}
}

func TestOrdering(t *testing.T) {
	for _, ordering := range []Ordering{Ascending, Descending} {
		actual, err := ToOrdering(ordering.String())
		require.NoError(t, err)
		assert.Equal(t, ordering, actual)
	}

	_, err := ToOrdering("sideways")
	assert.Error(t, err)
}

func TestDefaultPaginationHandler(t *testing.T) {
	req, err := DefaultPaginationHandler()
	require.NoError(t, err)
	assert.EqualValues(t, MaxPagingLimit, req.Limit)
	assert.Equal(t, Ascending, req.SortBy)
	assert.Empty(t, req.Cursor)

	req, err = DefaultPaginationHandler(WithLimit(10), WithDirection(Descending), WithCursor(ToCursor(5)))
	require.NoError(t, err)
	assert.EqualValues(t, 10, req.Limit)
	assert.Equal(t, Descending, req.SortBy)
	assert.EqualValues(t, 5, req.Cursor.ToUint64())

	_, err = DefaultPaginationHandler(WithLimit(MaxPagingLimit + 1))
	assert.Equal(t, ErrQueryNotSupported, err)

	_, err = DefaultPaginationHandler(WithLimit(0))
	assert.Equal(t, ErrQueryNotSupported, err)

	_, err = DefaultPaginationHandler(WithCursor([]byte{1, 2, 3}))
	assert.Equal(t, ErrInvalidCursor, err)

	req = &QueryOptions{Supported: CanLimitResults}
	assert.Equal(t, ErrQueryNotSupported, req.Apply(WithDirection(Descending)))
}

func TestPaginateQuery(t *testing.T) {
	base := "SELECT id FROM audit WHERE (distribution = $1)"

	query, args := PaginateQuery(base, []interface{}{"d"}, EmptyCursor, 0, Ascending)
	assert.Equal(t, base+" ORDER BY id ASC", query)
	assert.Equal(t, []interface{}{"d"}, args)

	query, args = PaginateQuery(base, []interface{}{"d"}, ToCursor(7), 25, Descending)
	assert.Equal(t, base+" AND id < $2 ORDER BY id DESC LIMIT $3", query)
	assert.Equal(t, []interface{}{"d", uint64(7), uint64(25)}, args)

	query, _ = PaginateQuery(base, []interface{}{"d"}, ToCursor(7), 0, Ascending)
	assert.Equal(t, base+" AND id > $2 ORDER BY id ASC", query)
}
