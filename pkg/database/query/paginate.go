package query

import "strconv"

// PaginateQuery appends cursor, ordering and limit clauses over the id column
// to a query whose WHERE clause is fully bracketed, numbering new parameters
// after the existing args.
//
//	PaginateQuery("SELECT * FROM t WHERE (owner = $1)", []interface{}{owner}, cursor, 10, Descending)
//	> "SELECT * FROM t WHERE (owner = $1) AND id < $2 ORDER BY id DESC LIMIT $3"
func PaginateQuery(query string, args []interface{}, cursor Cursor, limit uint64, direction Ordering) (string, []interface{}) {
	if len(cursor) > 0 {
		comparison := " > $"
		if direction == Descending {
			comparison = " < $"
		}

		query += " AND id" + comparison + strconv.Itoa(len(args)+1)
		args = append(args, cursor.ToUint64())
	}

	query += " ORDER BY id " + direction.sql()

	if limit > 0 {
		query += " LIMIT $" + strconv.Itoa(len(args)+1)
		args = append(args, limit)
	}

	return query, args
}
