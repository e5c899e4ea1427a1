package query

import (
	"encoding/binary"

	"github.com/mr-tron/base58"
)

// Cursor is the big endian encoding of the id of the last record in a page
type Cursor []byte

const cursorSize = 8

var EmptyCursor = Cursor{}

func ToCursor(val uint64) Cursor {
	b := make([]byte, cursorSize)
	binary.BigEndian.PutUint64(b, val)
	return b
}

// CursorFromBase58 decodes a cursor previously encoded with ToBase58
func CursorFromBase58(encoded string) (Cursor, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil || len(decoded) != cursorSize {
		return nil, ErrInvalidCursor
	}
	return decoded, nil
}

func (c Cursor) ToUint64() uint64 {
	return binary.BigEndian.Uint64(c)
}

func (c Cursor) ToBase58() string {
	return base58.Encode(c)
}
