package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint64(t *testing.T) {
	assert.EqualValues(t, 42, *Uint64(42))

	assert.Nil(t, Uint64IfValid(false, 42))
	assert.EqualValues(t, 42, *Uint64IfValid(true, 42))

	assert.Nil(t, Uint64Copy(nil))

	original := Uint64(7)
	copied := Uint64Copy(original)
	*original = 8
	assert.EqualValues(t, 7, *copied)
}
