package backoff

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	s := Constant(100 * time.Millisecond)

	for i := uint(1); i < 10; i++ {
		assert.Equal(t, 100*time.Millisecond, s(i))
	}
}

func TestExponential(t *testing.T) {
	s := Exponential(2*time.Second, 3)

	for i, expected := range []time.Duration{2 * time.Second, 6 * time.Second, 18 * time.Second, 54 * time.Second} {
		assert.Equal(t, expected, s(uint(i+1)))
	}

	assert.EqualValues(t, math.MaxInt64, s(1000))
}

func TestBinaryExponential(t *testing.T) {
	s := BinaryExponential(5 * time.Millisecond)

	for i, expected := range []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond} {
		assert.Equal(t, expected, s(uint(i+1)))
	}
}
