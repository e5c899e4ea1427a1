package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/code-distributor/pkg/retry/backoff"
)

type testSleeper struct {
	sleepTimes []time.Duration
}

func (s *testSleeper) Sleep(d time.Duration) {
	s.sleepTimes = append(s.sleepTimes, d)
}

func useTestSleeper(t *testing.T) *testSleeper {
	ts := &testSleeper{}
	sleeperImpl = ts
	t.Cleanup(func() {
		sleeperImpl = realSleeper{}
	})
	return ts
}

func TestRetry(t *testing.T) {
	ts := useTestSleeper(t)

	attempts, err := Retry(func() error { return nil }, Limit(3))
	assert.NoError(t, err)
	assert.EqualValues(t, 1, attempts)

	var calls int
	attempts, err = Retry(
		func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		},
		Limit(5),
		Backoff(backoff.BinaryExponential(time.Millisecond), time.Second),
	)
	assert.NoError(t, err)
	assert.EqualValues(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, ts.sleepTimes)
}

func TestRealSleeper(t *testing.T) {
	start := time.Now()
	attempts, err := Retry(func() error { return errors.New("err") },
		Limit(2),
		Backoff(backoff.Constant(100*time.Millisecond), time.Second),
	)

	assert.Error(t, err)
	assert.EqualValues(t, 2, attempts)
	assert.True(t, time.Since(start) >= 100*time.Millisecond)
}

func TestLoop(t *testing.T) {
	ts := useTestSleeper(t)

	errNonRetriable := errors.New("non retriable")

	var i int
	err := Loop(
		func() error {
			defer func() { i++ }()

			if i > 10 {
				return errNonRetriable
			}
			if i%4 == 0 {
				return nil
			}
			return errors.New("blah")
		},
		NonRetriableErrors(errNonRetriable),
		Backoff(backoff.Exponential(1, 1), time.Second),
	)
	assert.Equal(t, errNonRetriable, err)

	// Three failures follow every success, and the final attempt isn't retried
	assert.Len(t, ts.sleepTimes, 8)
}
