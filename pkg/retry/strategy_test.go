package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/code-payments/code-distributor/pkg/retry/backoff"
)

func TestLimit(t *testing.T) {
	strategy := Limit(2)

	assert.True(t, strategy(1, errors.New("test")))
	assert.False(t, strategy(2, errors.New("test")))

	attempts, err := Retry(func() error {
		return errors.New("test")
	}, Limit(2))

	assert.EqualError(t, err, "test")
	assert.EqualValues(t, 2, attempts)
}

func TestRetriableErrorFunc(t *testing.T) {
	retriable := errors.New("retriable")

	strategy := RetriableErrorFunc(func(err error) bool {
		return errors.Is(err, retriable)
	})

	assert.True(t, strategy(1, retriable))
	assert.True(t, strategy(1, errors.Wrap(retriable, "wrapped")))
	assert.False(t, strategy(1, errors.New("other")))
}

func TestNonRetriableErrors(t *testing.T) {
	nonRetriable := []error{
		errors.New("nonRetriableA"),
		context.Canceled,
	}

	strategy := NonRetriableErrors(nonRetriable...)
	for _, err := range nonRetriable {
		assert.False(t, strategy(1, err))
		assert.False(t, strategy(1, errors.Wrap(err, "wrapper")))
	}
	assert.True(t, strategy(1, errors.New("unexpected")))
}

func TestWhileContextAlive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	strategy := WhileContextAlive(ctx)
	assert.True(t, strategy(1, errors.New("test")))

	cancel()
	assert.False(t, strategy(1, errors.New("test")))

	attempts, err := Retry(func() error { return errors.New("test") }, WhileContextAlive(ctx), Limit(10))
	assert.Error(t, err)
	assert.EqualValues(t, 1, attempts)
}

func TestBackoff(t *testing.T) {
	ts := useTestSleeper(t)

	strategy := Backoff(backoff.BinaryExponential(100*time.Millisecond), 300*time.Millisecond)
	for i := uint(1); i <= 4; i++ {
		assert.True(t, strategy(i, errors.New("test")))
	}

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}, ts.sleepTimes)
}

func TestBackoffWithJitter(t *testing.T) {
	ts := useTestSleeper(t)

	strategy := BackoffWithJitter(backoff.Constant(time.Second), 100*time.Millisecond, 0.1)
	for i := uint(1); i <= 100; i++ {
		assert.True(t, strategy(i, errors.New("test")))
	}

	for _, slept := range ts.sleepTimes {
		assert.True(t, slept >= 90*time.Millisecond, slept)
		assert.True(t, slept <= 110*time.Millisecond, slept)
	}
}
