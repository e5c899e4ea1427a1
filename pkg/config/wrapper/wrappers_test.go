package wrapper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-distributor/pkg/config"
	"github.com/code-payments/code-distributor/pkg/config/memory"
)

// testWrapper runs a wrapper through its default, override, error and
// cleared states
func testWrapper[T any](t *testing.T, ctor func(config.Config, T) config.Value[T], defaultValue, overrideValue T, rawOverride []byte) {
	ctx := context.Background()

	source := memory.NewConfig(nil)
	wrapped := ctor(source, defaultValue)

	val, err := wrapped.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)

	source.SetValue(overrideValue)
	val, err = wrapped.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, overrideValue, val)

	// The last observed value survives source failures
	source.SetError(errors.New("induced"))
	val, err = wrapped.GetSafe(ctx)
	assert.Error(t, err)
	assert.Equal(t, overrideValue, val)
	assert.Equal(t, overrideValue, wrapped.Get(ctx))
	source.SetError(nil)

	source.SetValue(nil)
	assert.Equal(t, defaultValue, wrapped.Get(ctx))

	source.SetValue(rawOverride)
	val, err = wrapped.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, overrideValue, val)

	source.SetValue(struct{}{})
	val, err = wrapped.GetSafe(ctx)
	assert.Equal(t, ErrUnsupportedConversion, err)
	assert.Equal(t, overrideValue, val)

	source.SetValue([]byte("not parseable"))
	_, err = wrapped.GetSafe(ctx)
	assert.Error(t, err)
}

func TestBoolConfig(t *testing.T) {
	testWrapper(t, NewBoolConfig, false, true, []byte("true"))
}

func TestUint64Config(t *testing.T) {
	testWrapper(t, NewUint64Config, 16, 1024, []byte("1024"))

	source := memory.NewConfig(-1)
	_, err := NewUint64Config(source, 16).GetSafe(context.Background())
	assert.Error(t, err)

	source.SetValue(8)
	assert.EqualValues(t, 8, NewUint64Config(source, 16).Get(context.Background()))
}

func TestFloat64Config(t *testing.T) {
	testWrapper(t, NewFloat64Config, 0, 2.5, []byte("2.5"))
}

func TestDurationConfig(t *testing.T) {
	testWrapper(t, NewDurationConfig, time.Second, 250*time.Millisecond, []byte("250ms"))
}

func TestShutdown(t *testing.T) {
	source := memory.NewConfig(true)
	wrapped := NewBoolConfig(source, false)
	assert.True(t, wrapped.Get(context.Background()))

	wrapped.Shutdown()
	val, err := wrapped.GetSafe(context.Background())
	assert.Equal(t, config.ErrShutdown, err)
	assert.True(t, val)
}
