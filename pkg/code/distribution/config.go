package distribution

import (
	"time"

	"github.com/code-payments/code-distributor/pkg/config"
	"github.com/code-payments/code-distributor/pkg/config/env"
	"github.com/code-payments/code-distributor/pkg/config/memory"
	"github.com/code-payments/code-distributor/pkg/config/wrapper"
)

const (
	envConfigPrefix = "DISTRIBUTION_SERVICE_"

	DisableClaimsConfigEnvName = envConfigPrefix + "DISABLE_CLAIMS"
	defaultDisableClaims       = false

	StripedLockParallelizationConfigEnvName = envConfigPrefix + "STRIPED_LOCK_PARALLELIZATION"
	defaultStripedLockParallelization       = 1024

	LockTimeoutConfigEnvName = envConfigPrefix + "LOCK_TIMEOUT"
	defaultLockTimeout       = 5 * time.Second

	MaxTxAttemptsConfigEnvName = envConfigPrefix + "MAX_TX_ATTEMPTS"
	defaultMaxTxAttempts       = 5

	TxRetryBaseDelayConfigEnvName = envConfigPrefix + "TX_RETRY_BASE_DELAY"
	defaultTxRetryBaseDelay       = 25 * time.Millisecond

	TxRetryMaxDelayConfigEnvName = envConfigPrefix + "TX_RETRY_MAX_DELAY"
	defaultTxRetryMaxDelay       = time.Second
)

type conf struct {
	disableClaims              config.Bool
	stripedLockParallelization config.Uint64
	lockTimeout                config.Duration
	maxTxAttempts              config.Uint64
	txRetryBaseDelay           config.Duration
	txRetryMaxDelay            config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			disableClaims:              env.NewBoolConfig(DisableClaimsConfigEnvName, defaultDisableClaims),
			stripedLockParallelization: env.NewUint64Config(StripedLockParallelizationConfigEnvName, defaultStripedLockParallelization),
			lockTimeout:                env.NewDurationConfig(LockTimeoutConfigEnvName, defaultLockTimeout),
			maxTxAttempts:              env.NewUint64Config(MaxTxAttemptsConfigEnvName, defaultMaxTxAttempts),
			txRetryBaseDelay:           env.NewDurationConfig(TxRetryBaseDelayConfigEnvName, defaultTxRetryBaseDelay),
			txRetryMaxDelay:            env.NewDurationConfig(TxRetryMaxDelayConfigEnvName, defaultTxRetryMaxDelay),
		}
	}
}

type testOverrides struct {
	disableClaims bool
	lockTimeout   time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	lockTimeout := defaultLockTimeout
	if overrides.lockTimeout > 0 {
		lockTimeout = overrides.lockTimeout
	}

	return func() *conf {
		return &conf{
			disableClaims:              wrapper.NewBoolConfig(memory.NewConfig(overrides.disableClaims), defaultDisableClaims),
			stripedLockParallelization: wrapper.NewUint64Config(memory.NewConfig(uint64(16)), defaultStripedLockParallelization),
			lockTimeout:                wrapper.NewDurationConfig(memory.NewConfig(lockTimeout), defaultLockTimeout),
			maxTxAttempts:              wrapper.NewUint64Config(memory.NewConfig(uint64(defaultMaxTxAttempts)), defaultMaxTxAttempts),
			txRetryBaseDelay:           wrapper.NewDurationConfig(memory.NewConfig(time.Millisecond), defaultTxRetryBaseDelay),
			txRetryMaxDelay:            wrapper.NewDurationConfig(memory.NewConfig(10*time.Millisecond), defaultTxRetryMaxDelay),
		}
	}
}
