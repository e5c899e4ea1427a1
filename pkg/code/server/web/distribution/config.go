package distribution

import (
	"time"

	"github.com/code-payments/code-distributor/pkg/config"
	"github.com/code-payments/code-distributor/pkg/config/env"
	"github.com/code-payments/code-distributor/pkg/config/memory"
	"github.com/code-payments/code-distributor/pkg/config/wrapper"
)

const (
	envConfigPrefix = "DISTRIBUTION_WEB_"

	ClaimRateLimitConfigEnvName = envConfigPrefix + "CLAIM_RATE_LIMIT"
	defaultClaimRateLimit       = 1.0

	MaxRequestAgeConfigEnvName = envConfigPrefix + "MAX_REQUEST_AGE"
	defaultMaxRequestAge       = 2 * time.Minute

	SignatureCacheSizeConfigEnvName = envConfigPrefix + "SIGNATURE_CACHE_SIZE"
	defaultSignatureCacheSize       = 1_000_000
)

type conf struct {
	claimRateLimit     config.Float64
	maxRequestAge      config.Duration
	signatureCacheSize config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			claimRateLimit:     env.NewFloat64Config(ClaimRateLimitConfigEnvName, defaultClaimRateLimit),
			maxRequestAge:      env.NewDurationConfig(MaxRequestAgeConfigEnvName, defaultMaxRequestAge),
			signatureCacheSize: env.NewUint64Config(SignatureCacheSizeConfigEnvName, defaultSignatureCacheSize),
		}
	}
}

type testOverrides struct {
	claimRateLimit float64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	claimRateLimit := 100.0
	if overrides.claimRateLimit > 0 {
		claimRateLimit = overrides.claimRateLimit
	}

	return func() *conf {
		return &conf{
			claimRateLimit:     wrapper.NewFloat64Config(memory.NewConfig(claimRateLimit), defaultClaimRateLimit),
			maxRequestAge:      wrapper.NewDurationConfig(memory.NewConfig(defaultMaxRequestAge), defaultMaxRequestAge),
			signatureCacheSize: wrapper.NewUint64Config(memory.NewConfig(uint64(1000)), defaultSignatureCacheSize),
		}
	}
}
