package async_reconciliation

import (
	"github.com/code-payments/code-distributor/pkg/config"
	"github.com/code-payments/code-distributor/pkg/config/env"
	"github.com/code-payments/code-distributor/pkg/config/memory"
	"github.com/code-payments/code-distributor/pkg/config/wrapper"
)

const (
	envConfigPrefix = "RECONCILIATION_SERVICE_"

	ProcessingConcurrencyConfigEnvName = envConfigPrefix + "PROCESSING_CONCURRENCY"
	defaultProcessingConcurrency       = 8
)

type conf struct {
	processingConcurrency config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			processingConcurrency: env.NewUint64Config(ProcessingConcurrencyConfigEnvName, defaultProcessingConcurrency),
		}
	}
}

type testOverrides struct {
	processingConcurrency uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	if overrides.processingConcurrency == 0 {
		overrides.processingConcurrency = defaultProcessingConcurrency
	}

	return func() *conf {
		return &conf{
			processingConcurrency: wrapper.NewUint64Config(memory.NewConfig(overrides.processingConcurrency), defaultProcessingConcurrency),
		}
	}
}
