package main

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/mitchellh/mapstructure"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-distributor/pkg/app"
	async_reconciliation "github.com/code-payments/code-distributor/pkg/code/async/reconciliation"
	"github.com/code-payments/code-distributor/pkg/code/common"
	code_data "github.com/code-payments/code-distributor/pkg/code/data"
	"github.com/code-payments/code-distributor/pkg/code/data/custody"
	"github.com/code-payments/code-distributor/pkg/code/distribution"
	web_distribution "github.com/code-payments/code-distributor/pkg/code/server/web/distribution"
	pg "github.com/code-payments/code-distributor/pkg/database/postgres"
	"github.com/code-payments/code-distributor/pkg/metrics"
)

type appConfig struct {
	DbUser               string `mapstructure:"db_user"`
	DbPassword           string `mapstructure:"db_password"`
	DbHost               string `mapstructure:"db_host"`
	DbPort               int    `mapstructure:"db_port"`
	DbName               string `mapstructure:"db_name"`
	DbMaxOpenConnections int    `mapstructure:"db_max_open_connections"`
	DbMaxIdleConnections int    `mapstructure:"db_max_idle_connections"`
	DbUseAwsIam          bool   `mapstructure:"db_use_aws_iam"`

	// In memory storage for local development. Nothing survives a restart.
	UseMemoryStore bool `mapstructure:"use_memory_store"`

	ReconciliationInterval time.Duration `mapstructure:"reconciliation_interval"`

	// Accounts opened at startup, so funders have balances to initialize and
	// top up distributions from. Existing accounts are left untouched.
	FundedAccounts []fundedAccount `mapstructure:"funded_accounts"`
}

type fundedAccount struct {
	Address string `mapstructure:"address"`
	Quarks  uint64 `mapstructure:"quarks"`
}

var defaultAppConfig = appConfig{
	DbPort:                 5432,
	ReconciliationInterval: 5 * time.Minute,
}

type distributorApp struct {
	log *logrus.Entry

	data code_data.Provider
	web  *web_distribution.Server

	ctx        context.Context
	cancel     context.CancelFunc
	shutdownCh chan struct{}
	stopOnce   sync.Once
	workers    sync.WaitGroup
}

func (a *distributorApp) Init(config app.Config, metricsProvider *newrelic.Application) error {
	a.log = logrus.StandardLogger().WithField("type", "distributor/app")

	parsed := defaultAppConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &parsed,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]interface{}(config)); err != nil {
		return errors.Wrap(err, "error decoding app config")
	}

	var data code_data.Provider
	if parsed.UseMemoryStore {
		a.log.Warn("using in memory storage")
		data = code_data.NewTestDataProvider()
	} else {
		data, err = code_data.NewDataProvider(&pg.Config{
			User:               parsed.DbUser,
			Password:           parsed.DbPassword,
			Host:               parsed.DbHost,
			Port:               parsed.DbPort,
			DbName:             parsed.DbName,
			MaxOpenConnections: parsed.DbMaxOpenConnections,
			MaxIdleConnections: parsed.DbMaxIdleConnections,
			UseAwsIam:          parsed.DbUseAwsIam,
		})
		if err != nil {
			return errors.Wrap(err, "error creating data provider")
		}
	}

	a.data = data

	clock := clockwork.NewRealClock()

	if err := seedFundedAccounts(context.Background(), a.log, data, clock, parsed.FundedAccounts); err != nil {
		return errors.Wrap(err, "error seeding funded accounts")
	}

	controller := distribution.NewController(data, distribution.WithEnvConfigs(), clock)
	a.web = web_distribution.NewDistributionServer(controller, web_distribution.WithEnvConfigs(), clock)

	a.ctx, a.cancel = context.WithCancel(metrics.WithNewRelic(context.Background(), metricsProvider))
	a.shutdownCh = make(chan struct{})

	reconciler := async_reconciliation.New(data, async_reconciliation.WithEnvConfigs(), clock)
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()

		err := reconciler.Start(a.ctx, parsed.ReconciliationInterval)
		if err != nil && err != context.Canceled {
			a.log.WithError(err).Warn("reconciliation service terminated unexpectedly")
		}
	}()

	return nil
}

func (a *distributorApp) RegisterWithHTTP(router chi.Router) {
	router.Mount("/", a.web.Router())
}

func (a *distributorApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

func (a *distributorApp) Stop() {
	a.stopOnce.Do(func() {
		a.cancel()
		a.workers.Wait()

		if err := a.data.Close(); err != nil {
			a.log.WithError(err).Warn("failure closing data provider")
		}

		close(a.shutdownCh)
	})
}

// seedFundedAccounts opens each account owned by its own address with its
// configured balance
func seedFundedAccounts(ctx context.Context, log *logrus.Entry, data code_data.Provider, clock clockwork.Clock, accounts []fundedAccount) error {
	for _, account := range accounts {
		if _, err := common.NewAccountFromPublicKeyString(account.Address); err != nil {
			return errors.Wrapf(err, "invalid funded account address %s", account.Address)
		}
		if account.Quarks > math.MaxInt64 {
			return errors.Errorf("balance for %s is too large", account.Address)
		}

		err := data.CreateCustodyAccount(ctx, &custody.AccountRecord{
			Address:   account.Address,
			Owner:     account.Address,
			Quarks:    account.Quarks,
			CreatedAt: clock.Now(),
		})
		if errors.Is(err, custody.ErrAccountExists) {
			continue
		} else if err != nil {
			return errors.Wrapf(err, "error opening account %s", account.Address)
		}

		log.WithFields(logrus.Fields{
			"account": account.Address,
			"quarks":  account.Quarks,
		}).Info("opened funded account")
	}
	return nil
}

func main() {
	if err := app.Run(&distributorApp{}); err != nil {
		logrus.StandardLogger().WithError(err).Fatal("error running distributor")
	}
}
