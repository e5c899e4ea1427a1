package async_reconciliation

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-distributor/pkg/code/async"
	code_data "github.com/code-payments/code-distributor/pkg/code/data"
)

type service struct {
	log   *logrus.Entry
	conf  *conf
	data  code_data.Provider
	clock clockwork.Clock
}

// New returns a service that periodically checks every distribution's ledger
// against its custody account
func New(data code_data.Provider, configProvider ConfigProvider, clock clockwork.Clock) async.Service {
	return &service{
		log:   logrus.StandardLogger().WithField("service", "reconciliation"),
		conf:  configProvider(),
		data:  data,
		clock: clock,
	}
}

func (p *service) Start(ctx context.Context, interval time.Duration) error {
	go func() {
		err := p.worker(ctx, interval)
		if err != nil && err != context.Canceled {
			p.log.WithError(err).Warn("reconciliation loop terminated unexpectedly")
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}
