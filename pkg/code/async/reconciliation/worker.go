package async_reconciliation

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-distributor/pkg/code/data/custody"
	"github.com/code-payments/code-distributor/pkg/metrics"
	"github.com/code-payments/code-distributor/pkg/retry"
	sync_util "github.com/code-payments/code-distributor/pkg/sync"
)

// report is the outcome of reconciling a single distribution
type report struct {
	distribution string

	expectedBalance uint64
	custodyBalance  uint64

	claimCount    uint64
	claimedQuarks uint64

	// Conditions that break the ledger's accounting. A custody balance above
	// the expected balance isn't one of them, since anyone can deposit into
	// the custody account directly.
	issues []string
}

func (r *report) isConsistent() bool {
	return len(r.issues) == 0
}

func (p *service) worker(serviceCtx context.Context, interval time.Duration) error {
	return retry.Loop(
		func() error {
			select {
			case <-serviceCtx.Done():
				return serviceCtx.Err()
			case <-p.clock.After(interval):
			}

			tracedCtx, end := metrics.StartTransaction(serviceCtx, "async__reconciliation_service__handle")
			defer end()

			reports, err := p.reconcileAll(tracedCtx)
			if err != nil {
				p.log.WithError(err).Warn("failure reconciling distributions")
				return err
			}

			var inconsistent uint64
			for _, report := range reports {
				if !report.isConsistent() {
					inconsistent++
				}
			}
			recordReconciliationCounts(tracedCtx, uint64(len(reports)), inconsistent)

			return nil
		},
		retry.NonRetriableErrors(context.Canceled),
	)
}

// reconcileAll reconciles every distribution. Distributions are spread over a
// bounded set of workers by address.
func (p *service) reconcileAll(ctx context.Context) ([]*report, error) {
	start := p.clock.Now()

	records, err := p.data.GetAllDistributions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error getting distributions")
	}

	concurrency := p.conf.processingConcurrency.Get(ctx)
	if concurrency == 0 {
		concurrency = 1
	}

	reports := make([]*report, len(records))
	errs := make([]error, len(records))

	work := sync_util.NewStripedChannel[int](uint(concurrency), uint(len(records)))

	var wg sync.WaitGroup
	for _, channel := range work.GetChannels() {
		wg.Add(1)

		go func(channel <-chan int) {
			defer wg.Done()

			for i := range channel {
				reports[i], errs[i] = p.reconcile(ctx, records[i].Address)
			}
		}(channel)
	}

	for i, record := range records {
		work.BlockingSend([]byte(record.Address), i)
	}
	work.Close()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	recordReconciliationDuration(ctx, p.clock.Since(start))

	return reports, nil
}

// reconcile checks a distribution's counters against its claim ledger and its
// custody account within a single consistent read
func (p *service) reconcile(ctx context.Context, address string) (*report, error) {
	log := p.log.WithFields(logrus.Fields{
		"method":       "reconcile",
		"distribution": address,
	})

	var res *report
	err := p.data.ExecuteInTx(ctx, sql.LevelRepeatableRead, func(ctx context.Context) error {
		record, err := p.data.GetDistribution(ctx, address)
		if err != nil {
			return errors.Wrap(err, "error getting distribution")
		}

		res = &report{
			distribution: record.Address,
		}

		if err := record.Validate(); err != nil {
			res.issues = append(res.issues, fmt.Sprintf("invalid state: %s", err.Error()))
		}

		if record.TotalAmountClaimed <= record.TotalFunded {
			res.expectedBalance = record.TotalFunded - record.TotalAmountClaimed
		}

		claims, err := p.data.GetAllDistributionClaims(ctx, address)
		if err != nil {
			return errors.Wrap(err, "error getting claims")
		}

		for _, claim := range claims {
			res.claimCount++
			res.claimedQuarks += claim.Quarks
		}

		if res.claimCount != record.NumClaimantsServed {
			res.issues = append(res.issues, fmt.Sprintf("%d claims recorded, but %d claimants served", res.claimCount, record.NumClaimantsServed))
		}

		if res.claimedQuarks != record.TotalAmountClaimed {
			res.issues = append(res.issues, fmt.Sprintf("%d quarks claimed in ledger, but %d in total amount claimed", res.claimedQuarks, record.TotalAmountClaimed))
		}

		custodyAccount, err := p.data.GetCustodyAccount(ctx, record.CustodyAccount)
		if err == custody.ErrAccountNotFound {
			res.issues = append(res.issues, "custody account not found")
			return nil
		} else if err != nil {
			return errors.Wrap(err, "error getting custody account")
		}

		res.custodyBalance = custodyAccount.Quarks
		if res.custodyBalance < res.expectedBalance {
			res.issues = append(res.issues, fmt.Sprintf("custody balance of %d is below the expected %d", res.custodyBalance, res.expectedBalance))
		}

		return nil
	})
	if err != nil {
		log.WithError(err).Warn("failure reconciling distribution")
		return nil, err
	}

	log = log.WithFields(logrus.Fields{
		"expected_balance": res.expectedBalance,
		"custody_balance":  res.custodyBalance,
	})
	if res.isConsistent() {
		log.Trace("distribution is consistent")
	} else {
		log.WithField("issues", res.issues).Warn("distribution is inconsistent")
	}

	recordReconciliationEvent(ctx, res)

	return res, nil
}
