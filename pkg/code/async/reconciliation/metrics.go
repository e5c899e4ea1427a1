package async_reconciliation

import (
	"context"
	"time"

	"github.com/code-payments/code-distributor/pkg/metrics"
)

const (
	distributionReconciledEventName = "DistributionReconciled"

	distributionsReconciledMetricName   = "Reconciliation/distributions_reconciled"
	distributionsInconsistentMetricName = "Reconciliation/distributions_inconsistent"
	reconciliationDurationMetricName    = "Reconciliation/duration"
)

func recordReconciliationEvent(ctx context.Context, res *report) {
	metrics.RecordEvent(ctx, distributionReconciledEventName, map[string]interface{}{
		"distribution":     res.distribution,
		"consistent":       res.isConsistent(),
		"expected_balance": res.expectedBalance,
		"custody_balance":  res.custodyBalance,
		"claim_count":      res.claimCount,
		"claimed_quarks":   res.claimedQuarks,
	})
}

func recordReconciliationCounts(ctx context.Context, reconciled, inconsistent uint64) {
	metrics.RecordCount(ctx, distributionsReconciledMetricName, reconciled)
	metrics.RecordCount(ctx, distributionsInconsistentMetricName, inconsistent)
}

func recordReconciliationDuration(ctx context.Context, duration time.Duration) {
	metrics.RecordDuration(ctx, reconciliationDurationMetricName, duration)
}
