package metrics

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicContextKey is the context key for the *newrelic.Application that
// events and custom metrics are reported to
type NewRelicContextKey struct{}

// WithNewRelic returns a context carrying app. A nil app leaves ctx untouched,
// which turns the recording functions into no-ops.
func WithNewRelic(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, NewRelicContextKey{}, app)
}

func fromContext(ctx context.Context) *newrelic.Application {
	nr, _ := ctx.Value(NewRelicContextKey{}).(*newrelic.Application)
	return nr
}

// StartTransaction starts a background transaction against the application in
// ctx. The returned func ends it. Without an application, ctx is returned as
// is.
func StartTransaction(ctx context.Context, name string) (context.Context, func()) {
	nr := fromContext(ctx)
	if nr == nil {
		return ctx, func() {}
	}

	txn := nr.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), txn.End
}

// RecordEvent records a new event with a name and set of key-value pairs
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if nr := fromContext(ctx); nr != nil {
		nr.RecordCustomEvent(eventName, kvPairs)
	}
}

// RecordCount records a count metric
func RecordCount(ctx context.Context, metricName string, count uint64) {
	if nr := fromContext(ctx); nr != nil {
		nr.RecordCustomMetric(metricName, float64(count))
	}
}

// RecordDuration records a duration metric in milliseconds
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	if nr := fromContext(ctx); nr != nil {
		nr.RecordCustomMetric(metricName, float64(duration/time.Millisecond))
	}
}
