package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestWithoutNewRelic(t *testing.T) {
	ctx := WithNewRelic(context.Background(), nil)
	assert.Nil(t, ctx.Value(NewRelicContextKey{}))

	// Everything is a no-op without an application or transaction
	RecordEvent(ctx, "Event", map[string]interface{}{"key": "value"})
	RecordCount(ctx, "Count", 1)
	RecordDuration(ctx, "Duration", time.Second)

	tracedCtx, end := StartTransaction(ctx, "txn")
	assert.Equal(t, ctx, tracedCtx)
	end()

	tracer := TraceMethodCall(ctx, "struct", "method")
	assert.Nil(t, tracer)
	tracer.AddAttribute("key", "value")
	tracer.OnError(errors.New("error"))
	tracer.End()
}

func TestLogMessage(t *testing.T) {
	entry := logrus.NewEntry(logrus.StandardLogger())
	entry.Message = "message"
	assert.Equal(t, "message", logMessage(entry))

	entry = entry.WithError(errors.New("failed")).WithField("distribution", "abc")
	entry.Message = "message"
	assert.Equal(t, `message="message", error="failed", data={"distribution":"abc"}`, logMessage(entry))
}
