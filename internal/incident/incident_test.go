package incident

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogReporter(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	reporter := NewLogReporter(zap.New(core))

	reporter.ReportFailure(context.Background(), "FLOW-1-0001", "execution", "executor code: boom")

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "flow stage failed", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "FLOW-1-0001", fields["flow_id"])
	assert.Equal(t, "execution", fields["stage"])
	assert.Equal(t, "executor code: boom", fields["error"])
}

func TestNewNATSReporterRequiresConnection(t *testing.T) {
	_, err := NewNATSReporter(nil, zap.NewNop())
	assert.Error(t, err)
}
