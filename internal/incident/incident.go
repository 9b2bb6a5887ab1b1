// Package incident notifies an incident channel when a flow stage
// fails unrecoverably. Reporting is best-effort: a reporter error is
// logged and never propagates into the pipeline.
package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Reporter is notified once per failed flow.
type Reporter interface {
	ReportFailure(ctx context.Context, flowID, stageName, errorMessage string)
}

// failureEvent is the wire form published by the NATS reporter.
type failureEvent struct {
	FlowID     string    `json:"flow_id"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error"`
	ReportedAt time.Time `json:"reported_at"`
}

// NATSReporter publishes failures to flows.<flow_id>.incident.
type NATSReporter struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewNATSReporter creates a NATS-backed reporter.
func NewNATSReporter(nc *nats.Conn, logger *zap.Logger) (*NATSReporter, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSReporter{nc: nc, logger: logger}, nil
}

// ReportFailure publishes the failure event. Errors are swallowed
// after logging; incident delivery must never stall a pipeline.
func (r *NATSReporter) ReportFailure(ctx context.Context, flowID, stageName, errorMessage string) {
	event := failureEvent{
		FlowID:     flowID,
		Stage:      stageName,
		Error:      errorMessage,
		ReportedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("marshal incident event", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("flows.%s.incident", flowID)
	if err := r.nc.Publish(subject, data); err != nil {
		r.logger.Warn("incident publish failed",
			zap.String("flow_id", flowID),
			zap.String("stage", stageName),
			zap.Error(err),
		)
	}
}

// LogReporter records failures to the structured log. Used when no
// incident backend is configured.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a logging reporter.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger}
}

// ReportFailure logs the failure.
func (r *LogReporter) ReportFailure(ctx context.Context, flowID, stageName, errorMessage string) {
	r.logger.Error("flow stage failed",
		zap.String("flow_id", flowID),
		zap.String("stage", stageName),
		zap.String("error", errorMessage),
	)
}
