package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSStore publishes completion reports to NATS subjects
// knowledge.reports.<report_id>. Downstream consumers (search
// indexers, dashboards) subscribe to knowledge.reports.>.
type NATSStore struct {
	nc *nats.Conn
}

// NewNATSStore creates a NATS-backed knowledge store.
func NewNATSStore(nc *nats.Conn) (*NATSStore, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	return &NATSStore{nc: nc}, nil
}

// StoreReport publishes the report.
func (s *NATSStore) StoreReport(ctx context.Context, r *Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	subject := "knowledge.reports." + r.ReportID
	if err := s.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

// LogStore is the fallback knowledge store used when no NATS
// connection is configured: reports land in the structured log.
type LogStore struct {
	logger *zap.Logger
}

// NewLogStore creates a logging knowledge store.
func NewLogStore(logger *zap.Logger) *LogStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogStore{logger: logger}
}

// StoreReport logs the report.
func (s *LogStore) StoreReport(ctx context.Context, r *Report) error {
	s.logger.Info("completion report",
		zap.String("report_id", r.ReportID),
		zap.String("flow_id", r.FlowID),
		zap.String("task_type", r.TaskType),
		zap.String("certification", r.Certification),
		zap.Int("files", len(r.FilesCreated)),
	)
	return nil
}
