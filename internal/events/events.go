// Package events publishes per-stage flow lifecycle events to NATS.
//
// Events are published to subjects:
//
//	flows.{flow_id}.{stage}.{status}
//
// and feed the HTTP API's SSE stream as well as any other subscriber
// of flows.>. Publishing is best-effort; the pipeline never blocks on
// event delivery.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/flowd/internal/flow"
)

// StageEvent is the wire form of one stage lifecycle transition.
type StageEvent struct {
	EventID  string           `json:"event_id"`
	FlowID   string           `json:"flow_id"`
	Stage    flow.Stage       `json:"stage"`
	Status   flow.StageStatus `json:"status"`
	Error    string           `json:"error,omitempty"`
	EmitTime time.Time        `json:"emit_time"`
}

// Publisher emits stage events. A nil *Publisher is valid and
// publishes nothing, so callers need no nil checks.
type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewPublisher creates a NATS-backed stage event publisher.
func NewPublisher(nc *nats.Conn, logger *zap.Logger) (*Publisher, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{nc: nc, logger: logger}, nil
}

// StageTransition publishes one stage status change.
func (p *Publisher) StageTransition(flowID string, stage flow.Stage, status flow.StageStatus, errMsg string) {
	if p == nil {
		return
	}

	event := StageEvent{
		EventID:  uuid.New().String(),
		FlowID:   flowID,
		Stage:    stage,
		Status:   status,
		Error:    errMsg,
		EmitTime: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal stage event", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("flows.%s.%s.%s", flowID, stage, status)
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Debug("stage event publish failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// FlowSubject returns the wildcard subject matching every event for
// one flow. Used by the SSE bridge.
func FlowSubject(flowID string) string {
	return fmt.Sprintf("flows.%s.>", flowID)
}
