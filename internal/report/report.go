// Package report implements the report stage: building the completion
// report for a flow and publishing it to the knowledge store.
// Publishing is fire-and-forget; a delivery failure downgrades to a
// logged warning and never fails the stage.
package report

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/flowd/internal/flow"
)

// Certification levels derived from the quality verdict.
const (
	CertGold        = "gold"
	CertCertified   = "certified"
	CertProvisional = "provisional"
)

// Report is the persisted completion summary for a flow.
type Report struct {
	ReportID        string               `json:"report_id"`
	FlowID          string               `json:"flow_id"`
	TaskType        string               `json:"task_type"`
	Certification   string               `json:"certification"`
	Recommendations []string             `json:"recommendations,omitempty"`
	EstimatedHours  float64              `json:"estimated_hours,omitempty"`
	FilesCreated    []string             `json:"files_created,omitempty"`
	Verdict         *flow.QualityVerdict `json:"verdict,omitempty"`
	StageTimings    map[string]float64   `json:"stage_timings_seconds"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// KnowledgeStore is the durable sink for completion reports.
type KnowledgeStore interface {
	StoreReport(ctx context.Context, r *Report) error
}

// Generator builds and publishes reports.
type Generator struct {
	store     KnowledgeStore
	threshold int
	logger    *zap.Logger
	seq       atomic.Uint64
}

// NewGenerator creates a generator. threshold is the quality gate's
// passing threshold, used to derive certification levels.
func NewGenerator(store KnowledgeStore, threshold int, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		store:     store,
		threshold: threshold,
		logger:    logger,
	}
}

// Generate builds the report from the flow record's completed stages
// and publishes it. The returned stage result records the report ID;
// a knowledge-store delivery failure is logged, not escalated.
func (g *Generator) Generate(ctx context.Context, record *flow.FlowRecord) (map[string]interface{}, error) {
	if record == nil {
		return nil, fmt.Errorf("flow record is required")
	}

	r := &Report{
		ReportID:     fmt.Sprintf("REPORT-%d-%04d", time.Now().Unix(), g.seq.Add(1)%10000),
		FlowID:       record.FlowID,
		TaskType:     record.TaskType,
		StageTimings: stageTimings(record),
		GeneratedAt:  time.Now().UTC(),
	}

	if consult := record.StageByName(flow.StageConsultation); consult != nil && consult.Result != nil {
		if recs, ok := consult.Result["recommendations"].([]string); ok {
			r.Recommendations = recs
		}
		if est, ok := consult.Result["estimated_hours"].(float64); ok {
			r.EstimatedHours = est
		}
	}

	if exec := record.StageByName(flow.StageExecution); exec != nil && exec.Result != nil {
		if files, ok := exec.Result["files_created"].([]string); ok {
			r.FilesCreated = files
		}
	}

	r.Certification = CertProvisional
	if gateStage := record.StageByName(flow.StageQualityGate); gateStage != nil && gateStage.Result != nil {
		if verdict, ok := gateStage.Result["verdict"].(*flow.QualityVerdict); ok {
			r.Verdict = verdict
			r.Certification = g.certification(verdict)
		}
	}

	if err := g.store.StoreReport(ctx, r); err != nil {
		// Non-fatal: the flow's own record still captures everything the
		// report summarizes.
		g.logger.Warn("knowledge store delivery failed",
			zap.String("report_id", r.ReportID),
			zap.String("flow_id", r.FlowID),
			zap.Error(err),
		)
	}

	g.logger.Info("report generated",
		zap.String("report_id", r.ReportID),
		zap.String("flow_id", r.FlowID),
		zap.String("certification", r.Certification),
	)

	return map[string]interface{}{
		"report_generated": true,
		"report_id":        r.ReportID,
		"certification":    r.Certification,
	}, nil
}

// certification maps a verdict onto a certification level: gold for
// comfortably above threshold, certified for passing, provisional for
// a failed verdict.
func (g *Generator) certification(v *flow.QualityVerdict) string {
	switch {
	case v.Passed && v.Score >= g.threshold+10:
		return CertGold
	case v.Passed:
		return CertCertified
	default:
		return CertProvisional
	}
}

func stageTimings(record *flow.FlowRecord) map[string]float64 {
	timings := make(map[string]float64, len(record.Stages))
	for _, sr := range record.Stages {
		if sr.StartedAt.IsZero() || sr.CompletedAt.IsZero() {
			continue
		}
		timings[string(sr.Name)] = sr.CompletedAt.Sub(sr.StartedAt).Seconds()
	}
	return timings
}
