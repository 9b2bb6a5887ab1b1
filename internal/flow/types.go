package flow

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stage identifies one of the five fixed pipeline stages.
type Stage string

const (
	// StageConsultation fans the task out to the advisory services.
	StageConsultation Stage = "consultation"

	// StageExecution routes the task to one specialized executor.
	StageExecution Stage = "execution"

	// StageQualityGate scores executor output against the compliance ruleset.
	StageQualityGate Stage = "quality_gate"

	// StageReport builds and publishes the completion report.
	StageReport Stage = "report"

	// StageAutomation hands produced artifacts to version-control automation.
	StageAutomation Stage = "automation"
)

// AllStages returns the stages in execution order.
func AllStages() []Stage {
	return []Stage{StageConsultation, StageExecution, StageQualityGate, StageReport, StageAutomation}
}

// StageStatus represents the completion status of a stage.
type StageStatus string

const (
	StatusPending   StageStatus = "pending"
	StatusRunning   StageStatus = "running"
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
	StatusSkipped   StageStatus = "skipped"
)

// FlowStatus is the terminal-or-running status of a whole flow.
type FlowStatus string

const (
	FlowRunning   FlowStatus = "running"
	FlowCompleted FlowStatus = "completed"
	FlowFailed    FlowStatus = "failed"
)

// Priority orders submitted tasks.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// StageResult captures the outcome of a single stage execution.
// It is owned exclusively by the FlowRecord that contains it.
type StageResult struct {
	Name        Stage                  `json:"name"`
	Status      StageStatus            `json:"status"`
	Result      map[string]interface{} `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at,omitempty"`
	CompletedAt time.Time              `json:"completed_at,omitempty"`
}

// FlowRecord is the durable state of one pipeline execution.
type FlowRecord struct {
	FlowID       string         `json:"flow_id"`
	TaskType     string         `json:"task_type"`
	Requirements []string       `json:"requirements"`
	Priority     Priority       `json:"priority"`
	Status       FlowStatus     `json:"status"`
	Stages       []*StageResult `json:"stages"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// flowSeq disambiguates flow IDs created within the same second.
var flowSeq atomic.Uint64

// NewFlowID returns a globally unique flow identifier in the
// FLOW-<timestamp>-<seq> format.
func NewFlowID(now time.Time) string {
	return fmt.Sprintf("FLOW-%d-%04d", now.Unix(), flowSeq.Add(1)%10000)
}

// NewFlowRecord creates a running flow record with all five stages pending.
func NewFlowRecord(taskType string, requirements []string, priority Priority) *FlowRecord {
	now := time.Now().UTC()

	stages := make([]*StageResult, 0, len(AllStages()))
	for _, s := range AllStages() {
		stages = append(stages, &StageResult{Name: s, Status: StatusPending})
	}

	reqs := make([]string, len(requirements))
	copy(reqs, requirements)

	return &FlowRecord{
		FlowID:       NewFlowID(now),
		TaskType:     taskType,
		Requirements: reqs,
		Priority:     priority,
		Status:       FlowRunning,
		Stages:       stages,
		CreatedAt:    now,
	}
}

// StageIndex returns the position of s in the fixed stage order, or -1.
func StageIndex(s Stage) int {
	for i, stage := range AllStages() {
		if stage == s {
			return i
		}
	}
	return -1
}

// StageByName returns the stage result with the given name, or nil.
func (r *FlowRecord) StageByName(s Stage) *StageResult {
	for _, sr := range r.Stages {
		if sr.Name == s {
			return sr
		}
	}
	return nil
}

// SkipRemaining marks every stage after the given index as skipped.
// Called once when a stage fails; skipped stages are never re-attempted.
func (r *FlowRecord) SkipRemaining(after int) {
	for i := after + 1; i < len(r.Stages); i++ {
		r.Stages[i].Status = StatusSkipped
	}
}

// DeriveStatus computes the flow status as a pure function of the stage
// statuses: failed if any stage failed, completed if all completed,
// running otherwise.
func (r *FlowRecord) DeriveStatus() FlowStatus {
	completed := 0
	for _, sr := range r.Stages {
		switch sr.Status {
		case StatusFailed:
			return FlowFailed
		case StatusCompleted:
			completed++
		}
	}
	if completed == len(r.Stages) {
		return FlowCompleted
	}
	return FlowRunning
}

// Terminal reports whether the flow has reached a terminal status.
func (r *FlowRecord) Terminal() bool {
	return r.Status == FlowCompleted || r.Status == FlowFailed
}

// Clone returns a deep copy of the record. Readers get clones so an
// in-flight pipeline never races with an audit read.
func (r *FlowRecord) Clone() *FlowRecord {
	if r == nil {
		return nil
	}

	cp := *r

	cp.Requirements = make([]string, len(r.Requirements))
	copy(cp.Requirements, r.Requirements)

	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}

	cp.Stages = make([]*StageResult, 0, len(r.Stages))
	for _, sr := range r.Stages {
		src := *sr
		if sr.Result != nil {
			src.Result = cloneMap(sr.Result)
		}
		cp.Stages = append(cp.Stages, &src)
	}

	return &cp
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
