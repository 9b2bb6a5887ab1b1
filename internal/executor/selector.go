package executor

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies one of the four specialized executors.
type Kind string

const (
	KindCode     Kind = "code"
	KindResearch Kind = "research"
	KindQuality  Kind = "quality"
	KindCrisis   Kind = "crisis"
)

// Task is the input handed to the selected executor.
type Task struct {
	TaskType     string
	Requirements []string

	// Consultation is the aggregated consultation stage result.
	Consultation map[string]interface{}
}

// Quality is the executor's self-reported quality signal, blended into
// the quality gate's verdict downstream.
type Quality struct {
	Score  int  `json:"score"`
	Passed bool `json:"passed"`
}

// Result is what an executor returns on success.
type Result struct {
	FilesCreated []string               `json:"files_created"`
	Quality      Quality                `json:"quality"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

// Executor is one specialized worker. Exactly one executor is invoked
// per flow; any returned error fails the execution stage.
type Executor interface {
	ID() Kind
	Execute(ctx context.Context, task Task) (*Result, error)
}

// selectionRule maps task_type keywords to an executor kind. Rules are
// evaluated top-to-bottom; the first keyword match wins.
type selectionRule struct {
	keywords []string
	kind     Kind
}

// selectionTable is the fixed routing table. Order is significant.
var selectionTable = []selectionRule{
	{keywords: []string{"code_generation", "feature_implementation"}, kind: KindCode},
	{keywords: []string{"research", "documentation"}, kind: KindResearch},
	{keywords: []string{"quality_check", "optimization"}, kind: KindQuality},
	{keywords: []string{"incident_response", "emergency_fix"}, kind: KindCrisis},
}

// Select resolves a task type to an executor kind. Matching is a
// case-insensitive substring check; unrecognized task types default to
// the code executor.
func Select(taskType string) Kind {
	lower := strings.ToLower(taskType)
	for _, rule := range selectionTable {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.kind
			}
		}
	}
	return KindCode
}

// Registry holds the fixed executor set and invokes the selected one.
type Registry struct {
	executors map[Kind]Executor
}

// NewRegistry builds a registry from the given executors.
func NewRegistry(executors ...Executor) (*Registry, error) {
	m := make(map[Kind]Executor, len(executors))
	for _, e := range executors {
		if _, dup := m[e.ID()]; dup {
			return nil, fmt.Errorf("duplicate executor: %s", e.ID())
		}
		m[e.ID()] = e
	}
	if _, ok := m[KindCode]; !ok {
		return nil, fmt.Errorf("code executor is required (it is the default route)")
	}
	return &Registry{executors: m}, nil
}

// Invoke selects the executor for the task type and runs it.
func (r *Registry) Invoke(ctx context.Context, task Task) (Kind, *Result, error) {
	kind := Select(task.TaskType)
	exec, ok := r.executors[kind]
	if !ok {
		return kind, nil, fmt.Errorf("no executor registered for kind %s", kind)
	}

	result, err := exec.Execute(ctx, task)
	if err != nil {
		return kind, nil, fmt.Errorf("executor %s: %w", kind, err)
	}
	return kind, result, nil
}
