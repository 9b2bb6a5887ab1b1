package consult

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/flowd/internal/flow"
)

// Built-in advisory services. Each advisor inspects the task type and
// requirements with deterministic keyword heuristics; external advisory
// services plug in through the Advisor interface instead.

// DefaultAdvisors returns the fixed four-advisor set consulted for
// every flow.
func DefaultAdvisors() []Advisor {
	return []Advisor{
		&ArchitectureAdvisor{},
		&SecurityAdvisor{},
		&PerformanceAdvisor{},
		&EstimationAdvisor{},
	}
}

// ArchitectureAdvisor recommends structural practices for the task.
type ArchitectureAdvisor struct{}

func (a *ArchitectureAdvisor) ID() string { return "architecture" }

func (a *ArchitectureAdvisor) Consult(ctx context.Context, req Request) (*Advice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recs := []string{"define component boundaries before implementation"}
	if containsAny(req.TaskType, "feature_implementation", "code_generation") {
		recs = append(recs, "add an interface seam for each external collaborator")
	}
	if containsAny(req.TaskType, "incident_response", "emergency_fix") {
		recs = append(recs, "limit the change surface to the failing component")
	}

	return &Advice{
		Recommendations: recs,
		EstimateHours:   2 + float64(len(req.Requirements)),
	}, nil
}

// SecurityAdvisor flags security-sensitive requirements.
type SecurityAdvisor struct{}

func (a *SecurityAdvisor) ID() string { return "security" }

func (a *SecurityAdvisor) Consult(ctx context.Context, req Request) (*Advice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recs := []string{"run the secret scanner before committing artifacts"}
	for _, r := range req.Requirements {
		if containsAny(r, "auth", "oauth", "token", "credential", "password") {
			recs = append(recs, "threat-model the authentication path")
			break
		}
	}

	estimate := 1.5
	if req.Priority == flow.PriorityCritical {
		estimate = 3
	}
	return &Advice{Recommendations: recs, EstimateHours: estimate}, nil
}

// PerformanceAdvisor recommends measurement work where it matters.
type PerformanceAdvisor struct{}

func (a *PerformanceAdvisor) ID() string { return "performance" }

func (a *PerformanceAdvisor) Consult(ctx context.Context, req Request) (*Advice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recs := []string{"capture a baseline benchmark before changing hot paths"}
	if containsAny(req.TaskType, "optimization", "quality_check") {
		recs = append(recs, "profile before optimizing; verify the bottleneck")
	}

	return &Advice{Recommendations: recs, EstimateHours: 1}, nil
}

// EstimationAdvisor sizes the work from requirement count and priority.
type EstimationAdvisor struct{}

func (a *EstimationAdvisor) ID() string { return "estimation" }

func (a *EstimationAdvisor) Consult(ctx context.Context, req Request) (*Advice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	estimate := 1 + 2*float64(len(req.Requirements))
	switch req.Priority {
	case flow.PriorityHigh:
		estimate *= 1.25
	case flow.PriorityCritical:
		estimate *= 1.5
	}

	return &Advice{
		Recommendations: []string{"split requirements into independently verifiable steps"},
		EstimateHours:   estimate,
	}, nil
}

func containsAny(s string, keywords ...string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
