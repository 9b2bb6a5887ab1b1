package consult

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/flowd/internal/flow"
)

const instrumentationName = "github.com/fyrsmithlabs/flowd/internal/consult"

// Request carries the task context to each advisor.
type Request struct {
	TaskType     string
	Requirements []string
	Priority     flow.Priority
}

// Advice is a single advisor's response.
type Advice struct {
	Recommendations []string
	EstimateHours   float64
}

// Advisor is one advisory service. Implementations must honor ctx
// cancellation; the coordinator bounds every call with its own timeout.
type Advisor interface {
	ID() string
	Consult(ctx context.Context, req Request) (*Advice, error)
}

// Coordinator fans a request out to all configured advisors in
// parallel and joins their outcomes. A slow or erroring advisor yields
// an error outcome without affecting the others.
type Coordinator struct {
	advisors []Advisor
	timeout  time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewCoordinator creates a coordinator over a fixed advisor set.
func NewCoordinator(advisors []Advisor, timeout time.Duration, logger *zap.Logger) (*Coordinator, error) {
	if len(advisors) == 0 {
		return nil, errors.New("at least one advisor is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		advisors: advisors,
		timeout:  timeout,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
	}, nil
}

// Consult runs the fan-out and returns the aggregated stage result.
//
// The aggregate contains:
//   - consultation_complete: always true on return
//   - sages_consulted: advisor ID -> ConsultationOutcome
//   - recommendations: deduplicated union of successful recommendations,
//     in stable (sorted) order
//   - estimated_hours: MAX over successful estimates; the pipeline is
//     gated on its slowest workstream, so max is the conservative bound
//
// An error is returned only when every advisor fails, which marks the
// consultation stage itself as failed.
func (c *Coordinator) Consult(ctx context.Context, req Request) (map[string]interface{}, error) {
	ctx, span := c.tracer.Start(ctx, "consult.fanout")
	defer span.End()
	span.SetAttributes(
		attribute.String("task_type", req.TaskType),
		attribute.Int("advisor_count", len(c.advisors)),
	)

	outcomes := make([]*flow.ConsultationOutcome, len(c.advisors))

	done := make(chan int, len(c.advisors))
	for i, advisor := range c.advisors {
		go func(i int, advisor Advisor) {
			outcomes[i] = c.consultOne(ctx, advisor, req)
			done <- i
		}(i, advisor)
	}
	for range c.advisors {
		<-done
	}

	byAdvisor := make(map[string]interface{}, len(outcomes))
	recSet := make(map[string]struct{})
	var estimate float64
	succeeded := 0

	for _, outcome := range outcomes {
		byAdvisor[outcome.AdvisorID] = outcome
		if outcome.Status != flow.ConsultSuccess {
			continue
		}
		succeeded++
		for _, rec := range outcome.Recommendations {
			recSet[rec] = struct{}{}
		}
		if outcome.EstimateHours != nil && *outcome.EstimateHours > estimate {
			estimate = *outcome.EstimateHours
		}
	}

	if succeeded == 0 {
		span.SetAttributes(attribute.Int("advisors_succeeded", 0))
		return nil, errors.New("all advisors unavailable")
	}

	recommendations := make([]string, 0, len(recSet))
	for rec := range recSet {
		recommendations = append(recommendations, rec)
	}
	sort.Strings(recommendations)

	c.logger.Info("consultation complete",
		zap.String("task_type", req.TaskType),
		zap.Int("advisors", len(c.advisors)),
		zap.Int("succeeded", succeeded),
		zap.Float64("estimated_hours", estimate),
	)
	span.SetAttributes(attribute.Int("advisors_succeeded", succeeded))

	return map[string]interface{}{
		"consultation_complete": true,
		"sages_consulted":       byAdvisor,
		"recommendations":       recommendations,
		"estimated_hours":       estimate,
	}, nil
}

// consultOne calls a single advisor under its own timeout and converts
// the result into an outcome. Panics in an advisor are treated as
// advisor errors so one bad advisor cannot take the fan-out down.
func (c *Coordinator) consultOne(ctx context.Context, advisor Advisor, req Request) (outcome *flow.ConsultationOutcome) {
	outcome = &flow.ConsultationOutcome{
		AdvisorID: advisor.ID(),
		Status:    flow.ConsultError,
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("advisor panicked",
				zap.String("advisor", advisor.ID()),
				zap.Any("panic", r),
			)
			outcome.Status = flow.ConsultError
			outcome.Error = "advisor panicked"
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	advice, err := advisor.Consult(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome.Status = flow.ConsultTimeout
		}
		outcome.Error = err.Error()
		c.logger.Warn("advisor failed",
			zap.String("advisor", advisor.ID()),
			zap.String("status", string(outcome.Status)),
			zap.Error(err),
		)
		return outcome
	}

	estimate := advice.EstimateHours
	outcome.Status = flow.ConsultSuccess
	outcome.Recommendations = advice.Recommendations
	outcome.EstimateHours = &estimate
	outcome.Error = ""
	return outcome
}
