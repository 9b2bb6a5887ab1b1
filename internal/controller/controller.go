package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/flowd/internal/cache"
	"github.com/fyrsmithlabs/flowd/internal/consult"
	"github.com/fyrsmithlabs/flowd/internal/events"
	"github.com/fyrsmithlabs/flowd/internal/executor"
	"github.com/fyrsmithlabs/flowd/internal/flow"
	"github.com/fyrsmithlabs/flowd/internal/gate"
	"github.com/fyrsmithlabs/flowd/internal/incident"
	"github.com/fyrsmithlabs/flowd/internal/report"
	"github.com/fyrsmithlabs/flowd/internal/vcs"
)

const instrumentationName = "github.com/fyrsmithlabs/flowd/internal/controller"

// Config tunes the controller.
type Config struct {
	// StatusTTL is the lifetime of cached status entries (default: 1h).
	StatusTTL time.Duration

	// FailOnGate makes a failing quality verdict fatal to the flow.
	// Default false: the verdict is carried into the report's
	// certification level instead.
	FailOnGate bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		StatusTTL:  cache.DefaultTTL,
		FailOnGate: false,
	}
}

// SubmitRequest is the caller's submission.
type SubmitRequest struct {
	TaskType     string
	Requirements []string
	Priority     flow.Priority
}

// Deps wires the controller's collaborators. Store, Coordinator,
// Executors, Gate, Reports, and Automation are required; Cache,
// Incidents, Events, and Logger default to no-ops.
type Deps struct {
	Store       flow.Store
	Cache       cache.StatusCache
	Coordinator *consult.Coordinator
	Executors   *executor.Registry
	Gate        *gate.Evaluator
	Reports     *report.Generator
	Automation  vcs.Automation
	Incidents   incident.Reporter
	Events      *events.Publisher
	Logger      *zap.Logger
}

// Controller sequences flows through the five-stage pipeline.
type Controller struct {
	config Config
	deps   Deps
	logger *zap.Logger

	tracer trace.Tracer
	meter  metric.Meter

	activeFlows   metric.Int64UpDownCounter
	flowsFinished metric.Int64Counter
	stageDuration metric.Float64Histogram
	flowDuration  metric.Float64Histogram

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// New creates a controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Store == nil {
		return nil, errors.New("flow store is required")
	}
	if deps.Coordinator == nil {
		return nil, errors.New("consultation coordinator is required")
	}
	if deps.Executors == nil {
		return nil, errors.New("executor registry is required")
	}
	if deps.Gate == nil {
		return nil, errors.New("quality gate evaluator is required")
	}
	if deps.Reports == nil {
		return nil, errors.New("report generator is required")
	}
	if deps.Automation == nil {
		return nil, errors.New("vcs automation is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Incidents == nil {
		deps.Incidents = incident.NewLogReporter(deps.Logger)
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = cache.DefaultTTL
	}

	c := &Controller{
		config: cfg,
		deps:   deps,
		logger: deps.Logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	c.initMetrics()

	return c, nil
}

func (c *Controller) initMetrics() {
	var err error

	c.activeFlows, err = c.meter.Int64UpDownCounter(
		"flowd.controller.active_flows",
		metric.WithDescription("Number of flows currently executing"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		c.logger.Warn("failed to create active flows gauge", zap.Error(err))
	}

	c.flowsFinished, err = c.meter.Int64Counter(
		"flowd.controller.flows_finished_total",
		metric.WithDescription("Total flows reaching a terminal status"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		c.logger.Warn("failed to create flows finished counter", zap.Error(err))
	}

	c.stageDuration, err = c.meter.Float64Histogram(
		"flowd.controller.stage_duration",
		metric.WithDescription("Duration of individual stage executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		c.logger.Warn("failed to create stage duration histogram", zap.Error(err))
	}

	c.flowDuration, err = c.meter.Float64Histogram(
		"flowd.controller.flow_duration",
		metric.WithDescription("End-to-end flow duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		c.logger.Warn("failed to create flow duration histogram", zap.Error(err))
	}
}

// Submit creates a flow record, persists it, and launches the stage
// pipeline asynchronously. It returns the flow ID immediately; the
// pipeline's outcome is observable only via Get or Status.
func (c *Controller) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.TaskType == "" {
		return "", errors.New("task type is required")
	}
	if req.Priority == "" {
		req.Priority = flow.PriorityMedium
	}
	if !flow.ValidPriority(req.Priority) {
		return "", fmt.Errorf("invalid priority: %s", req.Priority)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", errors.New("controller is closed")
	}

	record := flow.NewFlowRecord(req.TaskType, req.Requirements, req.Priority)
	c.wg.Add(1)
	c.mu.Unlock()

	if err := c.deps.Store.Save(ctx, record); err != nil {
		c.wg.Done()
		return "", fmt.Errorf("persisting new flow: %w", err)
	}
	c.cacheStatus(ctx, record.FlowID, string(flow.FlowRunning))

	if c.activeFlows != nil {
		c.activeFlows.Add(ctx, 1, metric.WithAttributes(
			attribute.String("task_type", record.TaskType),
		))
	}

	c.logger.Info("flow submitted",
		zap.String("flow_id", record.FlowID),
		zap.String("task_type", record.TaskType),
		zap.String("priority", string(record.Priority)),
	)

	// The pipeline outlives the submission request, so it runs under
	// its own root context.
	go c.run(context.Background(), record)

	return record.FlowID, nil
}

// Get returns the durable record for a flow.
func (c *Controller) Get(ctx context.Context, flowID string) (*flow.FlowRecord, error) {
	return c.deps.Store.Get(ctx, flowID)
}

// Status returns the terse flow status, cache-first. Readers may see
// an eventually consistent status until the terminal write lands.
func (c *Controller) Status(ctx context.Context, flowID string) (string, error) {
	if c.deps.Cache != nil {
		if status, ok := c.deps.Cache.Get(ctx, flowID); ok {
			return status, nil
		}
	}

	record, err := c.deps.Store.Get(ctx, flowID)
	if err != nil {
		return "", err
	}
	return string(record.Status), nil
}

// Close waits for in-flight pipelines to finish. New submissions are
// rejected once closing starts.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flows still running at shutdown: %w", ctx.Err())
	}
}

// run executes the pipeline for one flow. It owns the record
// exclusively until the terminal persist.
func (c *Controller) run(ctx context.Context, record *flow.FlowRecord) {
	defer c.wg.Done()

	ctx, span := c.tracer.Start(ctx, "controller.pipeline")
	defer span.End()
	span.SetAttributes(
		attribute.String("flow_id", record.FlowID),
		attribute.String("task_type", record.TaskType),
	)

	start := time.Now()

	for i, stageResult := range record.Stages {
		err := c.runStage(ctx, record, stageResult)
		if err == nil {
			continue
		}

		record.SkipRemaining(i)
		for j := i + 1; j < len(record.Stages); j++ {
			c.publishStage(record.FlowID, record.Stages[j].Name, flow.StatusSkipped, "")
		}
		c.deps.Incidents.ReportFailure(ctx, record.FlowID, string(stageResult.Name), err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		break
	}

	record.Status = record.DeriveStatus()
	now := time.Now().UTC()
	record.CompletedAt = &now

	// Terminal state must be durable before any reader can observe it
	// through the cache.
	if err := c.deps.Store.Save(ctx, record); err != nil {
		c.logger.Error("terminal persist failed",
			zap.String("flow_id", record.FlowID),
			zap.Error(err),
		)
	}
	c.cacheStatus(ctx, record.FlowID, string(record.Status))

	if c.activeFlows != nil {
		c.activeFlows.Add(ctx, -1, metric.WithAttributes(
			attribute.String("task_type", record.TaskType),
		))
	}
	if c.flowsFinished != nil {
		c.flowsFinished.Add(ctx, 1, metric.WithAttributes(
			attribute.String("task_type", record.TaskType),
			attribute.String("status", string(record.Status)),
		))
	}
	if c.flowDuration != nil {
		c.flowDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("task_type", record.TaskType),
			attribute.String("status", string(record.Status)),
		))
	}

	c.logger.Info("flow finished",
		zap.String("flow_id", record.FlowID),
		zap.String("status", string(record.Status)),
		zap.Duration("duration", time.Since(start)),
	)
}

// runStage executes one stage handler and records the transition on
// the stage result.
func (c *Controller) runStage(ctx context.Context, record *flow.FlowRecord, sr *flow.StageResult) error {
	ctx, span := c.tracer.Start(ctx, "controller.stage."+string(sr.Name))
	defer span.End()

	sr.Status = flow.StatusRunning
	sr.StartedAt = time.Now().UTC()
	c.publishStage(record.FlowID, sr.Name, flow.StatusRunning, "")

	result, err := c.invokeStage(ctx, record, sr.Name)

	sr.CompletedAt = time.Now().UTC()
	duration := sr.CompletedAt.Sub(sr.StartedAt)

	status := flow.StatusCompleted
	if err != nil {
		status = flow.StatusFailed
		sr.Status = flow.StatusFailed
		sr.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("stage failed",
			zap.String("flow_id", record.FlowID),
			zap.String("stage", string(sr.Name)),
			zap.Error(err),
		)
	} else {
		sr.Status = flow.StatusCompleted
		sr.Result = result
	}

	c.publishStage(record.FlowID, sr.Name, status, sr.Error)

	if c.stageDuration != nil {
		c.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("stage", string(sr.Name)),
			attribute.String("status", string(status)),
		))
	}

	// Intermediate persist so status readers see stage progress; the
	// terminal persist in run is the durability guarantee.
	if saveErr := c.deps.Store.Save(ctx, record); saveErr != nil {
		c.logger.Warn("intermediate persist failed",
			zap.String("flow_id", record.FlowID),
			zap.Error(saveErr),
		)
	}

	return err
}

// invokeStage dispatches to the stage's handler.
func (c *Controller) invokeStage(ctx context.Context, record *flow.FlowRecord, stage flow.Stage) (map[string]interface{}, error) {
	switch stage {
	case flow.StageConsultation:
		return c.deps.Coordinator.Consult(ctx, consult.Request{
			TaskType:     record.TaskType,
			Requirements: record.Requirements,
			Priority:     record.Priority,
		})

	case flow.StageExecution:
		var consultation map[string]interface{}
		if sr := record.StageByName(flow.StageConsultation); sr != nil {
			consultation = sr.Result
		}
		kind, result, err := c.deps.Executors.Invoke(ctx, executor.Task{
			TaskType:     record.TaskType,
			Requirements: record.Requirements,
			Consultation: consultation,
		})
		if err != nil {
			return nil, err
		}
		out := map[string]interface{}{
			"executor":      string(kind),
			"files_created": result.FilesCreated,
			"quality":       result.Quality,
		}
		for k, v := range result.Extra {
			if _, taken := out[k]; !taken {
				out[k] = v
			}
		}
		return out, nil

	case flow.StageQualityGate:
		execStage := record.StageByName(flow.StageExecution)
		if execStage == nil || execStage.Result == nil {
			return nil, errors.New("execution result missing")
		}
		files, _ := execStage.Result["files_created"].([]string)
		quality, _ := execStage.Result["quality"].(executor.Quality)

		verdict, err := c.deps.Gate.Evaluate(ctx, files, quality.Score)
		if err != nil {
			return nil, err
		}
		if c.config.FailOnGate && !verdict.Passed {
			return nil, fmt.Errorf("quality gate failed with score %d", verdict.Score)
		}
		return map[string]interface{}{
			"gate_passed": verdict.Passed,
			"score":       verdict.Score,
			"verdict":     verdict,
		}, nil

	case flow.StageReport:
		return c.deps.Reports.Generate(ctx, record)

	case flow.StageAutomation:
		execStage := record.StageByName(flow.StageExecution)
		if execStage == nil || execStage.Result == nil {
			return nil, errors.New("execution result missing")
		}
		files, _ := execStage.Result["files_created"].([]string)

		branch := vcs.BranchName(record.TaskType, time.Now())
		info, err := c.deps.Automation.Commit(ctx, branch, files)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"git_operations_complete": true,
			"branch":                  info.Branch,
			"files_committed":         info.FilesCommitted,
			"commit_hash":             info.CommitHash,
		}, nil
	}

	return nil, fmt.Errorf("unknown stage: %s", stage)
}

func (c *Controller) cacheStatus(ctx context.Context, flowID, status string) {
	if c.deps.Cache == nil {
		return
	}
	if err := c.deps.Cache.Set(ctx, flowID, status, c.config.StatusTTL); err != nil {
		c.logger.Warn("status cache write failed",
			zap.String("flow_id", flowID),
			zap.Error(err),
		)
	}
}

func (c *Controller) publishStage(flowID string, stage flow.Stage, status flow.StageStatus, errMsg string) {
	if c.deps.Events != nil {
		c.deps.Events.StageTransition(flowID, stage, status, errMsg)
	}
}
