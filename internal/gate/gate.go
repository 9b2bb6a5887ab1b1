// Package gate implements the quality gate: a deterministic scoring of
// executor output against the compliance ruleset before a task is
// considered acceptable.
package gate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/flowd/internal/flow"
)

// Ruleset names used in the verdict's detailed checks.
const (
	RulesetMarkers         = "forbidden_markers"
	RulesetExecutorQuality = "executor_quality"
)

// Config tunes the evaluator.
type Config struct {
	// Threshold is the minimum passing score (default: 70).
	Threshold int

	// MarkerPenalty is deducted per forbidden-marker occurrence
	// (default: 10).
	MarkerPenalty int

	// Markers are the forbidden unfinished-work markers scanned for in
	// artifact contents.
	Markers []string

	// MarkerWeight and ExecutorWeight blend the two score signals.
	// They must sum to 100 (defaults: 70/30).
	MarkerWeight   int
	ExecutorWeight int
}

// DefaultConfig returns the stock compliance ruleset.
func DefaultConfig() Config {
	return Config{
		Threshold:      70,
		MarkerPenalty:  10,
		Markers:        []string{"TODO", "FIXME", "XXX", "HACK"},
		MarkerWeight:   70,
		ExecutorWeight: 30,
	}
}

// Evaluator scores produced artifacts. Evaluation is idempotent:
// identical input always yields an identical verdict.
type Evaluator struct {
	config Config
	logger *zap.Logger

	// readFile is swapped in tests.
	readFile func(string) ([]byte, error)
}

// NewEvaluator creates an evaluator with the given config. Zero-value
// config fields fall back to defaults.
func NewEvaluator(cfg Config, logger *zap.Logger) *Evaluator {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MarkerPenalty <= 0 {
		cfg.MarkerPenalty = def.MarkerPenalty
	}
	if len(cfg.Markers) == 0 {
		cfg.Markers = def.Markers
	}
	if cfg.MarkerWeight <= 0 || cfg.ExecutorWeight < 0 || cfg.MarkerWeight+cfg.ExecutorWeight != 100 {
		cfg.MarkerWeight = def.MarkerWeight
		cfg.ExecutorWeight = def.ExecutorWeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		config:   cfg,
		logger:   logger,
		readFile: os.ReadFile,
	}
}

// Evaluate scores the produced files blended with the executor's
// self-reported score.
//
// Scoring: each forbidden-marker occurrence deducts MarkerPenalty from
// a 100-point base (floored at 0); the final score is the weighted
// blend of the marker score and the executor score. An artifact that
// cannot be read at all is a critical violation, which fails the
// verdict regardless of score.
func (e *Evaluator) Evaluate(ctx context.Context, files []string, executorScore int) (*flow.QualityVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	markerScore := 100
	var violations []string
	var markerIssues []string
	critical := false

	for _, path := range files {
		content, err := e.readFile(path)
		if err != nil {
			critical = true
			violations = append(violations, "unreadable_artifact")
			markerIssues = append(markerIssues, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		text := string(content)
		for _, marker := range e.config.Markers {
			count := strings.Count(text, marker)
			if count == 0 {
				continue
			}
			markerScore -= count * e.config.MarkerPenalty
			violations = append(violations, strings.ToLower(marker)+"_marker")
			markerIssues = append(markerIssues, fmt.Sprintf("%s: %d occurrence(s) of %q", path, count, marker))
		}
	}
	if markerScore < 0 {
		markerScore = 0
	}

	if executorScore < 0 {
		executorScore = 0
	}
	if executorScore > 100 {
		executorScore = 100
	}

	var executorIssues []string
	if executorScore < e.config.Threshold {
		violations = append(violations, "executor_quality_below_threshold")
		executorIssues = append(executorIssues, fmt.Sprintf("executor reported score %d below threshold %d", executorScore, e.config.Threshold))
	}

	score := (markerScore*e.config.MarkerWeight + executorScore*e.config.ExecutorWeight) / 100

	verdict := &flow.QualityVerdict{
		Passed:     score >= e.config.Threshold && !critical,
		Score:      score,
		Violations: violations,
		DetailedChecks: map[string]flow.CheckDetail{
			RulesetMarkers:         {Issues: markerIssues, Subscore: markerScore},
			RulesetExecutorQuality: {Issues: executorIssues, Subscore: executorScore},
		},
	}
	if verdict.Violations == nil {
		verdict.Violations = []string{}
	}

	e.logger.Debug("quality gate evaluated",
		zap.Int("score", verdict.Score),
		zap.Bool("passed", verdict.Passed),
		zap.Int("files", len(files)),
		zap.Int("violations", len(verdict.Violations)),
	)

	return verdict, nil
}

// Threshold exposes the configured passing threshold, used by the
// report stage to derive certification levels.
func (e *Evaluator) Threshold() int { return e.config.Threshold }
