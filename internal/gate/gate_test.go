package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestEvaluator returns an evaluator reading from an in-memory file
// map instead of the filesystem.
func newTestEvaluator(t *testing.T, files map[string]string) *Evaluator {
	t.Helper()

	e := NewEvaluator(DefaultConfig(), zap.NewNop())
	e.readFile = func(path string) ([]byte, error) {
		content, ok := files[path]
		if !ok {
			return nil, errors.New("no such file")
		}
		return []byte(content), nil
	}
	return e
}

func TestEvaluateCleanArtifacts(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"a.go": "package a\n",
	})

	verdict, err := e.Evaluate(context.Background(), []string{"a.go"}, 92)
	require.NoError(t, err)

	assert.True(t, verdict.Passed)
	assert.Empty(t, verdict.Violations)
	assert.NotNil(t, verdict.Violations, "violations must be an empty slice, not nil")
	// markers 100 * 0.7 + executor 92 * 0.3
	assert.Equal(t, 97, verdict.Score)
}

func TestEvaluateMarkerPenalties(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"a.go": "package a\n// TODO: finish\n// TODO: also this\n// FIXME: broken\n",
	})

	verdict, err := e.Evaluate(context.Background(), []string{"a.go"}, 92)
	require.NoError(t, err)

	// Three occurrences deduct 30 from the marker subscore.
	assert.Equal(t, 70, verdict.DetailedChecks[RulesetMarkers].Subscore)
	assert.Contains(t, verdict.Violations, "todo_marker")
	assert.Contains(t, verdict.Violations, "fixme_marker")
	// 70 * 0.7 + 92 * 0.3 = 76
	assert.Equal(t, 76, verdict.Score)
	assert.True(t, verdict.Passed)
}

func TestEvaluateMarkerScoreFloorsAtZero(t *testing.T) {
	content := ""
	for i := 0; i < 15; i++ {
		content += "// TODO\n"
	}
	e := newTestEvaluator(t, map[string]string{"a.go": content})

	verdict, err := e.Evaluate(context.Background(), []string{"a.go"}, 92)
	require.NoError(t, err)

	assert.Equal(t, 0, verdict.DetailedChecks[RulesetMarkers].Subscore)
	// 0 * 0.7 + 92 * 0.3 = 27
	assert.Equal(t, 27, verdict.Score)
	assert.False(t, verdict.Passed)
}

func TestEvaluateUnreadableArtifactIsCritical(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{})

	verdict, err := e.Evaluate(context.Background(), []string{"missing.go"}, 100)
	require.NoError(t, err)

	assert.False(t, verdict.Passed, "a critical violation fails the verdict regardless of score")
	assert.Contains(t, verdict.Violations, "unreadable_artifact")
}

func TestEvaluateLowExecutorScore(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{"a.go": "package a\n"})

	verdict, err := e.Evaluate(context.Background(), []string{"a.go"}, 40)
	require.NoError(t, err)

	assert.Contains(t, verdict.Violations, "executor_quality_below_threshold")
	// 100 * 0.7 + 40 * 0.3 = 82; passing despite the executor's own score
	assert.Equal(t, 82, verdict.Score)
	assert.True(t, verdict.Passed)
}

func TestEvaluateClampsExecutorScore(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{"a.go": "package a\n"})

	high, err := e.Evaluate(context.Background(), []string{"a.go"}, 250)
	require.NoError(t, err)
	assert.Equal(t, 100, high.DetailedChecks[RulesetExecutorQuality].Subscore)

	low, err := e.Evaluate(context.Background(), []string{"a.go"}, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, low.DetailedChecks[RulesetExecutorQuality].Subscore)
}

func TestEvaluateNoFiles(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{})

	verdict, err := e.Evaluate(context.Background(), nil, 92)
	require.NoError(t, err)
	assert.True(t, verdict.Passed)
	assert.Empty(t, verdict.Violations)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"a.go": "package a\n// TODO: later\n",
		"b.md": "# notes\nHACK around the parser\n",
	})
	files := []string{"a.go", "b.md"}

	first, err := e.Evaluate(context.Background(), files, 85)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := e.Evaluate(context.Background(), files, 85)
		require.NoError(t, err)
		assert.Equal(t, first, again, "identical input must yield an identical verdict")
	}
}

func TestEvaluateCancelledContext(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{"a.go": "package a\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Evaluate(ctx, []string{"a.go"}, 92)
	assert.Error(t, err)
}

func TestNewEvaluatorFillsDefaults(t *testing.T) {
	e := NewEvaluator(Config{}, nil)
	assert.Equal(t, 70, e.Threshold())

	// Inconsistent weights fall back to the stock blend.
	e = NewEvaluator(Config{MarkerWeight: 90, ExecutorWeight: 90}, zap.NewNop())
	assert.Equal(t, 70, e.config.MarkerWeight)
	assert.Equal(t, 30, e.config.ExecutorWeight)
}
