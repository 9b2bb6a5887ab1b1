package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testWorkspace(t *testing.T) Workspace {
	t.Helper()
	return Workspace{Dir: t.TempDir(), Logger: zap.NewNop()}
}

func TestDefaultExecutorsCoverAllKinds(t *testing.T) {
	executors := DefaultExecutors(testWorkspace(t))
	require.Len(t, executors, 4)

	kinds := make(map[Kind]bool)
	for _, e := range executors {
		kinds[e.ID()] = true
	}
	assert.True(t, kinds[KindCode])
	assert.True(t, kinds[KindResearch])
	assert.True(t, kinds[KindQuality])
	assert.True(t, kinds[KindCrisis])
}

func TestCodeExecutorWritesArtifact(t *testing.T) {
	ws := testWorkspace(t)
	exec := &CodeExecutor{ws: ws}

	result, err := exec.Execute(context.Background(), Task{
		TaskType:     "code_generation",
		Requirements: []string{"parse config"},
	})
	require.NoError(t, err)
	require.Len(t, result.FilesCreated, 1)

	path := result.FilesCreated[0]
	assert.Equal(t, filepath.Join(ws.Dir, "code-generation.go"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "parse config")
	assert.True(t, result.Quality.Passed)
	assert.Equal(t, 92, result.Quality.Score)
}

func TestCrisisExecutorWritesRemediation(t *testing.T) {
	ws := testWorkspace(t)
	exec := &CrisisExecutor{ws: ws}

	result, err := exec.Execute(context.Background(), Task{
		TaskType:     "incident_response",
		Requirements: []string{"rollback bad deploy"},
	})
	require.NoError(t, err)
	require.Len(t, result.FilesCreated, 1)

	content, err := os.ReadFile(result.FilesCreated[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "rollback bad deploy")
}

func TestWorkspaceRequiresDir(t *testing.T) {
	exec := &CodeExecutor{ws: Workspace{Logger: zap.NewNop()}}

	_, err := exec.Execute(context.Background(), Task{TaskType: "code_generation"})
	assert.Error(t, err)
}

func TestWorkspaceHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &CodeExecutor{ws: testWorkspace(t)}
	_, err := exec.Execute(ctx, Task{TaskType: "code_generation"})
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"code_generation", "code-generation"},
		{"Emergency Fix!", "emergency-fix"},
		{"___", "task"},
		{"", "task"},
		{"A B  C", "a-b--c"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in))
	}
}
