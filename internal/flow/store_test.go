package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := NewFlowRecord("code_generation", []string{"req"}, PriorityMedium)
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, record.FlowID)
	require.NoError(t, err)
	assert.Equal(t, record.FlowID, got.FlowID)
	assert.Equal(t, record.TaskType, got.TaskType)
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "FLOW-0-0000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	store := NewMemoryStore()

	assert.Error(t, store.Save(context.Background(), nil))
	assert.Error(t, store.Save(context.Background(), &FlowRecord{}))
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := NewFlowRecord("task", nil, PriorityMedium)
	require.NoError(t, store.Save(ctx, record))

	// Mutations after Save must not affect the stored copy.
	record.Stages[0].Status = StatusFailed

	got, err := store.Get(ctx, record.FlowID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Stages[0].Status)

	// Mutations to a read copy must not affect later reads.
	got.Status = FlowFailed
	again, err := store.Get(ctx, record.FlowID)
	require.NoError(t, err)
	assert.Equal(t, FlowRunning, again.Status)
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, NewFlowRecord("task", nil, PriorityMedium)))
	}

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
