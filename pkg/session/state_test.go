package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspection/pkg/taskflow"
)

func TestMemoryStoreGetAbsentReturnsZeroState(t *testing.T) {
	store := NewMemoryStore()
	st, err := store.Get(context.Background(), "+6591234567")
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

func TestMergeRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	err := store.Merge(ctx, "s1", Patch{
		FieldInspectorID:     "insp-1",
		FieldInspectorName:   "Ken Tan",
		FieldWorkOrderID:     "wo-1",
		FieldJobStatus:       JobStatusConfirming,
		FieldTaskFlowStage:   taskflow.StageCondition,
		FieldCurrentTaskID:   "task-9",
		FieldLastMenu:        MenuConfirm,
		FieldLastMenuAt:      now,
		FieldCurrentTaskCondition: taskflow.ConditionFair,
	})
	require.NoError(t, err)

	st, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "insp-1", st.InspectorID)
	assert.Equal(t, JobStatusConfirming, st.JobStatus)
	assert.Equal(t, taskflow.StageCondition, st.TaskFlowStage)
	assert.Equal(t, taskflow.ConditionFair, st.CurrentTaskCondition)
	assert.Equal(t, MenuConfirm, st.LastMenu)
	assert.True(t, st.LastMenuAt.Equal(now))
}

func TestMergeNilClearsField(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, "s1", Patch{
		FieldWorkOrderID: "wo-1",
		FieldJobStatus:   JobStatusStarted,
	}))
	require.NoError(t, store.Merge(ctx, "s1", Patch{
		FieldWorkOrderID: nil,
	}))

	st, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, st.WorkOrderID)
	// Untouched field survives the partial merge.
	assert.Equal(t, JobStatusStarted, st.JobStatus)
}

func TestClearTaskFlowPatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, "s1", Patch{
		FieldInspectorID:   "insp-1",
		FieldCurrentTaskID: "task-1",
		FieldTaskFlowStage: taskflow.StageMedia,
		FieldPendingTaskCause: "leaking pipe",
	}))
	require.NoError(t, store.Merge(ctx, "s1", ClearTaskFlow()))

	st, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, st.CurrentTaskID)
	assert.Equal(t, taskflow.StageNone, st.TaskFlowStage)
	assert.Empty(t, st.PendingTaskCause)
	// Identity is not part of the task-flow group.
	assert.Equal(t, "insp-1", st.InspectorID)
}

func TestClearJobContextKeepsIdentity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, "s1", Patch{
		FieldInspectorID:     "insp-1",
		FieldInspectorPhone:  "+6591234567",
		FieldWorkOrderID:     "wo-1",
		FieldJobStatus:       JobStatusStarted,
		FieldCurrentLocation: "Kitchen",
		FieldCurrentTaskID:   "task-1",
		FieldTaskFlowStage:   taskflow.StageRemarks,
	}))
	require.NoError(t, store.Merge(ctx, "s1", ClearJobContext()))

	st, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "insp-1", st.InspectorID)
	assert.Equal(t, "+6591234567", st.InspectorPhone)
	assert.Empty(t, st.WorkOrderID)
	assert.Equal(t, JobStatusNone, st.JobStatus)
	assert.Empty(t, st.CurrentLocation)
	assert.Empty(t, st.CurrentTaskID)
	assert.Equal(t, taskflow.StageNone, st.TaskFlowStage)
}

func TestSubLocationCacheRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cache := map[string][]SubLocationRef{
		"item-1": {
			{ID: "sub-1", Name: "Master Bedroom", Status: "pending", TotalTasks: 3, CompletedTasks: 1},
			{ID: "sub-2", Name: "Bedroom 2", Status: "completed", TotalTasks: 2, CompletedTasks: 2},
		},
	}
	require.NoError(t, store.Merge(ctx, "s1", Patch{FieldLocationSubLocations: cache}))

	st, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, st.LocationSubLocations["item-1"], 2)
	assert.Equal(t, "Master Bedroom", st.LocationSubLocations["item-1"][0].Name)
	assert.Equal(t, 2, st.LocationSubLocations["item-1"][1].CompletedTasks)
}

func TestLastMergeWinsPerField(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, "s1", Patch{FieldCustomerName: "First"}))
	require.NoError(t, store.Merge(ctx, "s1", Patch{FieldCustomerName: "Second"}))

	st, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Second", st.CustomerName)
}

func TestDecodeStateSkipsCorruptFields(t *testing.T) {
	st := DecodeState(map[string]string{
		string(FieldInspectorID):   "insp-1",
		string(FieldTaskFlowStage): "bogus-stage",
	})
	assert.Equal(t, "insp-1", st.InspectorID)
	assert.Equal(t, taskflow.StageNone, st.TaskFlowStage)
}
