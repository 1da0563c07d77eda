package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = `
inspectors:
  - id: insp-1
    name: Ken Tan
    phone: "+6591234567"
work_orders:
  - id: wo-1
    customer: Mr Lim
    address: 123 Orchard Road 238858
    scheduled_date: today
    scheduled_start: "09:00"
    priority: high
    inspection_type: handover
    inspector: insp-1
    locations:
      - id: item-kitchen
        name: Kitchen
        tasks:
          - id: task-sink
            action: Check sink and drainage
          - id: task-hob
            action: Check hob and hood
      - id: item-bedrooms
        name: Bedrooms
        sub_locations:
          - id: sub-master
            name: Master Bedroom
            tasks:
              - id: task-aircon
                action: Check air-con unit
          - id: sub-b2
            name: Bedroom 2
            tasks:
              - id: task-window
                action: Check window seals
  - id: wo-2
    customer: Ms Ng
    address: 9 Marina View 018960
    scheduled_date: "2020-01-01"
    inspector: insp-1
`

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(testSeed), 0o644))
	require.NoError(t, store.LoadSeed(context.Background(), seedPath))
	return store
}

func TestTodayJobsExcludesPastDates(t *testing.T) {
	store := newTestStore(t)
	jobs, err := store.TodayJobsForInspector(context.Background(), "insp-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "wo-1", jobs[0].ID)
	assert.Equal(t, "Mr Lim", jobs[0].CustomerName)
}

func TestWorkOrderByIDNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.WorkOrderByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateWorkOrderDetails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.UpdateWorkOrderDetails(ctx, "wo-1", UpdateCustomer, "Mrs Lim")
	require.NoError(t, err)
	assert.True(t, ok)

	wo, err := store.WorkOrderByID(ctx, "wo-1")
	require.NoError(t, err)
	assert.Equal(t, "Mrs Lim", wo.CustomerName)

	ok, err = store.UpdateWorkOrderDetails(ctx, "missing", UpdateAddress, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.UpdateWorkOrderDetails(ctx, "wo-1", UpdateField("colour"), "red")
	assert.Error(t, err)
}

func TestLocationsWithStatus(t *testing.T) {
	store := newTestStore(t)
	locs, err := store.LocationsWithStatus(context.Background(), "wo-1")
	require.NoError(t, err)
	require.Len(t, locs, 2)

	assert.Equal(t, "Kitchen", locs[0].Name)
	assert.Equal(t, 2, locs[0].TotalTasks)
	assert.False(t, locs[0].IsCompleted)
	assert.Empty(t, locs[0].SubLocations)

	assert.Equal(t, "Bedrooms", locs[1].Name)
	require.Len(t, locs[1].SubLocations, 2)
	assert.Equal(t, "Master Bedroom", locs[1].SubLocations[0].Name)
}

func TestTasksByLocationResolvesNameAndSubLocation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tasks, err := store.TasksByLocation(ctx, "wo-1", "kitchen", "", "")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Check sink and drainage", tasks[0].Action)

	tasks, err = store.TasksByLocation(ctx, "wo-1", "Bedrooms", "item-bedrooms", "sub-master")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "task-aircon", tasks[0].ID)
	assert.Equal(t, "Master Bedroom", tasks[0].LocationName)
}

func TestAggregateCascade(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Completing one of two tasks leaves the location incomplete.
	require.NoError(t, store.UpdateTaskStatus(ctx, "task-sink", StatusCompleted))
	require.NoError(t, store.RecomputeAggregates(ctx, "item-kitchen", ""))

	locs, err := store.LocationsWithStatus(ctx, "wo-1")
	require.NoError(t, err)
	assert.False(t, locs[0].IsCompleted)

	// Completing the last task flips the location to complete.
	require.NoError(t, store.UpdateTaskStatus(ctx, "task-hob", StatusCompleted))
	require.NoError(t, store.RecomputeAggregates(ctx, "item-kitchen", ""))

	locs, err = store.LocationsWithStatus(ctx, "wo-1")
	require.NoError(t, err)
	assert.True(t, locs[0].IsCompleted)

	// Reverting a task flips it back to incomplete.
	require.NoError(t, store.UpdateTaskStatus(ctx, "task-hob", StatusPending))
	require.NoError(t, store.RecomputeAggregates(ctx, "item-kitchen", ""))

	locs, err = store.LocationsWithStatus(ctx, "wo-1")
	require.NoError(t, err)
	assert.False(t, locs[0].IsCompleted)
}

func TestSubLocationCascade(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpdateTaskStatus(ctx, "task-aircon", StatusCompleted))
	require.NoError(t, store.RecomputeAggregates(ctx, "item-bedrooms", "sub-master"))

	subs, err := store.ChecklistLocationsForItem(ctx, "item-bedrooms")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, StatusCompleted, subs[0].Status)
	// Sibling sub-location still pending, so the item stays pending.
	count, err := store.IncompleteTaskCount(ctx, "item-bedrooms", "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIncompleteTaskCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.IncompleteTaskCount(ctx, "item-kitchen", "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.IncompleteTaskCount(ctx, "", "sub-master")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInspectorLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Phone matches with or without the leading '+'.
	insp, err := store.InspectorByPhone(ctx, "+6591234567")
	require.NoError(t, err)
	assert.Equal(t, "insp-1", insp.ID)

	insp, err = store.InspectorByPhone(ctx, "6591234567")
	require.NoError(t, err)
	assert.Equal(t, "insp-1", insp.ID)

	_, err = store.InspectorByPhone(ctx, "+6500000000")
	assert.ErrorIs(t, err, ErrNotFound)

	// Name matching is case-insensitive and exact.
	insp, err = store.InspectorByName(ctx, "ken tan")
	require.NoError(t, err)
	assert.Equal(t, "insp-1", insp.ID)

	_, err = store.InspectorByName(ctx, "Ken")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntryLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EntryForTask(ctx, "task-sink", "insp-1")
	assert.ErrorIs(t, err, ErrNotFound)

	entryID, err := store.CreateEntry(ctx, Entry{TaskID: "task-sink", InspectorID: "insp-1", Condition: "FAIR"})
	require.NoError(t, err)
	require.NotEmpty(t, entryID)

	cause := "corroded trap"
	require.NoError(t, store.UpdateEntry(ctx, entryID, EntryUpdate{Cause: &cause}))
	require.NoError(t, store.AddEntryMedia(ctx, entryID, "https://cdn/x.jpg", "under sink", MediaPhoto))
	require.NoError(t, store.AddEntryMedia(ctx, entryID, "https://cdn/x.mp4", "", MediaVideo))

	entry, err := store.EntryForTask(ctx, "task-sink", "insp-1")
	require.NoError(t, err)
	assert.Equal(t, "corroded trap", entry.Cause)
	require.Len(t, entry.Photos, 1)
	require.Len(t, entry.Videos, 1)

	count, err := store.EntryPhotoCount(ctx, entryID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOrphanEntryLinking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entryID, err := store.CreateEntry(ctx, Entry{InspectorID: "insp-1"})
	require.NoError(t, err)
	require.NoError(t, store.LinkEntryToTask(ctx, entryID, "task-hob"))

	entry, err := store.EntryForTask(ctx, "task-hob", "insp-1")
	require.NoError(t, err)
	assert.Equal(t, entryID, entry.ID)
}

func TestTaskMediaAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entryID, err := store.CreateEntry(ctx, Entry{TaskID: "task-sink", InspectorID: "insp-1", Remarks: "minor rust"})
	require.NoError(t, err)
	require.NoError(t, store.AddEntryMedia(ctx, entryID, "https://cdn/a.jpg", "", MediaPhoto))
	require.NoError(t, store.AddEntryMedia(ctx, entryID, "https://cdn/b.jpg", "", MediaPhoto))

	info, err := store.TaskMedia(ctx, "task-sink")
	require.NoError(t, err)
	assert.Equal(t, "Check sink and drainage", info.Name)
	assert.Equal(t, "minor rust", info.Remarks)
	assert.Equal(t, 2, info.PhotoCount)

	ok, err := store.DeleteTaskMedia(ctx, "task-sink", "https://cdn/a.jpg", MediaPhoto)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteTaskMedia(ctx, "task-sink", "https://cdn/nope.jpg", MediaPhoto)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompleteAllTasksForLocation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.CompleteAllTasksForLocation(ctx, "wo-1", "Kitchen", "insp-1")
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := store.IncompleteTaskCount(ctx, "item-kitchen", "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	locs, err := store.LocationsWithStatus(ctx, "wo-1")
	require.NoError(t, err)
	assert.True(t, locs[0].IsCompleted)
}

func TestWorkOrderProgress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpdateTaskStatus(ctx, "task-sink", StatusCompleted))

	p, err := store.WorkOrderProgress(ctx, "wo-1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.TotalTasks)
	assert.Equal(t, 1, p.CompletedTasks)
	assert.Equal(t, 3, p.PendingTasks)
}
