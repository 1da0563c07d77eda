package fastpath

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspection/pkg/domain"
	"inspection/pkg/session"
	"inspection/pkg/taskflow"
	"inspection/pkg/tools"
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
    inspector: insp-1
    locations:
      - id: item-living
        name: Living Room
        tasks:
          - id: task-walls
            action: Check walls and paint
      - id: item-kitchen
        name: Kitchen
        tasks:
          - id: task-sink
            action: Check sink and drainage
`

const testSessionID = "+6591234567"

type fixture struct {
	interp   *Interpreter
	registry *tools.Registry
	sessions session.Store
	store    *domain.SQLiteStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := domain.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(testSeed), 0o644))
	require.NoError(t, store.LoadSeed(context.Background(), seedPath))

	sessions := session.NewMemoryStore()
	env := tools.NewEnv(sessions, store, "+65")
	registry := tools.NewCatalog(env)
	return &fixture{
		interp:   New(sessions, registry, store, Options{PlainYesNo: true}),
		registry: registry,
		sessions: sessions,
		store:    store,
	}
}

func (f *fixture) send(t *testing.T, text string) (string, bool) {
	t.Helper()
	return f.interp.Handle(context.Background(), testSessionID, Inbound{Text: text})
}

func (f *fixture) mustSend(t *testing.T, text string) string {
	t.Helper()
	reply, matched := f.send(t, text)
	require.True(t, matched, "expected fast path to match %q", text)
	return reply
}

func (f *fixture) state(t *testing.T) session.State {
	t.Helper()
	st, err := f.sessions.Get(context.Background(), testSessionID)
	require.NoError(t, err)
	return st
}

func TestJobsIntentMatchesWholeMessageForms(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"jobs", "Jobs", "my jobs", "today's jobs", "what's my schedule?", "schedule", "show me my jobs"} {
		reply := f.mustSend(t, text)
		assert.Contains(t, reply, "[1] 123 Orchard Road 238858", text)
	}
}

func TestJobsIntentIgnoresIncidentalMention(t *testing.T) {
	f := newFixture(t)
	_, matched := f.send(t, "the previous job owner left this note")
	assert.False(t, matched)
}

func TestFreeTextDeclinesWithoutContext(t *testing.T) {
	f := newFixture(t)
	_, matched := f.send(t, "can you summarise my progress?")
	assert.False(t, matched)

	// A bare number with no menu rendered yet also declines.
	_, matched = f.send(t, "3")
	assert.False(t, matched)
}

// The full scripted walk from empty session to a completed task.
func TestEndToEndInspectionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply := f.mustSend(t, "jobs")
	assert.Contains(t, reply, "[1] 123 Orchard Road 238858")

	reply = f.mustSend(t, "1")
	assert.Contains(t, reply, "[1] Yes, start this job")
	assert.Contains(t, reply, "[2] No, choose another job")

	reply = f.mustSend(t, "1")
	assert.Contains(t, reply, "[1] Living Room")
	assert.Contains(t, reply, "[2] Kitchen")
	assert.Contains(t, reply, "[3] Go back")

	wo, err := f.store.WorkOrderByID(ctx, "wo-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkOrderInProgress, wo.Status)

	// Kitchen has no sub-locations: straight to tasks with Go back at N+1.
	reply = f.mustSend(t, "2")
	assert.Contains(t, reply, "[1] Check sink and drainage")
	assert.Contains(t, reply, "[2] Go back")

	reply = f.mustSend(t, "1")
	assert.Contains(t, reply, "[1] Good")
	assert.Contains(t, reply, "[5] Not applicable")

	// 2 = FAIR.
	reply = f.mustSend(t, "2")
	assert.Contains(t, reply, "cause of the fair condition")

	reply = f.mustSend(t, "Pipe joint is loose")
	assert.Contains(t, reply, "resolution")

	reply = f.mustSend(t, "Tighten and reseal the joint")
	assert.Contains(t, reply, "photo")

	// Skip is rejected: FAIR requires media.
	reply = f.mustSend(t, "skip")
	assert.Contains(t, reply, "photo is required")

	reply, matched := f.interp.Handle(ctx, testSessionID, Inbound{MediaURL: "https://cdn.example.com/p1.jpg"})
	require.True(t, matched)
	assert.Contains(t, reply, "remarks")

	reply = f.mustSend(t, "skip")
	assert.Contains(t, reply, "[1] Yes, mark it complete")

	reply = f.mustSend(t, "1")
	assert.Contains(t, reply, "marked complete")

	task, err := f.store.TaskByID(ctx, "task-sink")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, task.Status)

	// The only task in Kitchen is done, so the location completes.
	locs, err := f.store.LocationsWithStatus(ctx, "wo-1")
	require.NoError(t, err)
	assert.True(t, locs[1].IsCompleted)
}

// Replaying "1" at the confirmation prompt after the job already started
// must not re-confirm; it re-renders the current location menu.
func TestConfirmReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")
	first := f.mustSend(t, "1")
	assert.Contains(t, first, "[1] Living Room")

	// jobStatus is now started, so the duplicate "1" routes through the
	// locations menu instead of start_job.
	second := f.mustSend(t, "1")
	assert.Contains(t, second, "Check walls and paint")
	assert.Equal(t, session.JobStatusStarted, f.state(t).JobStatus)
}

func TestConfirmGuardRepromptsOnUnusableInput(t *testing.T) {
	f := newFixture(t)
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")

	reply := f.mustSend(t, "maybe later")
	assert.Contains(t, reply, "[1] Yes, start this job")
	assert.Equal(t, session.JobStatusConfirming, f.state(t).JobStatus)
}

func TestPlainYesStartsConfirmedJob(t *testing.T) {
	f := newFixture(t)
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")

	reply := f.mustSend(t, "yes")
	assert.Contains(t, reply, "[1] Living Room")
	assert.Equal(t, session.JobStatusStarted, f.state(t).JobStatus)
}

func TestPlainYesNoDisabled(t *testing.T) {
	f := newFixture(t)
	f.interp.opts.PlainYesNo = false
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")

	// "yes" is unusable input now; the guard re-prompts.
	reply := f.mustSend(t, "yes")
	assert.Contains(t, reply, "[1] Yes, start this job")
	assert.Equal(t, session.JobStatusConfirming, f.state(t).JobStatus)
}

func TestDeclineEntersJobEditFlow(t *testing.T) {
	f := newFixture(t)
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")

	reply := f.mustSend(t, "2")
	assert.Contains(t, reply, "[1] Customer name")
	assert.Contains(t, reply, "[5] Back to job list")
	assert.Equal(t, session.EditModeMenu, f.state(t).JobEditMode)

	reply = f.mustSend(t, "1")
	assert.Contains(t, reply, "Send the new customer name")
	assert.Equal(t, session.EditModeAwaitValue, f.state(t).JobEditMode)

	reply = f.mustSend(t, "Mrs Lim")
	assert.Contains(t, reply, "Updated the customer name")
	assert.Contains(t, reply, "Customer: Mrs Lim", "confirmation re-renders with the new value")
	assert.Equal(t, session.EditModeNone, f.state(t).JobEditMode)

	wo, err := f.store.WorkOrderByID(context.Background(), "wo-1")
	require.NoError(t, err)
	assert.Equal(t, "Mrs Lim", wo.CustomerName)
}

func TestJobEditBackReturnsToJobList(t *testing.T) {
	f := newFixture(t)
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")
	f.mustSend(t, "2")

	reply := f.mustSend(t, "5")
	assert.Contains(t, reply, "jobs for today")
	st := f.state(t)
	assert.Equal(t, session.EditModeNone, st.JobEditMode)
	assert.Empty(t, st.WorkOrderID, "job context resets with the list")
}

func TestOutOfRangeOrdinalReRendersMenu(t *testing.T) {
	f := newFixture(t)
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")
	f.mustSend(t, "1")

	reply := f.mustSend(t, "9")
	assert.Contains(t, reply, "[1] Living Room", "invalid selection re-renders the location menu")
	assert.Equal(t, session.MenuLocations, f.state(t).LastMenu)
}

func TestGoBackFromTasksToLocations(t *testing.T) {
	f := newFixture(t)
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")
	f.mustSend(t, "1")
	f.mustSend(t, "2") // Kitchen tasks

	// Ordinal N+1 (one task, so 2) is the synthesized Go back.
	reply := f.mustSend(t, "2")
	assert.Contains(t, reply, "[1] Living Room")
	assert.Equal(t, session.MenuLocations, f.state(t).LastMenu)

	// Textual form does the same from the re-entered task menu.
	f.mustSend(t, "2")
	reply = f.mustSend(t, "go back")
	assert.Contains(t, reply, "[1] Living Room")
}

func TestConditionStageOwnsNumericInput(t *testing.T) {
	f := newFixture(t)
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")
	f.mustSend(t, "1")
	f.mustSend(t, "2") // Kitchen
	f.mustSend(t, "1") // start task-sink

	// "1" now rates the condition GOOD instead of selecting a task.
	reply := f.mustSend(t, "1")
	assert.Contains(t, reply, "photo")
	assert.Equal(t, taskflow.StageMedia, f.state(t).TaskFlowStage)
}

func TestConditionGuardRepromptsOnFreeText(t *testing.T) {
	f := newFixture(t)
	f.mustSend(t, "jobs")
	f.mustSend(t, "1")
	f.mustSend(t, "1")
	f.mustSend(t, "2")
	f.mustSend(t, "1")

	reply := f.mustSend(t, "it looks okay I think")
	assert.Contains(t, reply, "[1] Good")
	assert.Equal(t, taskflow.StageCondition, f.state(t).TaskFlowStage)
}

// The fast path and a direct registry invocation must leave identical
// session state behind for the same logical action.
func TestFastPathMatchesDirectToolInvocation(t *testing.T) {
	ctx := context.Background()

	viaFast := newFixture(t)
	viaFast.mustSend(t, "jobs")
	viaFast.mustSend(t, "1")

	viaTools := newFixture(t)
	require.True(t, viaTools.registry.Invoke(ctx, testSessionID, "get_today_jobs", map[string]any{}).Success)
	require.True(t, viaTools.registry.Invoke(ctx, testSessionID, "confirm_job_selection", map[string]any{"jobId": "1"}).Success)

	a := viaFast.state(t)
	b := viaTools.state(t)
	a.LastMenuAt = b.LastMenuAt // wall-clock differs; everything else must not
	assert.Equal(t, a, b)
}

// A photo sent before any task is picked is stored on an orphaned entry and
// adopted when the inspector selects a task.
func TestOrphanMediaUploadStoredAndLinked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mustSend(t, "jobs")
	f.mustSend(t, "1")
	f.mustSend(t, "1") // job started, location menu shown, no task flow yet

	reply, matched := f.interp.Handle(ctx, testSessionID, Inbound{MediaURL: "https://cdn.example.com/orphan.jpg"})
	require.True(t, matched)
	assert.Contains(t, reply, "Media saved")

	st := f.state(t)
	require.NotEmpty(t, st.CurrentTaskEntryID)
	orphanEntryID := st.CurrentTaskEntryID

	// Picking a task adopts the orphaned entry along with its photo.
	f.mustSend(t, "1") // Living Room
	f.mustSend(t, "1") // Check walls and paint

	entry, err := f.store.EntryForTask(ctx, "task-walls", "insp-1")
	require.NoError(t, err)
	assert.Equal(t, orphanEntryID, entry.ID)

	info, err := f.store.TaskMedia(ctx, "task-walls")
	require.NoError(t, err)
	require.Len(t, info.Photos, 1)
	assert.Equal(t, "https://cdn.example.com/orphan.jpg", info.Photos[0].URL)
}

// Media from a sender with no resolvable identity cannot be stored; the
// message falls through to the slow path instead of failing loudly.
func TestMediaFromUnknownSenderDeclines(t *testing.T) {
	f := newFixture(t)
	_, matched := f.interp.Handle(context.Background(), "+6500000000", Inbound{MediaURL: "https://cdn.example.com/x.jpg"})
	assert.False(t, matched)
}
