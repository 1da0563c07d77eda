package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inspection/pkg/domain"
	"inspection/pkg/session"
	"inspection/pkg/taskflow"
)

// completeTaskTool drives the per-task completion state machine. Every turn
// of the flow is one call with a phase argument; the stage recorded in the
// session is the arbiter of which phases are currently legal, so replayed or
// misrouted calls re-render the current stage's prompt instead of advancing.
type completeTaskTool struct {
	env *Env
}

// NewCompleteTaskTool builds the complete_task tool.
func NewCompleteTaskTool(env *Env) Tool {
	return &completeTaskTool{env: env}
}

func (t *completeTaskTool) Name() string { return "complete_task" }

func (t *completeTaskTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: t.Name(),
		Description: "Drive the task completion flow, one phase per call: start (begin a task), set_condition (rating 1-5), " +
			"set_cause, set_resolution, skip_media, set_remarks, finalize (completed true/false).",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"phase": {
					Type: "string",
					Enum: []string{"start", "set_condition", "set_cause", "set_resolution", "skip_media", "set_remarks", "finalize"},
					Description: "Which step of the flow to run",
				},
				"taskId":    {Type: "string", Description: "Task id or menu number (start phase)"},
				"condition": {Type: "string", Description: "Condition rating 1-5 or name (set_condition phase)"},
				"value":     {Type: "string", Description: "Free text for cause, resolution, or remarks"},
				"completed": {Type: "boolean", Description: "Whether to mark the task complete (finalize phase)"},
			},
			Required: []string{"phase"},
		},
	}
}

func (t *completeTaskTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}
	if res, ok := requireStartedJob(&st); !ok {
		return res, nil
	}

	phase := strings.ToLower(strings.TrimSpace(stringArg(args, "phase")))
	switch phase {
	case "start":
		return t.start(ctx, sessionID, &st, args)
	case "set_condition":
		return t.setCondition(ctx, sessionID, &st, args)
	case "set_cause":
		return t.setCause(ctx, sessionID, &st, args)
	case "set_resolution":
		return t.setResolution(ctx, sessionID, &st, args)
	case "skip_media":
		return t.skipMedia(ctx, sessionID, &st)
	case "set_remarks":
		return t.setRemarks(ctx, sessionID, &st, args)
	case "finalize":
		return t.finalize(ctx, sessionID, &st, args)
	default:
		return Failf("Unknown task phase %q.", phase), nil
	}
}

// start loads the task, resets any previous flow context, and asks for the
// condition rating.
func (t *completeTaskTool) start(ctx context.Context, sessionID string, st *session.State, args map[string]any) (Result, error) {
	raw := strings.TrimSpace(stringArg(args, "taskId"))
	if strings.EqualFold(raw, "complete_all_tasks") {
		return Failf("Bulk complete is disabled. Please complete tasks one at a time."), nil
	}

	task, ok, err := t.resolveTask(ctx, st, raw)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Failf("I couldn't find that task. Reply with a number from the task list."), nil
	}

	patch := session.ClearTaskFlow().Merge(session.Patch{
		session.FieldCurrentTaskID:           task.ID,
		session.FieldCurrentTaskName:         task.Action,
		session.FieldCurrentTaskItemID:       task.ItemID,
		session.FieldCurrentTaskLocationID:   task.LocationID,
		session.FieldCurrentTaskLocationName: task.LocationName,
		session.FieldTaskFlowStage:           taskflow.StageCondition,
	})

	// A media upload may have arrived before the task was picked; adopt the
	// orphaned entry instead of losing its photos.
	if st.CurrentTaskEntryID != "" && st.CurrentTaskID == "" {
		if err := t.env.Domain.LinkEntryToTask(ctx, st.CurrentTaskEntryID, task.ID); err != nil {
			t.env.Logger.Warn("failed to link orphan entry %s to task %s: %v", st.CurrentTaskEntryID, task.ID, err)
		} else {
			patch[session.FieldCurrentTaskEntryID] = st.CurrentTaskEntryID
		}
	}

	if err := t.env.merge(ctx, sessionID, patch); err != nil {
		return Result{}, err
	}
	return OK(map[string]any{
		"taskId":  task.ID,
		"message": ConditionPrompt(task.Action),
	}), nil
}

func (t *completeTaskTool) setCondition(ctx context.Context, sessionID string, st *session.State, args map[string]any) (Result, error) {
	if st.TaskFlowStage != taskflow.StageCondition || st.CurrentTaskID == "" {
		return t.wrongStage(st), nil
	}

	raw := strings.TrimSpace(stringArg(args, "condition"))
	if raw == "" {
		raw = strings.TrimSpace(stringArg(args, "value"))
	}
	cond, err := parseConditionInput(raw)
	if err != nil {
		return Failf("%s", ConditionPrompt(st.CurrentTaskName)), nil
	}

	entryID, err := t.ensureEntry(ctx, sessionID, st)
	if err != nil {
		return Result{}, err
	}
	condStr := string(cond)
	if err := t.env.Domain.UpdateEntry(ctx, entryID, domain.EntryUpdate{Condition: &condStr}); err != nil {
		return Result{}, fmt.Errorf("failed to record condition: %w", err)
	}
	if err := t.env.Domain.UpdateTaskCondition(ctx, st.CurrentTaskID, condStr); err != nil {
		return Result{}, fmt.Errorf("failed to update task condition: %w", err)
	}

	next, err := taskflow.Next(taskflow.StageCondition, cond)
	if err != nil {
		return Result{}, err
	}
	if err := t.env.merge(ctx, sessionID, session.Patch{
		session.FieldCurrentTaskCondition: cond,
		session.FieldTaskFlowStage:        next,
	}); err != nil {
		return Result{}, err
	}

	var msg string
	switch next {
	case taskflow.StageCause:
		msg = CausePrompt(cond)
	case taskflow.StageMedia:
		msg = MediaPrompt
	default:
		msg = RemarksPrompt
	}
	return OK(map[string]any{
		"condition": condStr,
		"message":   msg,
	}), nil
}

func (t *completeTaskTool) setCause(ctx context.Context, sessionID string, st *session.State, args map[string]any) (Result, error) {
	if st.TaskFlowStage != taskflow.StageCause || st.CurrentTaskID == "" {
		return t.wrongStage(st), nil
	}
	value := strings.TrimSpace(stringArg(args, "value"))
	if value == "" {
		return Failf("%s", CausePrompt(st.CurrentTaskCondition)), nil
	}

	entryID, err := t.ensureEntry(ctx, sessionID, st)
	if err != nil {
		return Result{}, err
	}
	if err := t.env.Domain.UpdateEntry(ctx, entryID, domain.EntryUpdate{Cause: &value}); err != nil {
		return Result{}, fmt.Errorf("failed to record cause: %w", err)
	}
	if err := t.env.merge(ctx, sessionID, session.Patch{
		session.FieldPendingTaskCause: value,
		session.FieldTaskFlowStage:    taskflow.StageResolution,
	}); err != nil {
		return Result{}, err
	}
	return OKMessage(ResolutionPrompt), nil
}

func (t *completeTaskTool) setResolution(ctx context.Context, sessionID string, st *session.State, args map[string]any) (Result, error) {
	if st.TaskFlowStage != taskflow.StageResolution || st.CurrentTaskID == "" {
		return t.wrongStage(st), nil
	}
	value := strings.TrimSpace(stringArg(args, "value"))
	if value == "" {
		return Failf("%s", ResolutionPrompt), nil
	}

	entryID, err := t.ensureEntry(ctx, sessionID, st)
	if err != nil {
		return Result{}, err
	}
	if err := t.env.Domain.UpdateEntry(ctx, entryID, domain.EntryUpdate{Resolution: &value}); err != nil {
		return Result{}, fmt.Errorf("failed to record resolution: %w", err)
	}
	if err := t.env.merge(ctx, sessionID, session.Patch{
		session.FieldPendingTaskResolution: value,
		session.FieldTaskFlowStage:         taskflow.StageMedia,
	}); err != nil {
		return Result{}, err
	}
	return OKMessage(MediaPrompt), nil
}

func (t *completeTaskTool) skipMedia(ctx context.Context, sessionID string, st *session.State) (Result, error) {
	if st.TaskFlowStage != taskflow.StageMedia || st.CurrentTaskID == "" {
		return t.wrongStage(st), nil
	}
	if st.CurrentTaskCondition.RequiresMedia() {
		return Failf("At least one photo is required for this condition. Please send a photo."), nil
	}
	if err := t.env.merge(ctx, sessionID, session.Patch{
		session.FieldTaskFlowStage: taskflow.StageRemarks,
	}); err != nil {
		return Result{}, err
	}
	return OKMessage(RemarksPrompt), nil
}

func (t *completeTaskTool) setRemarks(ctx context.Context, sessionID string, st *session.State, args map[string]any) (Result, error) {
	if st.TaskFlowStage != taskflow.StageRemarks || st.CurrentTaskID == "" {
		return t.wrongStage(st), nil
	}

	value := strings.TrimSpace(stringArg(args, "value"))
	// "skip" and "no" mean no remarks, not the literal word.
	if strings.EqualFold(value, "skip") || strings.EqualFold(value, "no") {
		value = ""
	}

	entryID, err := t.ensureEntry(ctx, sessionID, st)
	if err != nil {
		return Result{}, err
	}
	if err := t.env.Domain.UpdateEntry(ctx, entryID, domain.EntryUpdate{Remarks: &value}); err != nil {
		return Result{}, fmt.Errorf("failed to record remarks: %w", err)
	}
	if err := t.env.merge(ctx, sessionID, session.Patch{
		session.FieldPendingTaskRemarks: value,
		session.FieldTaskFlowStage:      taskflow.StageConfirm,
	}); err != nil {
		return Result{}, err
	}
	return OKMessage(ConfirmTaskPrompt(st.CurrentTaskName)), nil
}

func (t *completeTaskTool) finalize(ctx context.Context, sessionID string, st *session.State, args map[string]any) (Result, error) {
	if st.TaskFlowStage != taskflow.StageConfirm || st.CurrentTaskID == "" {
		return t.wrongStage(st), nil
	}

	taskName := st.CurrentTaskName

	if !boolArg(args, "completed") {
		if err := t.env.merge(ctx, sessionID, session.ClearTaskFlow()); err != nil {
			return Result{}, err
		}
		return t.afterTask(ctx, sessionID, st,
			fmt.Sprintf("Okay, \"%s\" stays in progress.", taskName))
	}

	photoCount := 0
	if st.CurrentTaskEntryID != "" {
		count, err := t.env.Domain.EntryPhotoCount(ctx, st.CurrentTaskEntryID)
		if err != nil {
			return Result{}, fmt.Errorf("failed to count photos: %w", err)
		}
		photoCount = count
	}
	if err := taskflow.FinalizeCheck(st.CurrentTaskCondition, photoCount, st.PendingTaskCause, st.PendingTaskResolution); err != nil {
		// The precondition message is the next prompt; the stage stays put
		// so the inspector can supply what is missing.
		return Failf("%s.", strings.ToUpper(err.Error()[:1])+err.Error()[1:]), nil
	}

	if err := t.env.Domain.UpdateTaskStatus(ctx, st.CurrentTaskID, domain.StatusCompleted); err != nil {
		return Result{}, fmt.Errorf("failed to complete task: %w", err)
	}
	if err := t.env.Domain.RecomputeAggregates(ctx, st.CurrentTaskItemID, st.CurrentTaskLocationID); err != nil {
		return Result{}, fmt.Errorf("failed to update location status: %w", err)
	}

	if err := t.env.merge(ctx, sessionID, session.ClearTaskFlow()); err != nil {
		return Result{}, err
	}
	return t.afterTask(ctx, sessionID, st,
		fmt.Sprintf("\"%s\" is marked complete.", taskName))
}

// afterTask re-renders the task list the flow came from, prefixed with the
// outcome line, so the inspector lands back where they were.
func (t *completeTaskTool) afterTask(ctx context.Context, sessionID string, st *session.State, outcome string) (Result, error) {
	itemID := st.CurrentTaskItemID
	if itemID == "" {
		itemID = st.CurrentLocationID
	}
	displayName := st.CurrentTaskLocationName
	if displayName == "" {
		displayName = st.CurrentLocation
	}
	if itemID == "" {
		return OKMessage(outcome + " Reply \"go back\" to continue."), nil
	}

	res, err := t.env.renderTasks(ctx, sessionID, st.WorkOrderID, displayName, itemID, st.CurrentTaskLocationID)
	if err != nil {
		return Result{}, err
	}
	res.Data["message"] = outcome + "\n\n" + res.Message()
	return res, nil
}

// wrongStage is the shared guard response: it re-renders the prompt for the
// stage the session is actually in.
func (t *completeTaskTool) wrongStage(st *session.State) Result {
	switch st.TaskFlowStage {
	case taskflow.StageCondition:
		return Failf("%s", ConditionPrompt(st.CurrentTaskName))
	case taskflow.StageCause:
		return Failf("%s", CausePrompt(st.CurrentTaskCondition))
	case taskflow.StageResolution:
		return Failf("%s", ResolutionPrompt)
	case taskflow.StageMedia:
		return Failf("%s", MediaPrompt)
	case taskflow.StageRemarks:
		return Failf("%s", RemarksPrompt)
	case taskflow.StageConfirm:
		return Failf("%s", ConfirmTaskPrompt(st.CurrentTaskName))
	default:
		return Failf("No task is in progress. Pick a task from the task list first.")
	}
}

// resolveTask maps a raw task reference (id or menu ordinal) to a task.
func (t *completeTaskTool) resolveTask(ctx context.Context, st *session.State, raw string) (domain.Task, bool, error) {
	if raw == "" {
		return domain.Task{}, false, nil
	}

	task, err := t.env.Domain.TaskByID(ctx, raw)
	if err == nil {
		return task, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Task{}, false, err
	}

	ordinal, convErr := strconv.Atoi(raw)
	if convErr != nil || st.CurrentLocationID == "" {
		return domain.Task{}, false, nil
	}
	displayName := st.CurrentLocation
	if st.CurrentSubLocationName != "" {
		displayName = st.CurrentSubLocationName
	}
	tasks, err := t.env.Domain.TasksByLocation(ctx, st.WorkOrderID, displayName, st.CurrentLocationID, st.CurrentSubLocationID)
	if err != nil {
		return domain.Task{}, false, err
	}
	if ordinal < 1 || ordinal > len(tasks) {
		return domain.Task{}, false, nil
	}
	return tasks[ordinal-1], true, nil
}

// ensureEntry returns the entry id for the current task, creating the
// per-(task, inspector) record lazily on first use.
func (t *completeTaskTool) ensureEntry(ctx context.Context, sessionID string, st *session.State) (string, error) {
	return t.env.ensureEntry(ctx, sessionID, st)
}

// ensureEntry is shared with add_task_media, which may run before a task is
// picked (the orphan entry case).
func (e *Env) ensureEntry(ctx context.Context, sessionID string, st *session.State) (string, error) {
	if st.CurrentTaskEntryID != "" {
		return st.CurrentTaskEntryID, nil
	}

	insp, ok := e.resolveInspector(ctx, sessionID, st, nil)
	if !ok {
		return "", fmt.Errorf("no inspector identity for entry creation")
	}

	if st.CurrentTaskID != "" {
		existing, err := e.Domain.EntryForTask(ctx, st.CurrentTaskID, insp.ID)
		if err == nil {
			st.CurrentTaskEntryID = existing.ID
			return existing.ID, e.merge(ctx, sessionID, session.Patch{
				session.FieldCurrentTaskEntryID: existing.ID,
			})
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("failed to look up entry: %w", err)
		}
	}

	id, err := e.Domain.CreateEntry(ctx, domain.Entry{
		TaskID:      st.CurrentTaskID,
		InspectorID: insp.ID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create entry: %w", err)
	}
	st.CurrentTaskEntryID = id
	return id, e.merge(ctx, sessionID, session.Patch{
		session.FieldCurrentTaskEntryID: id,
	})
}

// parseConditionInput accepts either a menu ordinal 1-5 or a condition name.
func parseConditionInput(raw string) (taskflow.Condition, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return taskflow.ConditionFromChoice(n)
	}
	cond, err := taskflow.ParseCondition(raw)
	if err != nil || cond == taskflow.ConditionNone {
		return taskflow.ConditionNone, fmt.Errorf("invalid condition %q", raw)
	}
	return cond, nil
}

// addTaskMediaTool records an uploaded photo or video on the current task's
// entry. During the media stage the first photo advances the flow to
// remarks; uploads outside the flow are still stored (creating an orphan
// entry when no task is current).
type addTaskMediaTool struct {
	env *Env
}

// NewAddTaskMediaTool builds the add_task_media tool.
func NewAddTaskMediaTool(env *Env) Tool {
	return &addTaskMediaTool{env: env}
}

func (t *addTaskMediaTool) Name() string { return "add_task_media" }

func (t *addTaskMediaTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Attach an uploaded photo or video to the task currently being worked on.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"url":       {Type: "string", Description: "The stored media URL"},
				"caption":   {Type: "string", Description: "Optional caption"},
				"mediaType": {Type: "string", Enum: []string{"photo", "video"}, Description: "Defaults to photo"},
			},
			Required: []string{"url"},
		},
	}
}

func (t *addTaskMediaTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}

	url := strings.TrimSpace(stringArg(args, "url"))
	if url == "" {
		return Failf("I didn't receive the media. Please send the photo again."), nil
	}
	mediaType := strings.ToLower(strings.TrimSpace(stringArg(args, "mediaType")))
	if mediaType != domain.MediaVideo {
		mediaType = domain.MediaPhoto
	}

	entryID, err := t.env.ensureEntry(ctx, sessionID, &st)
	if err != nil {
		return Result{}, err
	}
	if err := t.env.Domain.AddEntryMedia(ctx, entryID, url, stringArg(args, "caption"), mediaType); err != nil {
		return Result{}, fmt.Errorf("failed to store media: %w", err)
	}

	if st.TaskFlowStage == taskflow.StageMedia && mediaType == domain.MediaPhoto {
		if err := t.env.merge(ctx, sessionID, session.Patch{
			session.FieldTaskFlowStage: taskflow.StageRemarks,
		}); err != nil {
			return Result{}, err
		}
		return OKMessage("Photo saved.\n\n" + RemarksPrompt), nil
	}

	if st.CurrentTaskID == "" {
		return OKMessage("Media saved. Pick a task from the task list and I'll attach it there."), nil
	}
	return OKMessage(fmt.Sprintf("Media saved for \"%s\".", st.CurrentTaskName)), nil
}
