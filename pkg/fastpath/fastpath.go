// Package fastpath implements the deterministic interpreter: a rule-based
// router that classifies an inbound message against the current session
// state and, when unambiguous, invokes the tool registry directly without
// the LLM. Anything it cannot classify is declined, never guessed.
package fastpath

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"inspection/pkg/domain"
	"inspection/pkg/logx"
	"inspection/pkg/session"
	"inspection/pkg/taskflow"
	"inspection/pkg/tools"
)

// Inbound is one normalized inbound message, already stripped of transport
// framing by the gateway.
type Inbound struct {
	Text      string
	MediaURL  string
	MediaType string // "photo" or "video"; empty defaults to photo
}

// Options tunes interpreter behavior.
type Options struct {
	// PlainYesNo lets "yes"/"no" answer confirmation prompts in addition
	// to [1]/[2].
	PlainYesNo bool
}

// Interpreter is the fast path. It reads session state, classifies the
// message, and drives the shared tool registry. Domain access is read-only
// here, used solely to size menus for ordinal bounds; every state change
// goes through a tool.
type Interpreter struct {
	sessions session.Store
	registry *tools.Registry
	domain   domain.Access
	opts     Options
	logger   *logx.Logger
}

// New builds an interpreter over the shared registry.
func New(sessions session.Store, registry *tools.Registry, access domain.Access, opts Options) *Interpreter {
	return &Interpreter{
		sessions: sessions,
		registry: registry,
		domain:   access,
		opts:     opts,
		logger:   logx.NewLogger("fastpath"),
	}
}

// Jobs intent: whole-message forms only, so an incidental "job" inside a
// free-text cause or remark does not reset the conversation.
var jobsIntent = regexp.MustCompile(`(?i)^\s*(?:jobs?|my jobs|today'?s jobs|jobs today|list jobs|show (?:me )?my jobs|schedule|my schedule|what'?s my schedule(?: today)?|what is my schedule(?: today)?|what are my jobs(?: today)?)\s*[?.!]*\s*$`)

// One recognizer for every numeric reply shape: "[3]", "option 3", "3".
var numericReply = regexp.MustCompile(`(?i)^\s*(?:\[(\d+)\]|option\s+(\d+)|(\d+))\s*$`)

var goBackReply = regexp.MustCompile(`(?i)^\s*(?:go\s*back|back|b)\s*[.!]*\s*$`)

var yesReply = regexp.MustCompile(`(?i)^\s*(?:yes|yep|yeah|y|ok|okay|confirm)\s*[.!]*\s*$`)

var noReply = regexp.MustCompile(`(?i)^\s*(?:no|nope|n)\s*[.!]*\s*$`)

// parseOrdinal extracts the menu ordinal from a numeric reply, in any of
// its accepted shapes.
func parseOrdinal(text string) (int, bool) {
	m := numericReply.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g != "" {
			n, err := strconv.Atoi(g)
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// Handle classifies one message. It returns the rendered reply and true on
// a match, or "" and false to decline to the LLM path. It never panics past
// its boundary: internal failures are logged and become a decline.
func (i *Interpreter) Handle(ctx context.Context, sessionID string, msg Inbound) (reply string, matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			i.logger.Error("interpreter panicked for session %s: %v", sessionID, rec)
			reply, matched = "", false
		}
	}()

	st, err := i.sessions.Get(ctx, sessionID)
	if err != nil {
		i.logger.Warn("session load failed for %s: %v", sessionID, err)
		return "", false
	}
	text := strings.TrimSpace(msg.Text)

	// A media attachment always goes to add_task_media: during the media
	// stage it answers the prompt, otherwise it is stored as an orphan
	// entry for later linking. Only an unidentified sender falls through.
	if msg.MediaURL != "" {
		res := i.invoke(ctx, sessionID, "add_task_media", map[string]any{
			"url":       msg.MediaURL,
			"caption":   text,
			"mediaType": msg.MediaType,
		})
		if !res.Success {
			return "", false
		}
		return res.Message(), true
	}

	if jobsIntent.MatchString(text) {
		res := i.invoke(ctx, sessionID, "get_today_jobs", nil)
		return res.Message(), true
	}

	// An in-progress task flow owns the message before any menu routing,
	// so "2" at the condition prompt rates the condition rather than
	// re-selecting task two.
	if st.TaskFlowStage != taskflow.StageNone && st.CurrentTaskID != "" {
		return i.continueTaskFlow(ctx, sessionID, &st, text)
	}

	if st.JobEditMode != session.EditModeNone {
		return i.handleJobEdit(ctx, sessionID, &st, text)
	}

	if st.JobStatus == session.JobStatusConfirming {
		return i.handleConfirming(ctx, sessionID, &st, text)
	}

	ordinal, isNumeric := parseOrdinal(text)
	isBack := goBackReply.MatchString(text)
	if !isNumeric && !isBack {
		return "", false
	}

	switch st.LastMenu {
	case session.MenuJobs:
		if isBack {
			return i.invoke(ctx, sessionID, "get_today_jobs", nil).Message(), true
		}
		return i.invoke(ctx, sessionID, "confirm_job_selection", map[string]any{
			"jobId": strconv.Itoa(ordinal),
		}).Message(), true

	case session.MenuLocations:
		return i.routeLocationMenu(ctx, sessionID, &st, ordinal, isBack)

	case session.MenuSubLocations:
		return i.routeSubLocationMenu(ctx, sessionID, &st, ordinal, isBack)

	case session.MenuTasks:
		return i.routeTaskMenu(ctx, sessionID, &st, ordinal, isBack)

	default:
		return "", false
	}
}

// handleConfirming is the confirm-stage guard: while a job awaits
// confirmation, anything that is not a valid answer re-renders the
// confirmation prompt instead of falling through.
func (i *Interpreter) handleConfirming(ctx context.Context, sessionID string, st *session.State, text string) (string, bool) {
	ordinal, isNumeric := parseOrdinal(text)

	accept := isNumeric && ordinal == 1
	decline := isNumeric && ordinal == 2
	if i.opts.PlainYesNo && !isNumeric {
		accept = yesReply.MatchString(text)
		decline = noReply.MatchString(text)
	}

	switch {
	case accept:
		return i.invoke(ctx, sessionID, "start_job", nil).Message(), true
	case decline:
		return i.enterJobEditMenu(ctx, sessionID), true
	case goBackReply.MatchString(text):
		return i.invoke(ctx, sessionID, "get_today_jobs", nil).Message(), true
	default:
		// Re-prompt with the same confirmation; the merge it repeats is
		// idempotent.
		return i.invoke(ctx, sessionID, "confirm_job_selection", map[string]any{
			"jobId": st.WorkOrderID,
		}).Message(), true
	}
}

func (i *Interpreter) enterJobEditMenu(ctx context.Context, sessionID string) string {
	if err := i.sessions.Merge(ctx, sessionID, session.Patch{
		session.FieldJobEditMode: session.EditModeMenu,
		session.FieldJobEditType: nil,
	}); err != nil {
		i.logger.Warn("failed to enter job edit mode: %v", err)
	}
	return tools.JobEditMenu()
}

// editTypes maps the job-edit menu ordinals 1-4 to the editable fields.
//
//nolint:gochecknoglobals // Fixed menu order
var editTypes = []struct {
	kind  session.EditType
	label string
}{
	{session.EditTypeCustomer, "customer name"},
	{session.EditTypeAddress, "property address"},
	{session.EditTypeTime, "scheduled time"},
	{session.EditTypeStatus, "job status"},
}

func (i *Interpreter) handleJobEdit(ctx context.Context, sessionID string, st *session.State, text string) (string, bool) {
	switch st.JobEditMode {
	case session.EditModeMenu:
		ordinal, ok := parseOrdinal(text)
		if !ok || ordinal < 1 || ordinal > len(editTypes)+1 {
			return tools.JobEditMenu(), true
		}
		if ordinal == len(editTypes)+1 {
			// Back to the job list.
			if err := i.sessions.Merge(ctx, sessionID, session.Patch{
				session.FieldJobEditMode: nil,
				session.FieldJobEditType: nil,
			}); err != nil {
				i.logger.Warn("failed to leave job edit mode: %v", err)
			}
			return i.invoke(ctx, sessionID, "get_today_jobs", nil).Message(), true
		}

		choice := editTypes[ordinal-1]
		if err := i.sessions.Merge(ctx, sessionID, session.Patch{
			session.FieldJobEditMode: session.EditModeAwaitValue,
			session.FieldJobEditType: choice.kind,
		}); err != nil {
			i.logger.Warn("failed to record job edit choice: %v", err)
		}
		return "Send the new " + choice.label + ".", true

	case session.EditModeAwaitValue:
		if text == "" {
			return "Send the new value.", true
		}
		res := i.invoke(ctx, sessionID, "update_job_details", map[string]any{
			"field": string(st.JobEditType),
			"value": text,
		})
		if !res.Success {
			return res.Message(), true
		}
		// Re-show the confirmation with the corrected details.
		confirm := i.invoke(ctx, sessionID, "confirm_job_selection", map[string]any{
			"jobId": st.WorkOrderID,
		})
		return res.Message() + "\n\n" + confirm.Message(), true

	default:
		return "", false
	}
}

func (i *Interpreter) routeLocationMenu(ctx context.Context, sessionID string, st *session.State, ordinal int, isBack bool) (string, bool) {
	locations, err := i.domain.LocationsWithStatus(ctx, st.WorkOrderID)
	if err != nil {
		i.logger.Warn("location count failed for %s: %v", st.WorkOrderID, err)
		return "", false
	}

	if isBack || ordinal == len(locations)+1 {
		return i.invoke(ctx, sessionID, "get_today_jobs", nil).Message(), true
	}
	if ordinal < 1 || ordinal > len(locations) {
		return i.invoke(ctx, sessionID, "get_job_locations", nil).Message(), true
	}
	return i.invoke(ctx, sessionID, "get_sub_locations", map[string]any{
		"location": strconv.Itoa(ordinal),
	}).Message(), true
}

func (i *Interpreter) routeSubLocationMenu(ctx context.Context, sessionID string, st *session.State, ordinal int, isBack bool) (string, bool) {
	refs := st.LocationSubLocations[st.CurrentLocationID]

	if isBack || ordinal == len(refs)+1 {
		return i.invoke(ctx, sessionID, "get_job_locations", nil).Message(), true
	}
	if ordinal < 1 || ordinal > len(refs) {
		return i.invoke(ctx, sessionID, "get_sub_locations", map[string]any{
			"location": st.CurrentLocation,
		}).Message(), true
	}
	return i.invoke(ctx, sessionID, "get_tasks_for_location", map[string]any{
		"subLocation": strconv.Itoa(ordinal),
	}).Message(), true
}

func (i *Interpreter) routeTaskMenu(ctx context.Context, sessionID string, st *session.State, ordinal int, isBack bool) (string, bool) {
	displayName := st.CurrentLocation
	if st.CurrentSubLocationName != "" {
		displayName = st.CurrentSubLocationName
	}
	tasksList, err := i.domain.TasksByLocation(ctx, st.WorkOrderID, displayName, st.CurrentLocationID, st.CurrentSubLocationID)
	if err != nil {
		i.logger.Warn("task count failed for %s: %v", st.WorkOrderID, err)
		return "", false
	}

	if isBack || ordinal == len(tasksList)+1 {
		// Go back to the areas the list came from, or the locations.
		if st.CurrentSubLocationID != "" && len(st.LocationSubLocations[st.CurrentLocationID]) > 1 {
			return i.invoke(ctx, sessionID, "get_sub_locations", map[string]any{
				"location": st.CurrentLocation,
			}).Message(), true
		}
		return i.invoke(ctx, sessionID, "get_job_locations", nil).Message(), true
	}
	if ordinal < 1 || ordinal > len(tasksList) {
		return i.invoke(ctx, sessionID, "get_tasks_for_location", nil).Message(), true
	}
	return i.invoke(ctx, sessionID, "complete_task", map[string]any{
		"phase":  "start",
		"taskId": strconv.Itoa(ordinal),
	}).Message(), true
}

// continueTaskFlow routes a message into the matching completion phase. Each
// stage has a guard branch: input the stage cannot use re-renders the
// stage's own prompt rather than falling through to the LLM.
func (i *Interpreter) continueTaskFlow(ctx context.Context, sessionID string, st *session.State, text string) (string, bool) {
	switch st.TaskFlowStage {
	case taskflow.StageCondition:
		if ordinal, ok := parseOrdinal(text); ok {
			return i.invoke(ctx, sessionID, "complete_task", map[string]any{
				"phase":     "set_condition",
				"condition": strconv.Itoa(ordinal),
			}).Message(), true
		}
		return tools.ConditionPrompt(st.CurrentTaskName), true

	case taskflow.StageCause:
		if text == "" {
			return tools.CausePrompt(st.CurrentTaskCondition), true
		}
		return i.invoke(ctx, sessionID, "complete_task", map[string]any{
			"phase": "set_cause",
			"value": text,
		}).Message(), true

	case taskflow.StageResolution:
		if text == "" {
			return tools.ResolutionPrompt, true
		}
		return i.invoke(ctx, sessionID, "complete_task", map[string]any{
			"phase": "set_resolution",
			"value": text,
		}).Message(), true

	case taskflow.StageMedia:
		if strings.EqualFold(text, "skip") || noReply.MatchString(text) {
			return i.invoke(ctx, sessionID, "complete_task", map[string]any{
				"phase": "skip_media",
			}).Message(), true
		}
		return tools.MediaPrompt, true

	case taskflow.StageRemarks:
		if text == "" {
			return tools.RemarksPrompt, true
		}
		return i.invoke(ctx, sessionID, "complete_task", map[string]any{
			"phase": "set_remarks",
			"value": text,
		}).Message(), true

	case taskflow.StageConfirm:
		ordinal, isNumeric := parseOrdinal(text)
		completed := isNumeric && ordinal == 1
		declined := isNumeric && ordinal == 2
		if i.opts.PlainYesNo && !isNumeric {
			completed = yesReply.MatchString(text)
			declined = noReply.MatchString(text)
		}
		if !completed && !declined {
			return tools.ConfirmTaskPrompt(st.CurrentTaskName), true
		}
		return i.invoke(ctx, sessionID, "complete_task", map[string]any{
			"phase":     "finalize",
			"completed": completed,
		}).Message(), true

	default:
		return "", false
	}
}

func (i *Interpreter) invoke(ctx context.Context, sessionID, name string, args map[string]any) tools.Result {
	if args == nil {
		args = map[string]any{}
	}
	return i.registry.Invoke(ctx, sessionID, name, args)
}
