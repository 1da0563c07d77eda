package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inspection/pkg/domain"
	"inspection/pkg/session"
)

// identifyMessage is shown when the inspector cannot be resolved; identity
// collection is a separate tool so the flows stay composable.
const identifyMessage = "I couldn't identify you. Please tell me your full name and mobile number so I can look you up."

// todayJobsTool lists today's jobs for the resolved inspector. Calling it is
// also the canonical conversation reset: any in-flight job, location, or
// task context is cleared before the fresh list is rendered.
type todayJobsTool struct {
	env *Env
}

// NewTodayJobsTool builds the get_today_jobs tool.
func NewTodayJobsTool(env *Env) Tool {
	return &todayJobsTool{env: env}
}

func (t *todayJobsTool) Name() string { return "get_today_jobs" }

func (t *todayJobsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "List today's inspection jobs for the inspector and reset any in-progress navigation. Use when the inspector asks about their jobs, schedule, or wants to start over.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"inspectorId":    {Type: "string", Description: "Inspector id, if already known"},
				"inspectorPhone": {Type: "string", Description: "Inspector mobile number, if provided"},
				"inspectorName":  {Type: "string", Description: "Inspector full name, if provided"},
			},
		},
	}
}

func (t *todayJobsTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}

	insp, ok := t.env.resolveInspector(ctx, sessionID, &st, args)
	if !ok {
		res := OKMessage(identifyMessage)
		res.Data["identifyRequired"] = true
		return res, nil
	}

	jobs, err := t.env.Domain.TodayJobsForInspector(ctx, insp.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list today's jobs: %w", err)
	}

	// Listing jobs abandons whatever was in flight.
	patch := session.ClearJobContext().Merge(session.Patch{
		session.FieldLastMenu:   session.MenuJobs,
		session.FieldLastMenuAt: nowUTC(),
	})
	if err := t.env.merge(ctx, sessionID, patch); err != nil {
		return Result{}, err
	}

	if len(jobs) == 0 {
		return OK(map[string]any{
			"jobs":    jobs,
			"message": "You have no jobs scheduled for today.",
		}), nil
	}

	greeting := "Here are your jobs for today"
	if insp.Name != "" {
		greeting = fmt.Sprintf("Hi %s, here are your jobs for today", insp.Name)
	}
	msg := RenderMenu(greeting+":", JobOptions(jobs), nil,
		"Reply with a number to select a job.")
	return OK(map[string]any{
		"jobs":    jobs,
		"message": msg,
	}), nil
}

// confirmJobTool stages a job selection for confirmation. It does not start
// the job; it records the candidate and asks the yes/no question.
type confirmJobTool struct {
	env *Env
}

// NewConfirmJobTool builds the confirm_job_selection tool.
func NewConfirmJobTool(env *Env) Tool {
	return &confirmJobTool{env: env}
}

func (t *confirmJobTool) Name() string { return "confirm_job_selection" }

func (t *confirmJobTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Select a job from today's list and ask the inspector to confirm it before starting. jobId may be a work order id or the number picked from the job menu.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"jobId": {Type: "string", Description: "Work order id or menu number"},
			},
			Required: []string{"jobId"},
		},
	}
}

func (t *confirmJobTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}

	insp, ok := t.env.resolveInspector(ctx, sessionID, &st, args)
	if !ok {
		return Failf("%s", identifyMessage), nil
	}

	jobID, err := t.env.resolveJobID(ctx, insp.ID, stringArg(args, "jobId"))
	if err != nil {
		t.env.Logger.Debug("job selection failed for session %s: %v", sessionID, err)
		return Failf("I couldn't find that job. Reply with a number from the job list, or ask for today's jobs again."), nil
	}

	wo, err := t.env.Domain.WorkOrderByID(ctx, jobID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load work order %s: %w", jobID, err)
	}
	postal := ExtractPostalCode(wo.PropertyAddress)

	patch := session.Patch{
		session.FieldWorkOrderID:     wo.ID,
		session.FieldCustomerName:    wo.CustomerName,
		session.FieldPropertyAddress: wo.PropertyAddress,
		session.FieldPostalCode:      postal,
		session.FieldJobStatus:       session.JobStatusConfirming,
		session.FieldJobEditMode:     nil,
		session.FieldJobEditType:     nil,
		session.FieldLastMenu:        session.MenuConfirm,
		session.FieldLastMenuAt:      nowUTC(),
	}
	if err := t.env.merge(ctx, sessionID, patch); err != nil {
		return Result{}, err
	}

	return OK(map[string]any{
		"jobId":      wo.ID,
		"postalCode": postal,
		"message":    ConfirmJobPrompt(&wo, postal),
	}), nil
}

// startJobTool flips a confirmed job into in-progress and shows its
// locations. It is guarded on the confirming state so a stray "start"
// cannot begin an unreviewed job.
type startJobTool struct {
	env *Env
}

// NewStartJobTool builds the start_job tool.
func NewStartJobTool(env *Env) Tool {
	return &startJobTool{env: env}
}

func (t *startJobTool) Name() string { return "start_job" }

func (t *startJobTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Start the job the inspector has just confirmed. Only valid after confirm_job_selection.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"jobId": {Type: "string", Description: "Work order id; defaults to the job awaiting confirmation"},
			},
		},
	}
}

func (t *startJobTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}

	if st.JobStatus == session.JobStatusStarted && st.WorkOrderID != "" {
		// Re-sending the confirmation is harmless; show where they are.
		return t.renderStarted(ctx, sessionID, st.WorkOrderID, st.PropertyAddress)
	}
	if st.JobStatus != session.JobStatusConfirming || st.WorkOrderID == "" {
		return Failf("There's no job waiting to start. Ask for today's jobs and pick one first."), nil
	}

	jobID := st.WorkOrderID
	if raw := stringArg(args, "jobId"); raw != "" && raw != jobID {
		insp, ok := t.env.resolveInspector(ctx, sessionID, &st, args)
		if !ok {
			return Failf("%s", identifyMessage), nil
		}
		resolved, resolveErr := t.env.resolveJobID(ctx, insp.ID, raw)
		if resolveErr != nil || resolved != jobID {
			return Failf("That doesn't match the job you confirmed. Reply 1 to start it, or ask for today's jobs to pick another."), nil
		}
	}

	if err := t.env.Domain.UpdateWorkOrderStatus(ctx, jobID, domain.WorkOrderInProgress); err != nil {
		return Result{}, fmt.Errorf("failed to start job %s: %w", jobID, err)
	}

	// Starting a job invalidates any location or task context left over
	// from a previous one.
	patch := session.ClearLocationContext().
		Merge(session.ClearTaskFlow()).
		Merge(session.Patch{
			session.FieldJobStatus:   session.JobStatusStarted,
			session.FieldJobEditMode: nil,
			session.FieldJobEditType: nil,
		})
	if err := t.env.merge(ctx, sessionID, patch); err != nil {
		return Result{}, err
	}

	return t.renderStarted(ctx, sessionID, jobID, st.PropertyAddress)
}

func (t *startJobTool) renderStarted(ctx context.Context, sessionID, jobID, address string) (Result, error) {
	locations, err := t.env.Domain.LocationsWithStatus(ctx, jobID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list locations for %s: %w", jobID, err)
	}
	if err := t.env.merge(ctx, sessionID, session.Patch{
		session.FieldLastMenu:   session.MenuLocations,
		session.FieldLastMenuAt: nowUTC(),
	}); err != nil {
		return Result{}, err
	}

	header := "Job started."
	if address != "" {
		header = fmt.Sprintf("Job started at %s.", address)
	}
	msg := RenderMenu(header+" Here are the locations to inspect:",
		LocationOptions(locations),
		[]string{GoBackLabel},
		"Reply with a number to open a location.")
	return OK(map[string]any{
		"jobId":     jobID,
		"locations": locations,
		"message":   msg,
	}), nil
}

// updateJobTool edits one work-order field. Session copies of the customer
// name and address are kept in sync so later prompts show the edited value.
type updateJobTool struct {
	env *Env
}

// NewUpdateJobTool builds the update_job_details tool.
func NewUpdateJobTool(env *Env) Tool {
	return &updateJobTool{env: env}
}

func (t *updateJobTool) Name() string { return "update_job_details" }

func (t *updateJobTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Update one detail of the current job: customer name, property address, scheduled time, or status.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"jobId": {Type: "string", Description: "Work order id; defaults to the current job"},
				"field": {Type: "string", Enum: []string{"customer", "address", "time", "status"}, Description: "Which field to change"},
				"value": {Type: "string", Description: "The new value"},
			},
			Required: []string{"field", "value"},
		},
	}
}

func (t *updateJobTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}

	jobID := stringArg(args, "jobId")
	if jobID == "" {
		jobID = st.WorkOrderID
	}
	if jobID == "" {
		return Failf("There's no job selected. Ask for today's jobs and pick one first."), nil
	}

	field := domain.UpdateField(strings.ToLower(strings.TrimSpace(stringArg(args, "field"))))
	value := strings.TrimSpace(stringArg(args, "value"))
	if value == "" {
		return Failf("Please provide the new value."), nil
	}

	switch field {
	case domain.UpdateCustomer, domain.UpdateAddress, domain.UpdateTime, domain.UpdateStatus:
	default:
		return Failf("I can update the customer name, property address, scheduled time, or status. Which one?"), nil
	}

	changed, err := t.env.Domain.UpdateWorkOrderDetails(ctx, jobID, field, value)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Failf("I couldn't find that job anymore. Ask for today's jobs again."), nil
		}
		return Result{}, fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	if !changed {
		return Failf("That value didn't change anything. Please check it and try again."), nil
	}

	patch := session.Patch{
		session.FieldJobEditMode: nil,
		session.FieldJobEditType: nil,
	}
	var label string
	switch field {
	case domain.UpdateCustomer:
		label = "customer name"
		if jobID == st.WorkOrderID {
			patch[session.FieldCustomerName] = value
		}
	case domain.UpdateAddress:
		label = "property address"
		if jobID == st.WorkOrderID {
			patch[session.FieldPropertyAddress] = value
			patch[session.FieldPostalCode] = ExtractPostalCode(value)
		}
	case domain.UpdateTime:
		label = "scheduled time"
	case domain.UpdateStatus:
		// Session jobStatus tracks conversation progress (confirming,
		// started), not the stored work-order status, so a status edit
		// leaves the session untouched.
		label = "status"
	}
	if err := t.env.merge(ctx, sessionID, patch); err != nil {
		return Result{}, err
	}

	return OK(map[string]any{
		"jobId":   jobID,
		"field":   string(field),
		"message": fmt.Sprintf("Updated the %s to %q.", label, value),
	}), nil
}
