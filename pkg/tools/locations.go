package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inspection/pkg/domain"
	"inspection/pkg/session"
)

// notStartedMessage is the shared guard reply for location and task
// navigation attempted before a job is running.
const notStartedMessage = "You haven't started a job yet. Ask for today's jobs and confirm one first."

// requireStartedJob enforces the navigation guard. Guards are pure reads:
// repeating a guarded call yields the same refusal with no session change.
func requireStartedJob(st *session.State) (Result, bool) {
	if st.JobStatus != session.JobStatusStarted || st.WorkOrderID == "" {
		return Failf("%s", notStartedMessage), false
	}
	return Result{}, true
}

// resolveLocation maps a raw location reference (display name or menu
// ordinal) to the location row of the current job.
func resolveLocation(locations []domain.LocationStatus, raw string) (domain.LocationStatus, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.LocationStatus{}, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n >= 1 && n <= len(locations) {
			return locations[n-1], true
		}
		return domain.LocationStatus{}, false
	}
	for _, loc := range locations {
		if strings.EqualFold(loc.Name, raw) || strings.EqualFold(loc.DisplayName, raw) {
			return loc, true
		}
	}
	return domain.LocationStatus{}, false
}

// jobLocationsTool lists the checklist locations of the started job.
type jobLocationsTool struct {
	env *Env
}

// NewJobLocationsTool builds the get_job_locations tool.
func NewJobLocationsTool(env *Env) Tool {
	return &jobLocationsTool{env: env}
}

func (t *jobLocationsTool) Name() string { return "get_job_locations" }

func (t *jobLocationsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "List the locations of the current started job with completion status. Use when the inspector wants to see or return to the location list.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	}
}

func (t *jobLocationsTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}
	if res, ok := requireStartedJob(&st); !ok {
		return res, nil
	}

	locations, err := t.env.Domain.LocationsWithStatus(ctx, st.WorkOrderID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list locations: %w", err)
	}

	patch := session.ClearLocationContext().Merge(session.Patch{
		session.FieldLastMenu:   session.MenuLocations,
		session.FieldLastMenuAt: nowUTC(),
	})
	if err := t.env.merge(ctx, sessionID, patch); err != nil {
		return Result{}, err
	}

	msg := RenderMenu("Locations for this job:",
		LocationOptions(locations),
		[]string{GoBackLabel},
		"Reply with a number to open a location.")
	return OK(map[string]any{
		"locations": locations,
		"message":   msg,
	}), nil
}

// subLocationsTool opens one location: if it has sub-locations they are
// listed (and cached in the session for ordinal re-resolution); a single
// sub-location is descended into automatically; none falls through to the
// task list.
type subLocationsTool struct {
	env *Env
}

// NewSubLocationsTool builds the get_sub_locations tool.
func NewSubLocationsTool(env *Env) Tool {
	return &subLocationsTool{env: env}
}

func (t *subLocationsTool) Name() string { return "get_sub_locations" }

func (t *subLocationsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Open a location of the current job. Lists its sub-locations, or goes straight to tasks when the location has none. location may be a name or the number picked from the location menu.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"location": {Type: "string", Description: "Location name or menu number"},
			},
			Required: []string{"location"},
		},
	}
}

func (t *subLocationsTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}
	if res, ok := requireStartedJob(&st); !ok {
		return res, nil
	}

	locations, err := t.env.Domain.LocationsWithStatus(ctx, st.WorkOrderID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list locations: %w", err)
	}
	loc, ok := resolveLocation(locations, stringArg(args, "location"))
	if !ok {
		return Failf("I couldn't find that location. Reply with a number from the location list."), nil
	}

	subs, err := t.env.Domain.ChecklistLocationsForItem(ctx, loc.ContractChecklistItemID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list sub-locations: %w", err)
	}

	patch := session.Patch{
		session.FieldCurrentLocation:        loc.Name,
		session.FieldCurrentLocationID:      loc.ContractChecklistItemID,
		session.FieldCurrentSubLocationID:   nil,
		session.FieldCurrentSubLocationName: nil,
	}

	switch len(subs) {
	case 0:
		// No subdivisions: go straight to the task list.
		if err := t.env.merge(ctx, sessionID, patch); err != nil {
			return Result{}, err
		}
		return t.env.renderTasks(ctx, sessionID, st.WorkOrderID, loc.Name, loc.ContractChecklistItemID, "")
	case 1:
		// A single sub-location is not a choice; descend into it.
		sub := subs[0]
		patch[session.FieldCurrentSubLocationID] = sub.ID
		patch[session.FieldCurrentSubLocationName] = sub.Name
		if err := t.env.merge(ctx, sessionID, patch); err != nil {
			return Result{}, err
		}
		return t.env.renderTasks(ctx, sessionID, st.WorkOrderID, sub.Name, loc.ContractChecklistItemID, sub.ID)
	}

	refs := make([]session.SubLocationRef, len(subs))
	for i, sub := range subs {
		refs[i] = session.SubLocationRef{
			ID:             sub.ID,
			Name:           sub.Name,
			Status:         sub.Status,
			TotalTasks:     sub.TotalTasks,
			CompletedTasks: sub.CompletedTasks,
		}
	}
	cache := st.LocationSubLocations
	if cache == nil {
		cache = make(map[string][]session.SubLocationRef)
	}
	cache[loc.ContractChecklistItemID] = refs

	patch[session.FieldLocationSubLocations] = cache
	patch[session.FieldLastMenu] = session.MenuSubLocations
	patch[session.FieldLastMenuAt] = nowUTC()
	if err := t.env.merge(ctx, sessionID, patch); err != nil {
		return Result{}, err
	}

	msg := RenderMenu(fmt.Sprintf("%s has these areas:", loc.DisplayName),
		SubLocationOptions(refs),
		[]string{GoBackLabel},
		"Reply with a number to open an area.")
	return OK(map[string]any{
		"location":     loc.Name,
		"subLocations": subs,
		"message":      msg,
	}), nil
}

// tasksTool lists the tasks of the current location or a picked
// sub-location.
type tasksTool struct {
	env *Env
}

// NewTasksTool builds the get_tasks_for_location tool.
func NewTasksTool(env *Env) Tool {
	return &tasksTool{env: env}
}

func (t *tasksTool) Name() string { return "get_tasks_for_location" }

func (t *tasksTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "List the tasks of a location or sub-location of the current job. subLocation may be a name or the number picked from the area menu; omit it to use the current area.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"location":    {Type: "string", Description: "Location name; defaults to the current location"},
				"subLocation": {Type: "string", Description: "Sub-location name or menu number"},
			},
		},
	}
}

func (t *tasksTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, sessionID, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}
	if res, ok := requireStartedJob(&st); !ok {
		return res, nil
	}

	locationName := strings.TrimSpace(stringArg(args, "location"))
	itemID := st.CurrentLocationID
	if locationName != "" && !strings.EqualFold(locationName, st.CurrentLocation) {
		resolved, lookupErr := t.env.Domain.ChecklistItemIDByLocation(ctx, st.WorkOrderID, locationName)
		if lookupErr != nil {
			if errors.Is(lookupErr, domain.ErrNotFound) {
				return Failf("I couldn't find that location. Reply with a number from the location list."), nil
			}
			return Result{}, fmt.Errorf("failed to resolve location %q: %w", locationName, lookupErr)
		}
		itemID = resolved
	} else if locationName == "" {
		locationName = st.CurrentLocation
	}
	if itemID == "" {
		return Failf("Pick a location first. Reply with a number from the location list."), nil
	}

	subID := st.CurrentSubLocationID
	displayName := locationName
	if st.CurrentSubLocationName != "" {
		displayName = st.CurrentSubLocationName
	}
	if rawSub := strings.TrimSpace(stringArg(args, "subLocation")); rawSub != "" {
		ref, ok := resolveSubLocation(st.LocationSubLocations[itemID], rawSub)
		if !ok {
			return Failf("I couldn't find that area. Reply with a number from the area list."), nil
		}
		subID = ref.ID
		displayName = ref.Name
		if err := t.env.merge(ctx, sessionID, session.Patch{
			session.FieldCurrentSubLocationID:   ref.ID,
			session.FieldCurrentSubLocationName: ref.Name,
		}); err != nil {
			return Result{}, err
		}
	}

	return t.env.renderTasks(ctx, sessionID, st.WorkOrderID, displayName, itemID, subID)
}

// resolveSubLocation maps a raw reference (name or ordinal) against the
// cached sub-location list.
func resolveSubLocation(refs []session.SubLocationRef, raw string) (session.SubLocationRef, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n >= 1 && n <= len(refs) {
			return refs[n-1], true
		}
		return session.SubLocationRef{}, false
	}
	for _, ref := range refs {
		if strings.EqualFold(ref.Name, raw) {
			return ref, true
		}
	}
	return session.SubLocationRef{}, false
}

// renderTasks loads and renders the task menu for one (item, sub-location)
// scope and stamps the breadcrumb. Shared by every path that lands on a
// task list so the menu is identical regardless of how it was reached.
func (e *Env) renderTasks(ctx context.Context, sessionID, jobID, displayName, itemID, subLocationID string) (Result, error) {
	tasks, err := e.Domain.TasksByLocation(ctx, jobID, displayName, itemID, subLocationID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list tasks: %w", err)
	}

	if err := e.merge(ctx, sessionID, session.Patch{
		session.FieldLastMenu:   session.MenuTasks,
		session.FieldLastMenuAt: nowUTC(),
	}); err != nil {
		return Result{}, err
	}

	if len(tasks) == 0 {
		return OK(map[string]any{
			"tasks":   tasks,
			"message": fmt.Sprintf("%s has no tasks. Reply \"go back\" to return.", displayName),
		}), nil
	}

	msg := RenderMenu(fmt.Sprintf("Tasks for %s:", displayName),
		TaskOptions(tasks),
		[]string{GoBackLabel},
		"Reply with a number to work on a task.")
	return OK(map[string]any{
		"tasks":   tasks,
		"message": msg,
	}), nil
}

// markLocationCompleteTool closes out a location, but only once every task
// in it is already finished; it never force-completes tasks.
type markLocationCompleteTool struct {
	env *Env
}

// NewMarkLocationCompleteTool builds the mark_location_complete tool.
func NewMarkLocationCompleteTool(env *Env) Tool {
	return &markLocationCompleteTool{env: env}
}

func (t *markLocationCompleteTool) Name() string { return "mark_location_complete" }

func (t *markLocationCompleteTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Mark the current location complete. Refused while the location still has unfinished tasks.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"location": {Type: "string", Description: "Location name; defaults to the current location"},
			},
		},
	}
}

func (t *markLocationCompleteTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, _, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}
	if res, ok := requireStartedJob(&st); !ok {
		return res, nil
	}

	locationName := strings.TrimSpace(stringArg(args, "location"))
	itemID := st.CurrentLocationID
	if locationName == "" {
		locationName = st.CurrentLocation
	} else if !strings.EqualFold(locationName, st.CurrentLocation) {
		resolved, lookupErr := t.env.Domain.ChecklistItemIDByLocation(ctx, st.WorkOrderID, locationName)
		if lookupErr != nil {
			if errors.Is(lookupErr, domain.ErrNotFound) {
				return Failf("I couldn't find that location."), nil
			}
			return Result{}, fmt.Errorf("failed to resolve location %q: %w", locationName, lookupErr)
		}
		itemID = resolved
	}
	if itemID == "" {
		return Failf("Pick a location first. Reply with a number from the location list."), nil
	}

	remaining, err := t.env.Domain.IncompleteTaskCount(ctx, itemID, "")
	if err != nil {
		return Result{}, fmt.Errorf("failed to count incomplete tasks: %w", err)
	}
	if remaining > 0 {
		return Failf("%s still has %d unfinished task(s). Complete them first, then try again.", locationName, remaining), nil
	}

	if err := t.env.Domain.RecomputeAggregates(ctx, itemID, ""); err != nil {
		return Result{}, fmt.Errorf("failed to update location status: %w", err)
	}

	return OKMessage(fmt.Sprintf("%s is marked complete. Reply \"go back\" to see the other locations.", locationName)), nil
}
