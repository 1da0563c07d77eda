package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inspection/pkg/domain"
)

// taskMediaTool reports the media attached to one task.
type taskMediaTool struct {
	env *Env
}

// NewTaskMediaTool builds the get_task_media tool.
func NewTaskMediaTool(env *Env) Tool {
	return &taskMediaTool{env: env}
}

func (t *taskMediaTool) Name() string { return "get_task_media" }

func (t *taskMediaTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Show the photos and videos attached to a task. taskId defaults to the task currently being worked on.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"taskId": {Type: "string", Description: "Task id; defaults to the current task"},
			},
		},
	}
}

func (t *taskMediaTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, _, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}

	taskID := strings.TrimSpace(stringArg(args, "taskId"))
	if taskID == "" {
		taskID = st.CurrentTaskID
	}
	if taskID == "" {
		return Failf("Which task? Pick one from the task list first."), nil
	}

	info, err := t.env.Domain.TaskMedia(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Failf("I couldn't find that task."), nil
		}
		return Result{}, fmt.Errorf("failed to load task media: %w", err)
	}

	return OK(map[string]any{
		"media":   info,
		"message": renderTaskMedia(info),
	}), nil
}

func renderTaskMedia(info domain.TaskMediaInfo) string {
	if info.PhotoCount == 0 && info.VideoCount == 0 {
		return fmt.Sprintf("\"%s\" has no media yet.", info.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Media for \"%s\" (%d photo(s), %d video(s)):\n", info.Name, info.PhotoCount, info.VideoCount)
	for _, p := range info.Photos {
		b.WriteString("- " + p.URL)
		if p.Caption != "" {
			b.WriteString(" — " + p.Caption)
		}
		b.WriteString("\n")
	}
	for _, v := range info.Videos {
		b.WriteString("- " + v.URL + " (video)")
		if v.Caption != "" {
			b.WriteString(" — " + v.Caption)
		}
		b.WriteString("\n")
	}
	if info.Remarks != "" {
		b.WriteString("Remarks: " + info.Remarks)
	}
	return strings.TrimRight(b.String(), "\n")
}

// locationMediaTool reports media for every task under one location of the
// current job. The location may be given as a menu number or a name.
type locationMediaTool struct {
	env *Env
}

// NewLocationMediaTool builds the get_location_media tool.
func NewLocationMediaTool(env *Env) Tool {
	return &locationMediaTool{env: env}
}

func (t *locationMediaTool) Name() string { return "get_location_media" }

func (t *locationMediaTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Show the media attached to every task of a location. location may be a name or the number from the location menu.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"location": {Type: "string", Description: "Location name or menu number"},
			},
			Required: []string{"location"},
		},
	}
}

func (t *locationMediaTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, _, err := t.env.state(ctx)
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

	tasks, err := t.env.Domain.TasksByLocation(ctx, st.WorkOrderID, loc.Name, loc.ContractChecklistItemID, "")
	if err != nil {
		return Result{}, fmt.Errorf("failed to list tasks: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Media for %s:\n", loc.DisplayName)
	total := 0
	infos := make([]domain.TaskMediaInfo, 0, len(tasks))
	for _, task := range tasks {
		info, mediaErr := t.env.Domain.TaskMedia(ctx, task.ID)
		if mediaErr != nil {
			if errors.Is(mediaErr, domain.ErrNotFound) {
				continue
			}
			return Result{}, fmt.Errorf("failed to load media for task %s: %w", task.ID, mediaErr)
		}
		if info.PhotoCount == 0 && info.VideoCount == 0 {
			continue
		}
		infos = append(infos, info)
		total += info.PhotoCount + info.VideoCount
		fmt.Fprintf(&b, "\n%s — %d photo(s), %d video(s)\n", task.Action, info.PhotoCount, info.VideoCount)
		for _, p := range info.Photos {
			b.WriteString("- " + p.URL + "\n")
		}
		for _, v := range info.Videos {
			b.WriteString("- " + v.URL + " (video)\n")
		}
	}
	if total == 0 {
		return OKMessage(fmt.Sprintf("%s has no media yet.", loc.DisplayName)), nil
	}

	return OK(map[string]any{
		"location": loc.Name,
		"tasks":    infos,
		"message":  strings.TrimRight(b.String(), "\n"),
	}), nil
}

// deleteTaskMediaTool removes one media item from a task.
type deleteTaskMediaTool struct {
	env *Env
}

// NewDeleteTaskMediaTool builds the delete_task_media tool.
func NewDeleteTaskMediaTool(env *Env) Tool {
	return &deleteTaskMediaTool{env: env}
}

func (t *deleteTaskMediaTool) Name() string { return "delete_task_media" }

func (t *deleteTaskMediaTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: "Delete one photo or video from a task by its URL.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"taskId":    {Type: "string", Description: "Task id; defaults to the current task"},
				"url":       {Type: "string", Description: "The media URL to delete"},
				"mediaType": {Type: "string", Enum: []string{"photo", "video"}, Description: "Defaults to photo"},
			},
			Required: []string{"url"},
		},
	}
}

func (t *deleteTaskMediaTool) Exec(ctx context.Context, args map[string]any) (Result, error) {
	st, _, err := t.env.state(ctx)
	if err != nil {
		return Result{}, err
	}

	taskID := strings.TrimSpace(stringArg(args, "taskId"))
	if taskID == "" {
		taskID = st.CurrentTaskID
	}
	if taskID == "" {
		return Failf("Which task? Pick one from the task list first."), nil
	}
	url := strings.TrimSpace(stringArg(args, "url"))
	if url == "" {
		return Failf("Which photo or video? Send the media URL to delete."), nil
	}
	mediaType := strings.ToLower(strings.TrimSpace(stringArg(args, "mediaType")))
	if mediaType != domain.MediaVideo {
		mediaType = domain.MediaPhoto
	}

	deleted, err := t.env.Domain.DeleteTaskMedia(ctx, taskID, url, mediaType)
	if err != nil {
		return Result{}, fmt.Errorf("failed to delete media: %w", err)
	}
	if !deleted {
		return Failf("I couldn't find that media on the task. Check the URL with get_task_media."), nil
	}
	return OKMessage("Media deleted."), nil
}
