// Package domain provides the data-access layer for inspection entities:
// work orders, checklist locations, sub-locations, tasks, task entries, and
// inspectors. The conversational core treats this package as an external
// capability set; everything it needs is expressed on the Access interface.
package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Work order status values.
const (
	WorkOrderScheduled  = "scheduled"
	WorkOrderInProgress = "in_progress"
	WorkOrderCompleted  = "completed"
)

// Task / location / checklist-item status values.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Media types stored on entries.
const (
	MediaPhoto = "photo"
	MediaVideo = "video"
)

// JobSummary is one row of the inspector's daily job list.
//
//nolint:govet // fieldalignment: mirrors the wire shape
type JobSummary struct {
	ID              string `json:"id"`
	PropertyAddress string `json:"property_address"`
	CustomerName    string `json:"customer_name"`
	ScheduledDate   string `json:"scheduled_date"`
	Status          string `json:"status"`
	Priority        string `json:"priority"`
	Notes           string `json:"notes"`
}

// WorkOrder is the full job record.
//
//nolint:govet // fieldalignment: mirrors the wire shape
type WorkOrder struct {
	ID              string `json:"id"`
	PropertyAddress string `json:"property_address"`
	CustomerName    string `json:"customer_name"`
	ScheduledStart  string `json:"scheduled_start"`
	Status          string `json:"status"`
	InspectionType  string `json:"inspection_type"`
}

// UpdateField names a work-order field the assistant may edit.
type UpdateField string

const (
	UpdateCustomer UpdateField = "customer"
	UpdateAddress  UpdateField = "address"
	UpdateTime     UpdateField = "time"
	UpdateStatus   UpdateField = "status"
)

// LocationStatus is one checklist location with its derived completion state.
//
//nolint:govet // fieldalignment: mirrors the wire shape
type LocationStatus struct {
	Name                    string        `json:"name"`
	DisplayName             string        `json:"displayName"`
	ContractChecklistItemID string        `json:"contractChecklistItemId"`
	IsCompleted             bool          `json:"isCompleted"`
	TotalTasks              int           `json:"totalTasks"`
	CompletedTasks          int           `json:"completedTasks"`
	SubLocations            []SubLocation `json:"subLocations,omitempty"`
}

// SubLocation is one subdivision of a checklist location.
//
//nolint:govet // fieldalignment: mirrors the wire shape
type SubLocation struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	TotalTasks     int    `json:"totalTasks"`
	CompletedTasks int    `json:"completedTasks"`
}

// Task is the atomic inspectable unit.
//
//nolint:govet // fieldalignment: mirrors the wire shape
type Task struct {
	ID           string `json:"id"`
	ItemID       string `json:"itemId"`
	Action       string `json:"action"`
	Status       string `json:"status"`
	Condition    string `json:"condition"`
	Notes        string `json:"notes"`
	LocationID   string `json:"locationId"`   // sub-location id, empty when task hangs on the item
	LocationName string `json:"locationName"` // sub-location or item display name
}

// Inspector identifies one field inspector.
type Inspector struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MobilePhone string `json:"mobilePhone"`
}

// Media is one uploaded photo or video reference.
type Media struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// Entry is the per-(task, inspector) findings record. TaskID may be empty
// for an orphaned entry created before the task identity was known; it is
// linked once resolved and never deleted.
//
//nolint:govet // fieldalignment: mirrors the wire shape
type Entry struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId,omitempty"`
	InspectorID string    `json:"inspectorId"`
	Condition   string    `json:"condition"`
	Cause       string    `json:"cause"`
	Resolution  string    `json:"resolution"`
	Remarks     string    `json:"remarks"`
	CreatedAt   time.Time `json:"createdAt"`
	Photos      []Media   `json:"photos"`
	Videos      []Media   `json:"videos"`
}

// EntryUpdate carries partial entry changes; nil pointers leave the field
// untouched.
type EntryUpdate struct {
	Condition  *string
	Cause      *string
	Resolution *string
	Remarks    *string
}

// TaskMediaInfo is the media summary for one task.
//
//nolint:govet // fieldalignment: mirrors the wire shape
type TaskMediaInfo struct {
	Name       string  `json:"name"`
	Remarks    string  `json:"remarks"`
	Photos     []Media `json:"photos"`
	Videos     []Media `json:"videos"`
	PhotoCount int     `json:"photoCount"`
	VideoCount int     `json:"videoCount"`
}

// Progress summarizes work-order completion.
type Progress struct {
	TotalTasks      int `json:"total_tasks"`
	CompletedTasks  int `json:"completed_tasks"`
	PendingTasks    int `json:"pending_tasks"`
	InProgressTasks int `json:"in_progress_tasks"`
}

// Access is the capability set the conversational core calls through. The
// core never reaches past this interface; transactional integrity of the
// status cascades is this layer's concern.
type Access interface {
	// Jobs.
	TodayJobsForInspector(ctx context.Context, inspectorID string) ([]JobSummary, error)
	WorkOrderByID(ctx context.Context, jobID string) (WorkOrder, error)
	UpdateWorkOrderStatus(ctx context.Context, jobID, status string) error
	UpdateWorkOrderDetails(ctx context.Context, jobID string, field UpdateField, value string) (bool, error)
	WorkOrderProgress(ctx context.Context, jobID string) (Progress, error)

	// Checklist hierarchy.
	LocationsWithStatus(ctx context.Context, jobID string) ([]LocationStatus, error)
	ChecklistLocationsForItem(ctx context.Context, itemID string) ([]SubLocation, error)
	ChecklistItemIDByLocation(ctx context.Context, jobID, locationName string) (string, error)
	TasksByLocation(ctx context.Context, jobID, locationName, itemID, subLocationID string) ([]Task, error)
	TaskByID(ctx context.Context, taskID string) (Task, error)
	UpdateTaskStatus(ctx context.Context, taskID, status string) error
	UpdateTaskCondition(ctx context.Context, taskID, condition string) error
	CompleteAllTasksForLocation(ctx context.Context, jobID, locationName, inspectorID string) (bool, error)
	IncompleteTaskCount(ctx context.Context, itemID, subLocationID string) (int, error)
	RecomputeAggregates(ctx context.Context, itemID, subLocationID string) error

	// Inspectors.
	InspectorByPhone(ctx context.Context, phone string) (Inspector, error)
	InspectorByName(ctx context.Context, name string) (Inspector, error)

	// Entries and media.
	EntryForTask(ctx context.Context, taskID, inspectorID string) (Entry, error)
	CreateEntry(ctx context.Context, entry Entry) (string, error)
	UpdateEntry(ctx context.Context, entryID string, update EntryUpdate) error
	LinkEntryToTask(ctx context.Context, entryID, taskID string) error
	AddEntryMedia(ctx context.Context, entryID, url, caption, mediaType string) error
	EntryPhotoCount(ctx context.Context, entryID string) (int, error)
	TaskMedia(ctx context.Context, taskID string) (TaskMediaInfo, error)
	DeleteTaskMedia(ctx context.Context, taskID, url, mediaType string) (bool, error)
}
