// Package session provides the durable per-conversation state record and the
// store that holds it. A session is keyed by phone number or chat session id;
// merges are field-granular and last-write-wins, which keeps duplicate
// webhook deliveries harmless.
package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"inspection/pkg/taskflow"
)

// JobStatus tracks where the inspector is in the job confirmation flow.
type JobStatus string

const (
	JobStatusNone       JobStatus = ""
	JobStatusConfirming JobStatus = "confirming"
	JobStatusStarted    JobStatus = "started"
)

// Menu identifies the most recently rendered numbered menu. It is the
// arbiter for how a bare numeric reply is interpreted.
type Menu string

const (
	MenuNone         Menu = ""
	MenuJobs         Menu = "jobs"
	MenuConfirm      Menu = "confirm"
	MenuLocations    Menu = "locations"
	MenuSubLocations Menu = "sublocations"
	MenuTasks        Menu = "tasks"
)

// EditMode tracks the job-edit sub-flow.
type EditMode string

const (
	EditModeNone       EditMode = ""
	EditModeMenu       EditMode = "menu"
	EditModeAwaitValue EditMode = "await_value"
)

// EditType names the job field being edited.
type EditType string

const (
	EditTypeNone     EditType = ""
	EditTypeCustomer EditType = "customer"
	EditTypeAddress  EditType = "address"
	EditTypeTime     EditType = "time"
	EditTypeStatus   EditType = "status"
)

// SubLocationRef is one cached sub-location row, kept in the session so guard
// re-prompts do not re-query the domain layer.
type SubLocationRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	TotalTasks     int    `json:"totalTasks"`
	CompletedTasks int    `json:"completedTasks"`
}

// State is the full conversational state for one session.
//
//nolint:govet // fieldalignment: grouped by concern, mirroring the conversation model
type State struct {
	// Identity.
	InspectorID    string `json:"inspectorId"`
	InspectorName  string `json:"inspectorName"`
	InspectorPhone string `json:"inspectorPhone"`

	// Job context.
	WorkOrderID     string    `json:"workOrderId"`
	CustomerName    string    `json:"customerName"`
	PropertyAddress string    `json:"propertyAddress"`
	PostalCode      string    `json:"postalCode"`
	JobStatus       JobStatus `json:"jobStatus"`

	// Location context.
	CurrentLocation        string                      `json:"currentLocation"`
	CurrentLocationID      string                      `json:"currentLocationId"`
	CurrentSubLocationID   string                      `json:"currentSubLocationId"`
	CurrentSubLocationName string                      `json:"currentSubLocationName"`
	LocationSubLocations   map[string][]SubLocationRef `json:"locationSubLocations"`

	// Task-flow context.
	CurrentTaskID           string             `json:"currentTaskId"`
	CurrentTaskName         string             `json:"currentTaskName"`
	CurrentTaskItemID       string             `json:"currentTaskItemId"`
	CurrentTaskEntryID      string             `json:"currentTaskEntryId"`
	CurrentTaskCondition    taskflow.Condition `json:"currentTaskCondition"`
	CurrentTaskLocationID   string             `json:"currentTaskLocationId"`
	CurrentTaskLocationName string             `json:"currentTaskLocationName"`
	TaskFlowStage           taskflow.Stage     `json:"taskFlowStage"`
	PendingTaskCause        string             `json:"pendingTaskCause"`
	PendingTaskResolution   string             `json:"pendingTaskResolution"`
	PendingTaskRemarks      string             `json:"pendingTaskRemarks"`

	// Navigation breadcrumbs.
	LastMenu   Menu      `json:"lastMenu"`
	LastMenuAt time.Time `json:"lastMenuAt"`

	// Job-edit sub-mode.
	JobEditMode EditMode `json:"jobEditMode"`
	JobEditType EditType `json:"jobEditType"`
}

// Field names one mergeable session field. The values are the hash keys used
// by the stores.
type Field string

const (
	FieldInspectorID    Field = "inspectorId"
	FieldInspectorName  Field = "inspectorName"
	FieldInspectorPhone Field = "inspectorPhone"

	FieldWorkOrderID     Field = "workOrderId"
	FieldCustomerName    Field = "customerName"
	FieldPropertyAddress Field = "propertyAddress"
	FieldPostalCode      Field = "postalCode"
	FieldJobStatus       Field = "jobStatus"

	FieldCurrentLocation        Field = "currentLocation"
	FieldCurrentLocationID      Field = "currentLocationId"
	FieldCurrentSubLocationID   Field = "currentSubLocationId"
	FieldCurrentSubLocationName Field = "currentSubLocationName"
	FieldLocationSubLocations   Field = "locationSubLocations"

	FieldCurrentTaskID           Field = "currentTaskId"
	FieldCurrentTaskName         Field = "currentTaskName"
	FieldCurrentTaskItemID       Field = "currentTaskItemId"
	FieldCurrentTaskEntryID      Field = "currentTaskEntryId"
	FieldCurrentTaskCondition    Field = "currentTaskCondition"
	FieldCurrentTaskLocationID   Field = "currentTaskLocationId"
	FieldCurrentTaskLocationName Field = "currentTaskLocationName"
	FieldTaskFlowStage           Field = "taskFlowStage"
	FieldPendingTaskCause        Field = "pendingTaskCause"
	FieldPendingTaskResolution   Field = "pendingTaskResolution"
	FieldPendingTaskRemarks      Field = "pendingTaskRemarks"

	FieldLastMenu   Field = "lastMenu"
	FieldLastMenuAt Field = "lastMenuAt"

	FieldJobEditMode Field = "jobEditMode"
	FieldJobEditType Field = "jobEditType"
)

// Patch is a set of field updates. A nil value clears the field.
type Patch map[Field]any

// taskFlowFields are cleared together when a task flow ends or is reset.
//
//nolint:gochecknoglobals // Fixed field group
var taskFlowFields = []Field{
	FieldCurrentTaskID, FieldCurrentTaskName, FieldCurrentTaskItemID,
	FieldCurrentTaskEntryID, FieldCurrentTaskCondition,
	FieldCurrentTaskLocationID, FieldCurrentTaskLocationName,
	FieldTaskFlowStage, FieldPendingTaskCause, FieldPendingTaskResolution,
	FieldPendingTaskRemarks,
}

// locationFields are cleared when job context changes.
//
//nolint:gochecknoglobals // Fixed field group
var locationFields = []Field{
	FieldCurrentLocation, FieldCurrentLocationID,
	FieldCurrentSubLocationID, FieldCurrentSubLocationName,
	FieldLocationSubLocations,
}

// jobFields are cleared on a full job reset.
//
//nolint:gochecknoglobals // Fixed field group
var jobFields = []Field{
	FieldWorkOrderID, FieldCustomerName, FieldPropertyAddress,
	FieldPostalCode, FieldJobStatus, FieldJobEditMode, FieldJobEditType,
}

// ClearTaskFlow returns a patch clearing all task-flow fields.
func ClearTaskFlow() Patch {
	return clearFields(taskFlowFields)
}

// ClearLocationContext returns a patch clearing location navigation fields.
func ClearLocationContext() Patch {
	return clearFields(locationFields)
}

// ClearJobContext returns a patch clearing job, location, and task fields,
// leaving inspector identity intact.
func ClearJobContext() Patch {
	p := clearFields(jobFields)
	for f, v := range clearFields(locationFields) {
		p[f] = v
	}
	for f, v := range clearFields(taskFlowFields) {
		p[f] = v
	}
	return p
}

func clearFields(fields []Field) Patch {
	p := make(Patch, len(fields))
	for _, f := range fields {
		p[f] = nil
	}
	return p
}

// Merge applies additional updates into the patch.
func (p Patch) Merge(other Patch) Patch {
	for f, v := range other {
		p[f] = v
	}
	return p
}

// EncodeValue converts a patch value to its stored string form.
func EncodeValue(f Field, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case JobStatus:
		return string(t), nil
	case Menu:
		return string(t), nil
	case EditMode:
		return string(t), nil
	case EditType:
		return string(t), nil
	case taskflow.Stage:
		return string(t), nil
	case taskflow.Condition:
		return string(t), nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case int:
		return strconv.Itoa(t), nil
	case map[string][]SubLocationRef:
		data, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", f, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported value type %T for field %s", v, f)
	}
}

// applyField decodes one stored field into the state. Unknown fields are
// ignored so old records survive schema growth.
func (s *State) applyField(f Field, raw string) error {
	switch f {
	case FieldInspectorID:
		s.InspectorID = raw
	case FieldInspectorName:
		s.InspectorName = raw
	case FieldInspectorPhone:
		s.InspectorPhone = raw
	case FieldWorkOrderID:
		s.WorkOrderID = raw
	case FieldCustomerName:
		s.CustomerName = raw
	case FieldPropertyAddress:
		s.PropertyAddress = raw
	case FieldPostalCode:
		s.PostalCode = raw
	case FieldJobStatus:
		s.JobStatus = JobStatus(raw)
	case FieldCurrentLocation:
		s.CurrentLocation = raw
	case FieldCurrentLocationID:
		s.CurrentLocationID = raw
	case FieldCurrentSubLocationID:
		s.CurrentSubLocationID = raw
	case FieldCurrentSubLocationName:
		s.CurrentSubLocationName = raw
	case FieldLocationSubLocations:
		if raw == "" {
			s.LocationSubLocations = nil
			return nil
		}
		m := make(map[string][]SubLocationRef)
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return fmt.Errorf("failed to decode %s: %w", f, err)
		}
		s.LocationSubLocations = m
	case FieldCurrentTaskID:
		s.CurrentTaskID = raw
	case FieldCurrentTaskName:
		s.CurrentTaskName = raw
	case FieldCurrentTaskItemID:
		s.CurrentTaskItemID = raw
	case FieldCurrentTaskEntryID:
		s.CurrentTaskEntryID = raw
	case FieldCurrentTaskCondition:
		cond, err := taskflow.ParseCondition(raw)
		if err != nil {
			return err
		}
		s.CurrentTaskCondition = cond
	case FieldCurrentTaskLocationID:
		s.CurrentTaskLocationID = raw
	case FieldCurrentTaskLocationName:
		s.CurrentTaskLocationName = raw
	case FieldTaskFlowStage:
		stage, err := taskflow.ParseStage(raw)
		if err != nil {
			return err
		}
		s.TaskFlowStage = stage
	case FieldPendingTaskCause:
		s.PendingTaskCause = raw
	case FieldPendingTaskResolution:
		s.PendingTaskResolution = raw
	case FieldPendingTaskRemarks:
		s.PendingTaskRemarks = raw
	case FieldLastMenu:
		s.LastMenu = Menu(raw)
	case FieldLastMenuAt:
		if raw == "" {
			s.LastMenuAt = time.Time{}
			return nil
		}
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", f, err)
		}
		s.LastMenuAt = ts
	case FieldJobEditMode:
		s.JobEditMode = EditMode(raw)
	case FieldJobEditType:
		s.JobEditType = EditType(raw)
	}
	return nil
}

// DecodeState builds a State from stored hash fields. Fields that fail to
// decode are skipped rather than poisoning the whole session.
func DecodeState(raw map[string]string) State {
	var s State
	for f, v := range raw {
		// Best effort per field: a corrupt value degrades to its zero value.
		_ = s.applyField(Field(f), v)
	}
	return s
}
