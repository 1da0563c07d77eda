package domain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"inspection/pkg/logx"
)

// SQLiteStore implements Access on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (creating if needed) the inspection database at path. Use
// ":memory:" for an ephemeral test database.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", path,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{
		db:     db,
		logger: logx.NewLogger("domain"),
	}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// TodayJobsForInspector lists the inspector's jobs scheduled for today,
// priority first, then scheduled start.
func (s *SQLiteStore) TodayJobsForInspector(ctx context.Context, inspectorID string) ([]JobSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_address, customer_name, scheduled_date, status, priority, notes
		FROM work_orders
		WHERE inspector_id = ? AND scheduled_date = date('now', 'localtime')
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
			scheduled_start, id`, inspectorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query today's jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []JobSummary
	for rows.Next() {
		var j JobSummary
		if err := rows.Scan(&j.ID, &j.PropertyAddress, &j.CustomerName, &j.ScheduledDate,
			&j.Status, &j.Priority, &j.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// WorkOrderByID loads one work order.
func (s *SQLiteStore) WorkOrderByID(ctx context.Context, jobID string) (WorkOrder, error) {
	var wo WorkOrder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, property_address, customer_name, scheduled_start, status, inspection_type
		FROM work_orders WHERE id = ?`, jobID).
		Scan(&wo.ID, &wo.PropertyAddress, &wo.CustomerName, &wo.ScheduledStart, &wo.Status, &wo.InspectionType)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkOrder{}, fmt.Errorf("work order %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return WorkOrder{}, fmt.Errorf("failed to load work order %s: %w", jobID, err)
	}
	return wo, nil
}

// UpdateWorkOrderStatus sets the work order status.
func (s *SQLiteStore) UpdateWorkOrderStatus(ctx context.Context, jobID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE work_orders SET status = ? WHERE id = ?`, status, jobID)
	if err != nil {
		return fmt.Errorf("failed to update work order %s status: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("work order %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// UpdateWorkOrderDetails edits one work-order field.
func (s *SQLiteStore) UpdateWorkOrderDetails(ctx context.Context, jobID string, field UpdateField, value string) (bool, error) {
	var column string
	switch field {
	case UpdateCustomer:
		column = "customer_name"
	case UpdateAddress:
		column = "property_address"
	case UpdateTime:
		column = "scheduled_start"
	case UpdateStatus:
		column = "status"
	default:
		return false, fmt.Errorf("unknown update field %q", field)
	}

	//nolint:gosec // column comes from the closed switch above, never from input
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE work_orders SET %s = ? WHERE id = ?`, column), value, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to update work order %s: %w", jobID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// WorkOrderProgress counts tasks by status across the whole work order.
func (s *SQLiteStore) WorkOrderProgress(ctx context.Context, jobID string) (Progress, error) {
	var p Progress
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN t.status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.status = 'in_progress' THEN 1 ELSE 0 END), 0)
		FROM tasks t
		JOIN contract_checklist_items i ON i.id = t.item_id
		WHERE i.work_order_id = ?`, jobID).
		Scan(&p.TotalTasks, &p.CompletedTasks, &p.PendingTasks, &p.InProgressTasks)
	if err != nil {
		return Progress{}, fmt.Errorf("failed to compute progress for %s: %w", jobID, err)
	}
	return p, nil
}

// LocationsWithStatus lists the job's checklist locations with task counts
// and any sub-locations.
func (s *SQLiteStore) LocationsWithStatus(ctx context.Context, jobID string) ([]LocationStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.name, i.display_name, i.status,
			(SELECT COUNT(*) FROM tasks t WHERE t.item_id = i.id),
			(SELECT COUNT(*) FROM tasks t WHERE t.item_id = i.id AND t.status = 'completed')
		FROM contract_checklist_items i
		WHERE i.work_order_id = ?
		ORDER BY i.sort_order, i.name`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations for %s: %w", jobID, err)
	}
	defer func() { _ = rows.Close() }()

	var locations []LocationStatus
	for rows.Next() {
		var loc LocationStatus
		var status string
		if err := rows.Scan(&loc.ContractChecklistItemID, &loc.Name, &loc.DisplayName, &status,
			&loc.TotalTasks, &loc.CompletedTasks); err != nil {
			return nil, fmt.Errorf("failed to scan location row: %w", err)
		}
		if loc.DisplayName == "" {
			loc.DisplayName = loc.Name
		}
		loc.IsCompleted = status == StatusCompleted ||
			(loc.TotalTasks > 0 && loc.CompletedTasks == loc.TotalTasks)
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range locations {
		subs, err := s.ChecklistLocationsForItem(ctx, locations[i].ContractChecklistItemID)
		if err != nil {
			return nil, err
		}
		locations[i].SubLocations = subs
	}
	return locations, nil
}

// ChecklistLocationsForItem lists the sub-locations of one checklist item.
func (s *SQLiteStore) ChecklistLocationsForItem(ctx context.Context, itemID string) ([]SubLocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.name, l.status,
			(SELECT COUNT(*) FROM tasks t WHERE t.sub_location_id = l.id),
			(SELECT COUNT(*) FROM tasks t WHERE t.sub_location_id = l.id AND t.status = 'completed')
		FROM sub_locations l
		WHERE l.item_id = ?
		ORDER BY l.sort_order, l.name`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub-locations for %s: %w", itemID, err)
	}
	defer func() { _ = rows.Close() }()

	var subs []SubLocation
	for rows.Next() {
		var sub SubLocation
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Status, &sub.TotalTasks, &sub.CompletedTasks); err != nil {
			return nil, fmt.Errorf("failed to scan sub-location row: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ChecklistItemIDByLocation resolves a location name to its checklist item id
// within one job. Matching is case-insensitive.
func (s *SQLiteStore) ChecklistItemIDByLocation(ctx context.Context, jobID, locationName string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM contract_checklist_items
		WHERE work_order_id = ? AND (LOWER(name) = LOWER(?) OR LOWER(display_name) = LOWER(?))
		ORDER BY sort_order LIMIT 1`, jobID, locationName, locationName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("location %q in job %s: %w", locationName, jobID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve location %q: %w", locationName, err)
	}
	return id, nil
}

// TasksByLocation lists tasks for a location. With a sub-location id only
// that sub-location's tasks are returned; otherwise tasks hanging directly
// on the item. The item id is resolved from the name when not supplied.
func (s *SQLiteStore) TasksByLocation(ctx context.Context, jobID, locationName, itemID, subLocationID string) ([]Task, error) {
	if itemID == "" {
		resolved, err := s.ChecklistItemIDByLocation(ctx, jobID, locationName)
		if err != nil {
			return nil, err
		}
		itemID = resolved
	}

	var (
		rows *sql.Rows
		err  error
	)
	if subLocationID != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT t.id, t.item_id, t.action, t.status, t.condition, t.notes,
				COALESCE(t.sub_location_id, ''), COALESCE(l.name, '')
			FROM tasks t LEFT JOIN sub_locations l ON l.id = t.sub_location_id
			WHERE t.item_id = ? AND t.sub_location_id = ?
			ORDER BY t.sort_order, t.action`, itemID, subLocationID)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT t.id, t.item_id, t.action, t.status, t.condition, t.notes,
				COALESCE(t.sub_location_id, ''), COALESCE(l.name, '')
			FROM tasks t LEFT JOIN sub_locations l ON l.id = t.sub_location_id
			WHERE t.item_id = ? AND t.sub_location_id IS NULL
			ORDER BY t.sort_order, t.action`, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks for item %s: %w", itemID, err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ItemID, &t.Action, &t.Status, &t.Condition, &t.Notes,
			&t.LocationID, &t.LocationName); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		if t.LocationName == "" {
			t.LocationName = locationName
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TaskByID loads one task.
func (s *SQLiteStore) TaskByID(ctx context.Context, taskID string) (Task, error) {
	var t Task
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.item_id, t.action, t.status, t.condition, t.notes,
			COALESCE(t.sub_location_id, ''), COALESCE(l.name, i.name)
		FROM tasks t
		JOIN contract_checklist_items i ON i.id = t.item_id
		LEFT JOIN sub_locations l ON l.id = t.sub_location_id
		WHERE t.id = ?`, taskID).
		Scan(&t.ID, &t.ItemID, &t.Action, &t.Status, &t.Condition, &t.Notes, &t.LocationID, &t.LocationName)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return Task{}, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	return t, nil
}

// UpdateTaskStatus sets the task status.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE id = ?`, status, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task %s status: %w", taskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return nil
}

// UpdateTaskCondition records the rated condition on the task itself.
func (s *SQLiteStore) UpdateTaskCondition(ctx context.Context, taskID, condition string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET condition = ? WHERE id = ?`, condition, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task %s condition: %w", taskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return nil
}

// CompleteAllTasksForLocation marks every task under the named location
// complete. Legacy bulk path: still a valid operation here, rejected at the
// interpreter level.
func (s *SQLiteStore) CompleteAllTasksForLocation(ctx context.Context, jobID, locationName, _ string) (bool, error) {
	itemID, err := s.ChecklistItemIDByLocation(ctx, jobID, locationName)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed' WHERE item_id = ? AND status != 'completed'`, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to bulk-complete tasks for %s: %w", itemID, err)
	}
	n, _ := res.RowsAffected()
	if err := s.RecomputeAggregates(ctx, itemID, ""); err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncompleteTaskCount counts not-yet-complete tasks under a checklist item,
// or a single sub-location when its id is given.
func (s *SQLiteStore) IncompleteTaskCount(ctx context.Context, itemID, subLocationID string) (int, error) {
	var (
		count int
		err   error
	)
	if subLocationID != "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE sub_location_id = ? AND status != 'completed'`,
			subLocationID).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE item_id = ? AND status != 'completed'`,
			itemID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count incomplete tasks: %w", err)
	}
	return count, nil
}

// RecomputeAggregates re-derives and persists the completion status of the
// sub-location (when given) and the owning checklist item. Complete means
// zero incomplete tasks remain and at least one task exists. Runs after any
// task transition, sequentially within the calling tool invocation.
func (s *SQLiteStore) RecomputeAggregates(ctx context.Context, itemID, subLocationID string) error {
	if subLocationID != "" {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE sub_locations SET status = CASE WHEN
				(SELECT COUNT(*) FROM tasks WHERE sub_location_id = ?) > 0 AND
				(SELECT COUNT(*) FROM tasks WHERE sub_location_id = ? AND status != 'completed') = 0
			THEN 'completed' ELSE 'pending' END
			WHERE id = ?`, subLocationID, subLocationID, subLocationID); err != nil {
			return fmt.Errorf("failed to recompute sub-location %s status: %w", subLocationID, err)
		}
	}

	if itemID == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE contract_checklist_items SET status = CASE WHEN
			(SELECT COUNT(*) FROM tasks WHERE item_id = ?) > 0 AND
			(SELECT COUNT(*) FROM tasks WHERE item_id = ? AND status != 'completed') = 0
		THEN 'completed' ELSE 'pending' END
		WHERE id = ?`, itemID, itemID, itemID); err != nil {
		return fmt.Errorf("failed to recompute item %s status: %w", itemID, err)
	}
	return nil
}

// InspectorByPhone finds an inspector by phone, matching stored numbers with
// or without the leading '+'.
func (s *SQLiteStore) InspectorByPhone(ctx context.Context, phone string) (Inspector, error) {
	bare := strings.TrimPrefix(phone, "+")
	var insp Inspector
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, mobile_phone FROM inspectors
		WHERE mobile_phone = ? OR mobile_phone = ? OR mobile_phone = ?
		LIMIT 1`, phone, bare, "+"+bare).
		Scan(&insp.ID, &insp.Name, &insp.MobilePhone)
	if errors.Is(err, sql.ErrNoRows) {
		return Inspector{}, fmt.Errorf("inspector with phone %s: %w", phone, ErrNotFound)
	}
	if err != nil {
		return Inspector{}, fmt.Errorf("failed to look up inspector by phone: %w", err)
	}
	return insp, nil
}

// InspectorByName finds an inspector by exact, case-insensitive name.
func (s *SQLiteStore) InspectorByName(ctx context.Context, name string) (Inspector, error) {
	var insp Inspector
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, mobile_phone FROM inspectors
		WHERE LOWER(name) = LOWER(?) LIMIT 1`, strings.TrimSpace(name)).
		Scan(&insp.ID, &insp.Name, &insp.MobilePhone)
	if errors.Is(err, sql.ErrNoRows) {
		return Inspector{}, fmt.Errorf("inspector %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Inspector{}, fmt.Errorf("failed to look up inspector by name: %w", err)
	}
	return insp, nil
}

// EntryForTask loads the inspector's entry for a task, media included.
func (s *SQLiteStore) EntryForTask(ctx context.Context, taskID, inspectorID string) (Entry, error) {
	var e Entry
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(task_id, ''), inspector_id, condition, cause, resolution, remarks, created_at
		FROM task_entries WHERE task_id = ? AND inspector_id = ?
		ORDER BY created_at DESC LIMIT 1`, taskID, inspectorID).
		Scan(&e.ID, &e.TaskID, &e.InspectorID, &e.Condition, &e.Cause, &e.Resolution, &e.Remarks, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("entry for task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to load entry for task %s: %w", taskID, err)
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		e.CreatedAt = ts
	}
	if err := s.loadEntryMedia(ctx, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *SQLiteStore) loadEntryMedia(ctx context.Context, e *Entry) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, caption, media_type FROM entry_media
		WHERE entry_id = ? ORDER BY sort_order, id`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load media for entry %s: %w", e.ID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var m Media
		var mediaType string
		if err := rows.Scan(&m.URL, &m.Caption, &mediaType); err != nil {
			return fmt.Errorf("failed to scan media row: %w", err)
		}
		if mediaType == MediaVideo {
			e.Videos = append(e.Videos, m)
		} else {
			e.Photos = append(e.Photos, m)
		}
	}
	return rows.Err()
}

// CreateEntry inserts a new entry, generating its id. TaskID may be empty
// for an orphan created before the task identity is known.
func (s *SQLiteStore) CreateEntry(ctx context.Context, entry Entry) (string, error) {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	var taskID any
	if entry.TaskID != "" {
		taskID = entry.TaskID
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_entries (id, task_id, inspector_id, condition, cause, resolution, remarks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, taskID, entry.InspectorID, entry.Condition, entry.Cause, entry.Resolution, entry.Remarks,
		createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("failed to create entry: %w", err)
	}
	return id, nil
}

// UpdateEntry applies the non-nil fields of the update.
func (s *SQLiteStore) UpdateEntry(ctx context.Context, entryID string, update EntryUpdate) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if update.Condition != nil {
		sets = append(sets, "condition = ?")
		args = append(args, *update.Condition)
	}
	if update.Cause != nil {
		sets = append(sets, "cause = ?")
		args = append(args, *update.Cause)
	}
	if update.Resolution != nil {
		sets = append(sets, "resolution = ?")
		args = append(args, *update.Resolution)
	}
	if update.Remarks != nil {
		sets = append(sets, "remarks = ?")
		args = append(args, *update.Remarks)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, entryID)

	//nolint:gosec // sets is built from the fixed fragments above
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE task_entries SET %s WHERE id = ?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("failed to update entry %s: %w", entryID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", entryID, ErrNotFound)
	}
	return nil
}

// LinkEntryToTask attaches an orphaned entry to its task.
func (s *SQLiteStore) LinkEntryToTask(ctx context.Context, entryID, taskID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_entries SET task_id = ? WHERE id = ?`, taskID, entryID)
	if err != nil {
		return fmt.Errorf("failed to link entry %s to task %s: %w", entryID, taskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", entryID, ErrNotFound)
	}
	return nil
}

// AddEntryMedia appends one media reference to an entry.
func (s *SQLiteStore) AddEntryMedia(ctx context.Context, entryID, url, caption, mediaType string) error {
	if mediaType != MediaPhoto && mediaType != MediaVideo {
		return fmt.Errorf("unknown media type %q", mediaType)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entry_media (entry_id, url, caption, media_type, sort_order)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM entry_media WHERE entry_id = ?))`,
		entryID, url, caption, mediaType, entryID)
	if err != nil {
		return fmt.Errorf("failed to add media to entry %s: %w", entryID, err)
	}
	return nil
}

// EntryPhotoCount counts photos on one entry.
func (s *SQLiteStore) EntryPhotoCount(ctx context.Context, entryID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entry_media WHERE entry_id = ? AND media_type = 'photo'`,
		entryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count photos for entry %s: %w", entryID, err)
	}
	return count, nil
}

// TaskMedia aggregates all media recorded for a task across entries.
func (s *SQLiteStore) TaskMedia(ctx context.Context, taskID string) (TaskMediaInfo, error) {
	task, err := s.TaskByID(ctx, taskID)
	if err != nil {
		return TaskMediaInfo{}, err
	}

	info := TaskMediaInfo{Name: task.Action}
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(remarks, '') FROM task_entries
		WHERE task_id = ? ORDER BY created_at DESC LIMIT 1`, taskID).Scan(&info.Remarks)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return TaskMediaInfo{}, fmt.Errorf("failed to load remarks for task %s: %w", taskID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.url, m.caption, m.media_type
		FROM entry_media m JOIN task_entries e ON e.id = m.entry_id
		WHERE e.task_id = ? ORDER BY m.sort_order, m.id`, taskID)
	if err != nil {
		return TaskMediaInfo{}, fmt.Errorf("failed to load media for task %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var m Media
		var mediaType string
		if err := rows.Scan(&m.URL, &m.Caption, &mediaType); err != nil {
			return TaskMediaInfo{}, fmt.Errorf("failed to scan media row: %w", err)
		}
		if mediaType == MediaVideo {
			info.Videos = append(info.Videos, m)
		} else {
			info.Photos = append(info.Photos, m)
		}
	}
	if err := rows.Err(); err != nil {
		return TaskMediaInfo{}, err
	}
	info.PhotoCount = len(info.Photos)
	info.VideoCount = len(info.Videos)
	return info, nil
}

// DeleteTaskMedia removes one media reference from a task by URL and type.
func (s *SQLiteStore) DeleteTaskMedia(ctx context.Context, taskID, url, mediaType string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM entry_media WHERE url = ? AND media_type = ? AND entry_id IN
			(SELECT id FROM task_entries WHERE task_id = ?)`, url, mediaType, taskID)
	if err != nil {
		return false, fmt.Errorf("failed to delete media for task %s: %w", taskID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
