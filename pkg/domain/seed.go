package domain

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Seed fixture shapes. Dates accept the literal "today" so demo fixtures
// stay valid without editing.
//
//nolint:govet // fieldalignment: mirrors the YAML layout
type seedFile struct {
	Inspectors []seedInspector `yaml:"inspectors"`
	WorkOrders []seedWorkOrder `yaml:"work_orders"`
}

type seedInspector struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

//nolint:govet // fieldalignment: mirrors the YAML layout
type seedWorkOrder struct {
	ID             string         `yaml:"id"`
	Customer       string         `yaml:"customer"`
	Address        string         `yaml:"address"`
	ScheduledDate  string         `yaml:"scheduled_date"`
	ScheduledStart string         `yaml:"scheduled_start"`
	Status         string         `yaml:"status"`
	Priority       string         `yaml:"priority"`
	InspectionType string         `yaml:"inspection_type"`
	Notes          string         `yaml:"notes"`
	Inspector      string         `yaml:"inspector"`
	Locations      []seedLocation `yaml:"locations"`
}

//nolint:govet // fieldalignment: mirrors the YAML layout
type seedLocation struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	DisplayName  string            `yaml:"display_name"`
	Tasks        []seedTask        `yaml:"tasks"`
	SubLocations []seedSubLocation `yaml:"sub_locations"`
}

type seedSubLocation struct {
	ID    string     `yaml:"id"`
	Name  string     `yaml:"name"`
	Tasks []seedTask `yaml:"tasks"`
}

type seedTask struct {
	ID     string `yaml:"id"`
	Action string `yaml:"action"`
	Status string `yaml:"status"`
	Notes  string `yaml:"notes"`
}

// LoadSeed populates the database from a YAML fixture file. Existing rows
// with the same ids are replaced, so re-seeding is idempotent.
func (s *SQLiteStore) LoadSeed(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for _, insp := range seed.Inspectors {
		if insp.ID == "" {
			insp.ID = uuid.New().String()
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO inspectors (id, name, mobile_phone) VALUES (?, ?, ?)`,
			insp.ID, insp.Name, insp.Phone); err != nil {
			return fmt.Errorf("failed to seed inspector %s: %w", insp.Name, err)
		}
	}

	for _, wo := range seed.WorkOrders {
		if err := s.seedWorkOrder(ctx, &wo); err != nil {
			return err
		}
	}

	s.logger.Info("seeded %d inspector(s), %d work order(s) from %s",
		len(seed.Inspectors), len(seed.WorkOrders), path)
	return nil
}

func (s *SQLiteStore) seedWorkOrder(ctx context.Context, wo *seedWorkOrder) error {
	if wo.ID == "" {
		wo.ID = uuid.New().String()
	}
	date := wo.ScheduledDate
	if date == "" || date == "today" {
		date = time.Now().Format("2006-01-02")
	}
	status := wo.Status
	if status == "" {
		status = WorkOrderScheduled
	}
	priority := wo.Priority
	if priority == "" {
		priority = "normal"
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO work_orders
			(id, customer_name, property_address, scheduled_date, scheduled_start,
			 status, priority, inspection_type, notes, inspector_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wo.ID, wo.Customer, wo.Address, date, wo.ScheduledStart,
		status, priority, wo.InspectionType, wo.Notes, wo.Inspector); err != nil {
		return fmt.Errorf("failed to seed work order %s: %w", wo.ID, err)
	}

	for order, loc := range wo.Locations {
		if loc.ID == "" {
			loc.ID = uuid.New().String()
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO contract_checklist_items
				(id, work_order_id, name, display_name, status, sort_order)
			VALUES (?, ?, ?, ?, 'pending', ?)`,
			loc.ID, wo.ID, loc.Name, loc.DisplayName, order); err != nil {
			return fmt.Errorf("failed to seed location %s: %w", loc.Name, err)
		}
		for i, task := range loc.Tasks {
			if err := s.seedTask(ctx, loc.ID, "", &task, i); err != nil {
				return err
			}
		}
		for subOrder, sub := range loc.SubLocations {
			if sub.ID == "" {
				sub.ID = uuid.New().String()
			}
			if _, err := s.db.ExecContext(ctx, `
				INSERT OR REPLACE INTO sub_locations (id, item_id, name, status, sort_order)
				VALUES (?, ?, ?, 'pending', ?)`,
				sub.ID, loc.ID, sub.Name, subOrder); err != nil {
				return fmt.Errorf("failed to seed sub-location %s: %w", sub.Name, err)
			}
			for i, task := range sub.Tasks {
				if err := s.seedTask(ctx, loc.ID, sub.ID, &task, i); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *SQLiteStore) seedTask(ctx context.Context, itemID, subLocationID string, task *seedTask, order int) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	status := task.Status
	if status == "" {
		status = StatusPending
	}
	var subID any
	if subLocationID != "" {
		subID = subLocationID
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks (id, item_id, sub_location_id, action, status, notes, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, itemID, subID, task.Action, status, task.Notes, order); err != nil {
		return fmt.Errorf("failed to seed task %s: %w", task.Action, err)
	}
	return nil
}
