package domain

import (
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion defines the schema version for migration support.
const CurrentSchemaVersion = 1

// schemaDDL creates the inspection schema. Idempotent.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS inspectors (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	mobile_phone TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS work_orders (
	id               TEXT PRIMARY KEY,
	customer_name    TEXT NOT NULL DEFAULT '',
	property_address TEXT NOT NULL DEFAULT '',
	scheduled_date   TEXT NOT NULL DEFAULT '',
	scheduled_start  TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'scheduled',
	priority         TEXT NOT NULL DEFAULT 'normal',
	inspection_type  TEXT NOT NULL DEFAULT '',
	notes            TEXT NOT NULL DEFAULT '',
	inspector_id     TEXT REFERENCES inspectors(id)
);

CREATE TABLE IF NOT EXISTS contract_checklist_items (
	id            TEXT PRIMARY KEY,
	work_order_id TEXT NOT NULL REFERENCES work_orders(id),
	name          TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	sort_order    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sub_locations (
	id         TEXT PRIMARY KEY,
	item_id    TEXT NOT NULL REFERENCES contract_checklist_items(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	item_id         TEXT NOT NULL REFERENCES contract_checklist_items(id),
	sub_location_id TEXT REFERENCES sub_locations(id),
	action          TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	condition       TEXT NOT NULL DEFAULT '',
	notes           TEXT NOT NULL DEFAULT '',
	sort_order      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS task_entries (
	id           TEXT PRIMARY KEY,
	task_id      TEXT REFERENCES tasks(id),
	inspector_id TEXT NOT NULL,
	condition    TEXT NOT NULL DEFAULT '',
	cause        TEXT NOT NULL DEFAULT '',
	resolution   TEXT NOT NULL DEFAULT '',
	remarks      TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entry_media (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id   TEXT NOT NULL REFERENCES task_entries(id),
	url        TEXT NOT NULL,
	caption    TEXT NOT NULL DEFAULT '',
	media_type TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_items_work_order ON contract_checklist_items(work_order_id);
CREATE INDEX IF NOT EXISTS idx_sub_locations_item ON sub_locations(item_id);
CREATE INDEX IF NOT EXISTS idx_tasks_item ON tasks(item_id);
CREATE INDEX IF NOT EXISTS idx_tasks_sub_location ON tasks(sub_location_id);
CREATE INDEX IF NOT EXISTS idx_entries_task ON task_entries(task_id);
CREATE INDEX IF NOT EXISTS idx_media_entry ON entry_media(entry_id);
`

// initializeSchema ensures the database schema exists and is current.
func initializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var version int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version == 0 {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, CurrentSchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, CurrentSchemaVersion)
	}
	return nil
}
