package store

import (
	"context"
	"fmt"
	"strings"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS students (
	id          TEXT PRIMARY KEY,
	roll_no     TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	class       TEXT NOT NULL DEFAULT '',
	photo_url   TEXT NOT NULL DEFAULT '',
	enrolled_at {{ts}} NULL,
	created_at  {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance (
	id          TEXT PRIMARY KEY,
	student_id  TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	date        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'Present',
	created_at  {{ts}} NOT NULL,
	UNIQUE (student_id, date)
);

CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date);
CREATE INDEX IF NOT EXISTS idx_students_name ON students(name);
`

// Migrate creates the students and attendance tables if they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if d.Driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}
	schema := strings.ReplaceAll(schemaTemplate, "{{ts}}", ts)

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
