package store

import (
	"database/sql"
	"fmt"
)

// Migration describes a single schema upgrade step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations are applied in order to databases created by older releases.
var Migrations = []Migration{
	{
		Version:     2,
		Description: "add not_before column for retry backoff scheduling",
		SQL:         `ALTER TABLE sync_queue ADD COLUMN not_before DATETIME`,
	},
	{
		Version:     3,
		Description: "add last_attempt_at column recording the most recent push attempt",
		SQL:         `ALTER TABLE sync_queue ADD COLUMN last_attempt_at DATETIME`,
	},
}

// migrationColumns maps migrations that add a sync_queue column to that
// column, so a fresh database whose base schema already carries it can skip
// the ALTER.
var migrationColumns = map[int]string{
	2: "not_before",
	3: "last_attempt_at",
}

// GetSchemaVersion returns the current schema version from the database.
func (s *Store) GetSchemaVersion() (int, error) {
	var version string
	err := s.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		// Table might not exist yet
		return 0, nil
	}
	var v int
	fmt.Sscanf(version, "%d", &v)
	return v, nil
}

func (s *Store) setSchemaVersion(version int) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}

func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.conn.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// RunMigrations runs any pending database migrations. Returns the number of
// migrations applied.
func (s *Store) RunMigrations() (int, error) {
	// Quick check without lock
	currentVersion, _ := s.GetSchemaVersion()
	if currentVersion >= SchemaVersion {
		return 0, nil
	}

	var run int
	err := s.withWriteLock(func() error {
		var err error
		run, err = s.runMigrationsLocked()
		return err
	})
	return run, err
}

func (s *Store) runMigrationsLocked() (int, error) {
	_, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	if err != nil {
		return 0, fmt.Errorf("create schema_info: %w", err)
	}

	currentVersion, err := s.GetSchemaVersion()
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}

	run := 0
	for _, m := range Migrations {
		if m.Version <= currentVersion {
			continue
		}
		// Fresh databases already carry the column; skip gracefully.
		if col, ok := migrationColumns[m.Version]; ok {
			exists, err := s.columnExists("sync_queue", col)
			if err != nil {
				return run, fmt.Errorf("check column %s: %w", col, err)
			}
			if exists {
				if err := s.setSchemaVersion(m.Version); err != nil {
					return run, err
				}
				currentVersion = m.Version
				continue
			}
		}
		if _, err := s.conn.Exec(m.SQL); err != nil {
			return run, fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := s.setSchemaVersion(m.Version); err != nil {
			return run, fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		currentVersion = m.Version
		run++
	}
	return run, nil
}
