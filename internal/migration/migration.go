package migration

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// RunMigrations applies every embedded *.up.sql file in filename order,
// recording applied versions in schema_migrations. Each file runs in its
// own transaction.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migration database handle is required")
	}

	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)`,
	); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		applied, err := isApplied(db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := applyOne(db, name); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Version values are embedded filenames, not user input, so they are
// inlined rather than bound: placeholder syntax differs across drivers.
func isApplied(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow(fmt.Sprintf(
		`SELECT COUNT(1) FROM schema_migrations WHERE version = '%s'`,
		name,
	)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", name, err)
	}
	return count > 0, nil
}

func applyOne(db *sql.DB, name string) error {
	script, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/"+name)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(script)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(
		`INSERT INTO schema_migrations (version, applied_at) VALUES ('%s', CURRENT_TIMESTAMP)`,
		name,
	)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
