package migration

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	_ "github.com/lib/pq"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Migrator manages database migrations
type Migrator struct {
	db         *sql.DB
	migrations []Migration
}

// NewMigrator creates a new migrator
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: getAllMigrations(),
	}
}

// Run applies all pending migrations
func (m *Migrator) Run() error {
	log := logger.Global()

	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("reading current version: %w", err)
	}

	log.Info().Int("current_version", currentVersion).Msg("Current database version")

	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})

	for _, migration := range m.migrations {
		if migration.Version > currentVersion {
			log.Info().
				Int("version", migration.Version).
				Str("name", migration.Name).
				Msg("Applying migration")

			if err := m.runMigration(migration); err != nil {
				return fmt.Errorf("applying migration %d (%s): %w",
					migration.Version, migration.Name, err)
			}

			log.Info().
				Int("version", migration.Version).
				Str("name", migration.Name).
				Msg("Migration applied")
		}
	}

	return nil
}

// createMigrationsTable creates the migration bookkeeping table
func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`
	_, err := m.db.Exec(query)
	return err
}

// getCurrentVersion reads the highest applied version
func (m *Migrator) getCurrentVersion() (int, error) {
	var version int
	query := "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"
	err := m.db.QueryRow(query).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigration applies a single migration inside a transaction
func (m *Migrator) runMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.Up); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)",
		migration.Version, time.Now(),
	); err != nil {
		return err
	}

	return tx.Commit()
}
