package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embedded embed.FS

// Migration represents a database migration
type Migration struct {
	ID string
	Up func(*gorm.DB) error
}

// Migrator applies registered migrations once each, in ID order.
type Migrator struct {
	migrations map[string]Migration
	log        *slog.Logger
}

// New creates a migrator preloaded with the embedded SQL migrations.
func New(log *slog.Logger) (*Migrator, error) {
	m := &Migrator{migrations: make(map[string]Migration), log: log}
	if err := m.LoadSQL(embedded, "sql"); err != nil {
		return nil, err
	}
	return m, nil
}

// Register adds a new migration to the registry
func (m *Migrator) Register(id string, up func(*gorm.DB) error) {
	m.migrations[id] = Migration{ID: id, Up: up}
}

// IDs returns the registered migration IDs in execution order.
func (m *Migrator) IDs() []string {
	ids := make([]string, 0, len(m.migrations))
	for id := range m.migrations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	id TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Run executes all pending migrations
func (m *Migrator) Run(db *gorm.DB) error {
	if err := db.Exec(createMigrationsTable).Error; err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var executed []string
	if err := db.Raw("SELECT id FROM schema_migrations").Scan(&executed).Error; err != nil {
		return fmt.Errorf("failed to get executed migrations: %w", err)
	}
	done := make(map[string]bool, len(executed))
	for _, id := range executed {
		done[id] = true
	}

	for _, id := range m.IDs() {
		if done[id] {
			continue
		}
		m.log.Info("Running migration", "id", id)
		if err := m.migrations[id].Up(db); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", id, err)
		}
		if err := db.Exec("INSERT INTO schema_migrations (id) VALUES (?)", id).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", id, err)
		}
		m.log.Info("Completed migration", "id", id)
	}

	return nil
}

// LoadSQL registers every .sql file in dir of fsys as a migration named after the file.
func (m *Migrator) LoadSQL(fsys fs.FS, dir string) error {
	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
		}
		stmt := string(content)
		m.Register(strings.TrimSuffix(file.Name(), ".sql"), func(db *gorm.DB) error {
			return db.Exec(stmt).Error
		})
	}

	return nil
}
