package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"summcorr/internal/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations in version order
type Migrator struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *sqlx.DB, logger *zerolog.Logger) *Migrator {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Migrator{db: db, logger: l}
}

// MigrationFile is one versioned schema file
type MigrationFile struct {
	Version string
	Name    string
	SQL     string
}

// Checksum is the SHA256 of the migration text
func (f MigrationFile) Checksum() string {
	return calculateChecksum([]byte(f.SQL))
}

// Up executes all pending migrations. An applied migration whose text has
// changed since is an error.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return errors.DatabaseError("failed to get applied migrations", err)
	}

	files, err := migrationFiles()
	if err != nil {
		return errors.DatabaseError("failed to find migration files", err)
	}

	for _, file := range files {
		if checksum, ok := applied[file.Version]; ok {
			if checksum != file.Checksum() {
				return errors.DatabaseError(fmt.Sprintf("migration %s changed after it was applied", file.Version), nil)
			}
			continue
		}
		if err := m.apply(ctx, file); err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to apply migration %s", file.Version), err)
		}
		m.logger.Info().Str("version", file.Version).Str("name", file.Name).Msg("applied migration")
	}
	return nil
}

// Status maps every known migration version to whether it has been applied
func (m *Migrator) Status(ctx context.Context) (map[string]bool, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, errors.DatabaseError("failed to get applied migrations", err)
	}
	files, err := migrationFiles()
	if err != nil {
		return nil, errors.DatabaseError("failed to find migration files", err)
	}

	status := make(map[string]bool, len(files))
	for _, f := range files {
		_, ok := applied[f.Version]
		status[f.Version] = ok
	}
	return status, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return errors.DatabaseError("failed to create migrations table", err)
	}
	return nil
}

func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, file MigrationFile) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements(file.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)"), file.Version, file.Checksum()); err != nil {
		return err
	}
	return tx.Commit()
}

func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// migrationFiles lists embedded files named <version>_<name>.sql sorted by version
func migrationFiles() ([]MigrationFile, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}

	var files []MigrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(strings.TrimSuffix(e.Name(), ".sql"), "_", 2)
		if len(parts) < 2 {
			continue
		}
		data, err := migrationFS.ReadFile(path.Join("migrations", e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, MigrationFile{Version: parts[0], Name: parts[1], SQL: string(data)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	return files, nil
}

// statements splits a migration on semicolons; migrations hold no literals containing one
func statements(sql string) []string {
	var out []string
	for _, s := range strings.Split(sql, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
