package db

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
	"github.com/kimhsiao/gosauna/backend/internal/logging"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations is the migrations directory as an fs.FS rooted at the .sql files.
var Migrations fs.FS = mustSub(embedded, "migrations")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration is a row of schema_migrations.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// Migrator applies V<n>__<description>.up.sql files and their .down.sql
// counterparts in version order.
type Migrator struct {
	db    *sql.DB
	files fs.FS
}

func NewMigrator(db *sql.DB, files fs.FS) *Migrator {
	return &Migrator{db: db, files: files}
}

// Initialize creates schema_migrations if needed.
func (m *Migrator) Initialize() error {
	_, err := m.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "failed to create schema_migrations", err)
	}
	return nil
}

// CurrentVersion returns the highest applied version, 0 when none.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

func (m *Migrator) GetAppliedMigrations() ([]Migration, error) {
	rows, err := m.db.Query("SELECT version, applied_at, description, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []Migration
	for rows.Next() {
		var mig Migration
		var appliedAt int64
		if err := rows.Scan(&mig.Version, &appliedAt, &mig.Description, &mig.Checksum); err != nil {
			return nil, err
		}
		mig.AppliedAt = time.Unix(appliedAt, 0)
		applied = append(applied, mig)
	}
	return applied, rows.Err()
}

// script is one migration file on disk.
type script struct {
	version     int
	description string
	name        string
	content     []byte
}

func (s script) checksum() string {
	sum := sha256.Sum256(s.content)
	return hex.EncodeToString(sum[:])
}

// scripts loads the files ending in suffix, ordered by version. Files that do
// not follow the naming scheme are skipped.
func (m *Migrator) scripts(suffix string) ([]script, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMigration, "failed to read migrations directory", err)
	}

	var out []script
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		version, description, ok := strings.Cut(strings.TrimSuffix(name, suffix), "__")
		if !ok || !strings.HasPrefix(version, "V") {
			continue
		}
		n, err := strconv.Atoi(version[1:])
		if err != nil || n <= 0 {
			continue
		}
		content, err := fs.ReadFile(m.files, name)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrMigration, "failed to read "+name, err)
		}
		out = append(out, script{version: n, description: description, name: name, content: content})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// Up applies all pending migrations. An applied migration whose file has
// since changed is reported as an error and nothing is applied.
func (m *Migrator) Up() error {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "failed to get applied migrations", err)
	}
	checksums := make(map[int]string, len(applied))
	for _, mig := range applied {
		checksums[mig.Version] = mig.Checksum
	}

	ups, err := m.scripts(".up.sql")
	if err != nil {
		return err
	}

	for _, s := range ups {
		if sum, ok := checksums[s.version]; ok && sum != s.checksum() {
			return apperrors.New(apperrors.ErrMigration, fmt.Sprintf("migration V%d was modified after it was applied", s.version))
		}
	}

	for _, s := range ups {
		if _, ok := checksums[s.version]; ok {
			continue
		}
		err := m.inTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(string(s.content)); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at, description, checksum)
				VALUES (?, ?, ?, ?)`, s.version, time.Now().Unix(), s.description, s.checksum())
			return err
		})
		if err != nil {
			return apperrors.Wrap(apperrors.ErrMigration, fmt.Sprintf("failed to apply migration V%d", s.version), err)
		}
		logging.Debug("Applied migration", map[string]interface{}{"version": s.version, "description": s.description})
	}
	return nil
}

// Down rolls back the latest applied migration.
func (m *Migrator) Down() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "failed to read schema version", err)
	}
	if current == 0 {
		return apperrors.New(apperrors.ErrMigration, "no migrations to roll back")
	}

	downs, err := m.scripts(".down.sql")
	if err != nil {
		return err
	}
	for _, s := range downs {
		if s.version != current {
			continue
		}
		err := m.inTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(string(s.content)); err != nil {
				return err
			}
			_, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", current)
			return err
		})
		if err != nil {
			return apperrors.Wrap(apperrors.ErrMigration, fmt.Sprintf("failed to roll back migration V%d", current), err)
		}
		return nil
	}
	return apperrors.New(apperrors.ErrMigration, fmt.Sprintf("no rollback migration found for version %d", current))
}

func (m *Migrator) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
