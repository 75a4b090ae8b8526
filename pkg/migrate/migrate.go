// Package migrate applies the SQL schema with goose. Migrations ship inside
// the binary; a directory on disk can replace them for local work.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/reddragons/storefront-backend/pkg/logger"
)

// DefaultDir is where new migration files are written.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns the migration files under dir, or the embedded set when dir
// is empty.
func Source(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(embedded, "migrations")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Migrator runs goose commands against one database.
type Migrator struct {
	provider *goose.Provider
	logg     *logger.Logger
}

// New builds a migrator for db. driver is the db package driver name.
func New(db *sql.DB, driver string, fsys fs.FS, logg *logger.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if err := ValidateFS(fsys); err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialectFor(driver), db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider, logg: logg}, nil
}

func dialectFor(driver string) goose.Dialect {
	if driver == "sqlite" {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Commands accepted by Run.
const (
	CmdUp      = "up"
	CmdUpByOne = "up-by-one"
	CmdDown    = "down"
	CmdRedo    = "redo"
	CmdStatus  = "status"
	CmdReset   = "reset"
)

// Run executes one named command.
func (m *Migrator) Run(ctx context.Context, command string) error {
	switch command {
	case CmdUp:
		results, err := m.provider.Up(ctx)
		m.report(ctx, results...)
		return wrap(command, err)
	case CmdUpByOne:
		result, err := m.provider.UpByOne(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			m.logg.Info(ctx, "migrate.nothing_pending")
			return nil
		}
		m.report(ctx, result)
		return wrap(command, err)
	case CmdDown:
		result, err := m.provider.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			m.logg.Info(ctx, "migrate.nothing_applied")
			return nil
		}
		m.report(ctx, result)
		return wrap(command, err)
	case CmdRedo:
		down, err := m.provider.Down(ctx)
		m.report(ctx, down)
		if err != nil {
			return wrap(command, err)
		}
		up, err := m.provider.UpByOne(ctx)
		m.report(ctx, up)
		return wrap(command, err)
	case CmdReset:
		results, err := m.provider.DownTo(ctx, 0)
		m.report(ctx, results...)
		return wrap(command, err)
	case CmdStatus:
		return m.status(ctx)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

// MigrateTo moves the schema up or down to version (YYYYMMDDHHMMSS).
func (m *Migrator) MigrateTo(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}

	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil
	case current < target:
		results, err = m.provider.UpTo(ctx, target)
	default:
		results, err = m.provider.DownTo(ctx, target)
	}
	m.report(ctx, results...)
	return wrap("version "+version, err)
}

// Version reports the highest applied migration.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

func (m *Migrator) status(ctx context.Context) error {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return wrap(CmdStatus, err)
	}
	for _, st := range statuses {
		fields := map[string]any{
			"version": st.Source.Version,
			"file":    st.Source.Path,
			"state":   string(st.State),
		}
		if !st.AppliedAt.IsZero() {
			fields["applied_at"] = st.AppliedAt
		}
		m.logg.Info(m.logg.WithFields(ctx, fields), "migrate.status")
	}
	return nil
}

func (m *Migrator) report(ctx context.Context, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		entryCtx := m.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			m.logg.Error(entryCtx, "migrate.failed", res.Error)
			continue
		}
		m.logg.Info(entryCtx, "migrate.applied")
	}
}

func wrap(command string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}
