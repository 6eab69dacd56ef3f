package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/database"
)

//go:embed sql
var migrations embed.FS

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// Migrator wraps goose operations over the embedded migrations of one dialect.
type Migrator struct {
	db     *bun.DB
	dir    string
	logger *zap.Logger
}

// New constructs a goose-backed migrator.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	if conns == nil {
		return nil, errors.New("migrations require ORDERS_BACKEND=database")
	}

	dialect, dir, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: logger.Sugar()})
	if err := goose.SetDialect(dialect); err != nil {
		return nil, err
	}

	return &Migrator{
		db:     conns.Writer,
		dir:    dir,
		logger: logger,
	}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := goose.UpContext(ctx, m.db.DB, m.dir); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")
			return nil
		}
		return err
	}

	m.logger.Info("migrations applied", zap.String("dir", m.dir))
	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		if err := goose.DownToContext(ctx, m.db.DB, m.dir, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))
		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db.DB, m.dir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
	}

	m.logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

// Version reports the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, m.db.DB)
}

func gooseDialect(driver string) (dialect, dir string, err error) {
	switch driver {
	case "postgres", "pgx":
		return "postgres", "sql/postgres", nil
	case "mysql":
		return "mysql", "sql/mysql", nil
	case "sqlite":
		return "sqlite3", "sql/sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	return strings.Contains(err.Error(), "no migrations")
}

type gooseLogger struct {
	logger *zap.SugaredLogger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.logger.Debugf(strings.TrimSpace(format), v...)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.logger.Fatalf(strings.TrimSpace(format), v...)
}
