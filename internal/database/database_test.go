package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"

	"github.com/Additional-Code/bloom/internal/config"
)

func TestOpen_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "bloom.db")
	conns, err := Open(config.Database{Driver: "sqlite", WriterDSN: dsn, ReaderDSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	assert.Same(t, conns.Writer, conns.Reader)
	assert.Equal(t, dialect.SQLite, conns.Writer.Dialect().Name())
	assert.Equal(t, 1, conns.Writer.DB.Stats().MaxOpenConnections)
	require.NoError(t, pingContext(context.Background(), conns.Writer))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(config.Database{Driver: "oracle", WriterDSN: "x"})
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Open(config.Database{Driver: "mysql"})
	assert.ErrorContains(t, err, "empty DSN")
}

func TestSelectDialect(t *testing.T) {
	for driver, want := range map[string]dialect.Name{
		"postgres": dialect.PG,
		"pgx":      dialect.PG,
		"mysql":    dialect.MySQL,
		"sqlite":   dialect.SQLite,
	} {
		d, err := selectDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, want, d.Name(), driver)
	}
}
