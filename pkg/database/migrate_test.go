package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnhub-api/internal/migrations"
	"github.com/noah-isme/learnhub-api/pkg/config"
)

func TestMigrateUsesEmbeddedDirectory(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Migrate(context.Background(), nil, "schema_versions"))
	assert.Equal(t, ".", gotDir)
}

func TestMigrateWrapsFailure(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()
	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }

	err := Migrate(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migrations")
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2)
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "learnhub", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=learnhub sslmode=disable", dsn)
}
