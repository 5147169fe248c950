package connector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/database/migrations"
	"customerbatch/pkg/batch/util/exception"
)

func TestPostgresURLs(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "postgres", Host: "db", Port: 5432, Database: "customers", User: "batch", Password: "p@ss", Sslmode: "disable"}
	c, err := Lookup("postgres")
	require.NoError(t, err)

	dsn, err := c.DSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres://batch:p%40ss@db:5432/customers?sslmode=disable", dsn)

	u, err := c.MigrationURL(cfg, "batch_schema_migrations")
	require.NoError(t, err)
	assert.Equal(t, "postgres://batch:p%40ss@db:5432/customers?sslmode=disable&x-migrations-table=batch_schema_migrations", u)
}

func TestRedshiftUsesPostgresDriver(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "redshift", Host: "rs", Port: 5439, Database: "dev", User: "u", Password: "p"}
	c, err := Lookup("REDSHIFT")
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.DriverName())

	u, err := c.MigrationURL(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "redshift://u:p@rs:5439/dev", u)
}

func TestMySQLURLs(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "mysql", Host: "localhost", Port: 3306, Database: "customers", User: "root", Password: "pw"}
	c, err := Lookup("mysql")
	require.NoError(t, err)

	dsn, err := c.DSN(cfg)
	require.NoError(t, err)
	assert.Contains(t, dsn, "root:pw@tcp(localhost:3306)/customers")
	assert.Contains(t, dsn, "parseTime=true")

	u, err := c.MigrationURL(cfg, "schema_migrations")
	require.NoError(t, err)
	assert.Contains(t, u, "mysql://root:pw@tcp(localhost:3306)/customers?")
	assert.Contains(t, u, "multiStatements=true")
	assert.Contains(t, u, "&x-migrations-table=schema_migrations")
}

func TestSnowflakeDSNAndMigrationSkip(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "snowflake", Account: "acme", User: "batch", Password: "pw", Database: "CUSTOMERS", Schema: "PUBLIC", Warehouse: "WH"}
	c, err := Lookup("snowflake")
	require.NoError(t, err)

	dsn, err := c.DSN(cfg)
	require.NoError(t, err)
	assert.Contains(t, dsn, "batch:pw@")
	assert.Contains(t, dsn, "warehouse=WH")

	_, err = c.MigrationURL(cfg, "x")
	assert.ErrorIs(t, err, ErrMigrationUnsupported)

	fsys, _ := migrations.ForDialect("postgres")
	assert.NoError(t, RunMigrations(cfg, fsys, "batch_schema_migrations"))
}

func TestLookupUnknownType(t *testing.T) {
	_, err := Lookup("oracle")
	require.Error(t, err)
	assert.Equal(t, "database", exception.ModuleOf(err))
}

func TestSQLiteConnectAndMigrate(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "sqlite", Database: filepath.Join(t.TempDir(), "batch.db")}

	fsys, ok := migrations.ForDialect("sqlite")
	require.True(t, ok)
	require.NoError(t, RunMigrations(cfg, fsys, "batch_schema_migrations"))
	// 2 回目は変更なし
	require.NoError(t, RunMigrations(cfg, fsys, "batch_schema_migrations"))

	ctx := context.Background()
	conn, err := NewDBConnectionFromConfig(ctx, cfg)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "sqlite", conn.Dialect())

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_instances").Scan(&count))
	assert.Equal(t, 0, count)
}
