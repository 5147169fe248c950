package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/database/connector"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/job/joblauncher"
)

const customerCSV = `id,firstName,lastName,email,gender,contactNo,country,dob
1,Ada,Lovelace,ada@example.com,Female,555-0100,UK,10-12-1815
2,Alan,Turing,alan@example.com,Male,555-0101,UK,23-06-1912
3,Grace,Hopper,grace@example.com,Female,555-0102,US
`

type testEnv struct {
	dbPath    string
	inputPath string
	config    []byte
	jsl       []byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dbPath:    filepath.Join(dir, "customer.db"),
		inputPath: filepath.Join(dir, "customer.csv"),
	}
	require.NoError(t, os.WriteFile(env.inputPath, []byte(customerCSV), 0o600))

	env.config = []byte(fmt.Sprintf(`
database:
  type: sqlite
  database: %s
batch:
  job_name: customerJob
  chunk_size: 2
  input:
    path: %s
system:
  timezone: UTC
  logging:
    level: ERROR
`, env.dbPath, env.inputPath))

	jsl, err := os.ReadFile(filepath.Join("..", "resources", "job.yaml"))
	require.NoError(t, err)
	env.jsl = jsl
	return env
}

func (e *testEnv) open(t *testing.T) database.DBConnection {
	t.Helper()
	conn, err := connector.NewDBConnectionFromConfig(context.Background(), config.DatabaseConfig{Type: "sqlite", Database: e.dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func count(t *testing.T, conn database.DBConnection, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}

func TestRunApplicationImportsCustomers(t *testing.T) {
	env := newTestEnv(t)

	code := RunApplication(context.Background(), "", env.config, env.jsl, env.inputPath)
	require.Equal(t, 0, code)

	conn := env.open(t)
	assert.Equal(t, 3, count(t, conn, "SELECT COUNT(*) FROM customers"))
	assert.Equal(t, 1, count(t, conn, "SELECT COUNT(*) FROM job_executions WHERE status = ?", string(core.BatchStatusCompleted)))

	var email, dob string
	require.NoError(t, conn.QueryRowContext(context.Background(), "SELECT email, dob FROM customers WHERE id = 3").Scan(&email, &dob))
	assert.Equal(t, "grace@example.com", email)
	assert.Equal(t, "", dob)
}

func TestRunApplicationRerunUpsertsSameRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.Equal(t, 0, RunApplication(ctx, "", env.config, env.jsl, env.inputPath))
	require.NoError(t, os.WriteFile(env.inputPath, []byte("header\n1,Augusta,King\n"), 0o600))
	require.Equal(t, 0, RunApplication(ctx, "", env.config, env.jsl, env.inputPath))

	conn := env.open(t)
	assert.Equal(t, 3, count(t, conn, "SELECT COUNT(*) FROM customers"))
	assert.Equal(t, 2, count(t, conn, "SELECT COUNT(*) FROM job_instances"))

	var first, email string
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT first_name, email FROM customers WHERE id = 1").Scan(&first, &email))
	assert.Equal(t, "Augusta", first)
	assert.Equal(t, "", email)
}

func TestStartReadsInputFileParameter(t *testing.T) {
	env := newTestEnv(t)
	otherPath := filepath.Join(filepath.Dir(env.inputPath), "other.csv")
	require.NoError(t, os.WriteFile(otherPath, []byte("id,firstName\n10,Dan\n11,Eve\n12,Finn\n13,Gail\n"), 0o600))

	ctx := context.Background()
	batchInitializer, op, err := setupApplication(ctx, "", env.config, env.jsl)
	t.Cleanup(func() { batchInitializer.Close() })
	require.NoError(t, err)
	require.Equal(t, env.inputPath, batchInitializer.Config.Batch.Input.Path)

	params := core.NewJobParameters()
	params.Put(InputFileParameter, otherPath)
	je, err := op.Start(ctx, "customerJob", params)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, je.Status)
	recorded, ok := je.Parameters.GetString(InputFileParameter)
	require.True(t, ok)
	assert.Equal(t, otherPath, recorded)

	conn := env.open(t)
	assert.Equal(t, 4, count(t, conn, "SELECT COUNT(*) FROM customers"))
	assert.Equal(t, 4, count(t, conn, "SELECT COUNT(*) FROM customers WHERE id BETWEEN 10 AND 13"))
}

func TestRunApplicationMissingInputFails(t *testing.T) {
	env := newTestEnv(t)

	code := RunApplication(context.Background(), "", env.config, env.jsl, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Equal(t, 1, code)

	conn := env.open(t)
	assert.Equal(t, 0, count(t, conn, "SELECT COUNT(*) FROM customers"))
	assert.Equal(t, 1, count(t, conn, "SELECT COUNT(*) FROM job_executions WHERE status = ?", string(core.BatchStatusFailed)))
}

func TestRunApplicationInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	code := RunApplication(context.Background(), "", []byte("database:\n  type: oracle\n"), env.jsl, env.inputPath)
	assert.Equal(t, 1, code)
}

func TestRunApplicationCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 1, RunApplication(ctx, "", env.config, env.jsl, env.inputPath))
}

func TestExecuteJobRequiresJobNameAndInput(t *testing.T) {
	cfg := config.NewConfig()
	_, err := executeJob(context.Background(), nil, cfg, "customer.csv")
	assert.Error(t, err)

	cfg.Batch.JobName = "customerJob"
	cfg.Batch.Input.Path = ""
	_, err = executeJob(context.Background(), nil, cfg, "")
	assert.Error(t, err)
}

func TestHandleApplicationError(t *testing.T) {
	completed := core.NewJobExecution("instance", "customerJob", core.NewJobParameters())
	require.NoError(t, completed.MarkAsStarted())
	require.NoError(t, completed.MarkAsCompleted())
	assert.Equal(t, 0, handleApplicationError(nil, completed, "customerJob"))

	failed := core.NewJobExecution("instance", "customerJob", core.NewJobParameters())
	require.NoError(t, failed.MarkAsStarted())
	failed.MarkAsFailed(errors.New("boom"))
	assert.Equal(t, 1, handleApplicationError(nil, failed, "customerJob"))

	assert.Equal(t, 1, handleApplicationError(joblauncher.ErrJobInstanceAlreadyComplete, nil, "customerJob"))
}
