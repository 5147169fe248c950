package joboperator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/repository/memory"
	"customerbatch/pkg/batch/util/exception"
)

type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Launch(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error) {
	args := m.Called(ctx, jobName, params)
	je, _ := args.Get(0).(*core.JobExecution)
	return je, args.Error(1)
}

// seed は COMPLETED の実行 1 件を持つ JobInstance を保存します。
func seed(t *testing.T, repo *memory.JobRepository) (*core.JobInstance, *core.JobExecution) {
	t.Helper()
	ctx := context.Background()
	params := core.NewJobParameters()
	params.Put("input.file", "customer.csv")

	ji, err := core.NewJobInstance("customerJob", params)
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, ji))

	je := core.NewJobExecution(ji.ID, "customerJob", params)
	require.NoError(t, repo.SaveJobExecution(ctx, je))
	require.NoError(t, je.MarkAsStarted())
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	se := core.NewStepExecution("importCustomerStep", je)
	se.ReadCount = 3
	se.WriteCount = 3
	require.NoError(t, repo.SaveStepExecution(ctx, se))

	require.NoError(t, je.MarkAsCompleted())
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	return ji, je
}

func TestStartDelegatesToLauncher(t *testing.T) {
	launcher := new(mockLauncher)
	params := core.NewJobParameters()
	params.Put("input.file", "customer.csv")
	want := core.NewJobExecution("instance", "customerJob", params)
	launcher.On("Launch", mock.Anything, "customerJob", params).Return(want, nil).Once()

	op := NewDefaultJobOperator(memory.NewJobRepository(), launcher)
	got, err := op.Start(context.Background(), "customerJob", params)
	require.NoError(t, err)
	assert.Same(t, want, got)
	launcher.AssertExpectations(t)
}

func TestQueriesReadFromRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewJobRepository()
	ji, je := seed(t, repo)
	op := NewDefaultJobOperator(repo, new(mockLauncher))

	loaded, err := op.GetJobExecution(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, loaded.Status)
	require.Len(t, loaded.StepExecutions, 1)
	assert.Equal(t, 3, loaded.StepExecutions[0].WriteCount)

	executions, err := op.GetJobExecutions(ctx, ji.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, je.ID, executions[0].ID)

	last, err := op.GetLastJobExecution(ctx, ji.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, je.ID, last.ID)

	instance, err := op.GetJobInstance(ctx, ji.ID)
	require.NoError(t, err)
	assert.Equal(t, "customerJob", instance.JobName)

	names, err := op.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customerJob"}, names)

	params, err := op.GetParameters(ctx, je.ID)
	require.NoError(t, err)
	v, ok := params.GetString("input.file")
	require.True(t, ok)
	assert.Equal(t, "customer.csv", v)
}

func TestQueriesUnknownIDs(t *testing.T) {
	ctx := context.Background()
	op := NewDefaultJobOperator(memory.NewJobRepository(), new(mockLauncher))

	_, err := op.GetJobExecution(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, module, exception.ModuleOf(err))

	_, err = op.GetJobExecutions(ctx, "missing")
	assert.Error(t, err)

	_, err = op.GetParameters(ctx, "missing")
	assert.Error(t, err)

	last, err := op.GetLastJobExecution(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, last)
}
