package joblauncher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/job/incrementer"
	"customerbatch/pkg/batch/repository/memory"
)

type stubJob struct {
	runErr      error
	validateErr error
	runs        int
}

func (j *stubJob) JobName() string { return "customerJob" }

func (j *stubJob) ValidateParameters(params core.JobParameters) error { return j.validateErr }

func (j *stubJob) Run(ctx context.Context, je *core.JobExecution, params core.JobParameters) error {
	j.runs++
	if je.Status != core.BatchStatusStarted {
		return errors.New("job execution was not started")
	}
	if j.runErr != nil {
		je.MarkAsFailed(j.runErr)
		return j.runErr
	}
	return je.MarkAsCompleted()
}

type stubProvider struct {
	job         *stubJob
	incrementer core.JobParametersIncrementer
}

func (p *stubProvider) CreateJob(jobName string, params core.JobParameters) (core.Job, error) {
	if jobName != "customerJob" {
		return nil, errors.New("unknown job")
	}
	return p.job, nil
}

func (p *stubProvider) GetJobParametersIncrementer(jobName string) (core.JobParametersIncrementer, error) {
	return p.incrementer, nil
}

func fileParams() core.JobParameters {
	params := core.NewJobParameters()
	params.Put("input.file", "customer.csv")
	return params
}

func TestLaunchCompletesAndPersists(t *testing.T) {
	repo := memory.NewJobRepository()
	launcher := NewSimpleJobLauncher(repo, &stubProvider{job: &stubJob{}})

	je, err := launcher.Launch(context.Background(), "customerJob", fileParams())
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, je.Status)
	assert.False(t, je.StartTime.IsZero())

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, stored.Status)
	assert.Equal(t, core.ExitStatusCompleted, stored.ExitStatus)

	count, err := repo.GetJobInstanceCount(context.Background(), "customerJob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLaunchRefusesCompletedInstance(t *testing.T) {
	repo := memory.NewJobRepository()
	j := &stubJob{}
	launcher := NewSimpleJobLauncher(repo, &stubProvider{job: j})

	_, err := launcher.Launch(context.Background(), "customerJob", fileParams())
	require.NoError(t, err)

	je, err := launcher.Launch(context.Background(), "customerJob", fileParams())
	require.ErrorIs(t, err, ErrJobInstanceAlreadyComplete)
	assert.Nil(t, je)
	assert.Equal(t, 1, j.runs, "完了済みのインスタンスは再実行されない")
}

func TestLaunchFailedJobCanRunAgain(t *testing.T) {
	repo := memory.NewJobRepository()
	j := &stubJob{runErr: errors.New("input file not found")}
	launcher := NewSimpleJobLauncher(repo, &stubProvider{job: j})

	je, err := launcher.Launch(context.Background(), "customerJob", fileParams())
	require.Error(t, err)
	require.NotNil(t, je)
	assert.Equal(t, core.BatchStatusFailed, je.Status)
	assert.Equal(t, 1, je.ExitCode)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusFailed, stored.Status)

	j.runErr = nil
	second, err := launcher.Launch(context.Background(), "customerJob", fileParams())
	require.NoError(t, err)
	assert.Equal(t, je.JobInstanceID, second.JobInstanceID)
	assert.Equal(t, core.BatchStatusCompleted, second.Status)
}

func TestLaunchValidationFailure(t *testing.T) {
	repo := memory.NewJobRepository()
	launcher := NewSimpleJobLauncher(repo, &stubProvider{job: &stubJob{validateErr: errors.New("input.file is required")}})

	je, err := launcher.Launch(context.Background(), "customerJob", core.NewJobParameters())
	require.Error(t, err)
	assert.Nil(t, je)

	count, err := repo.GetJobInstanceCount(context.Background(), "customerJob")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLaunchUnknownJob(t *testing.T) {
	launcher := NewSimpleJobLauncher(memory.NewJobRepository(), &stubProvider{job: &stubJob{}})
	_, err := launcher.Launch(context.Background(), "weatherJob", fileParams())
	require.Error(t, err)
}

func TestLaunchWithRunIDIncrementerCreatesNewInstances(t *testing.T) {
	repo := memory.NewJobRepository()
	launcher := NewSimpleJobLauncher(repo, &stubProvider{job: &stubJob{}, incrementer: incrementer.NewRunIDIncrementer("run.id")})

	first, err := launcher.Launch(context.Background(), "customerJob", fileParams())
	require.NoError(t, err)
	second, err := launcher.Launch(context.Background(), "customerJob", fileParams())
	require.NoError(t, err)

	assert.NotEqual(t, first.JobInstanceID, second.JobInstanceID)
	firstRunID, _ := first.Parameters.GetInt("run.id")
	secondRunID, _ := second.Parameters.GetInt("run.id")
	assert.Equal(t, 1, firstRunID)
	assert.Equal(t, 2, secondRunID)
}

func TestLaunchSeedsRunIDFromExistingInstances(t *testing.T) {
	repo := memory.NewJobRepository()
	for i := 0; i < 3; i++ {
		ji, err := core.NewJobInstance("customerJob", core.NewJobParameters())
		require.NoError(t, err)
		require.NoError(t, repo.SaveJobInstance(context.Background(), ji))
	}
	// 新しいプロセスを想定し、採番状態を持たない incrementer を使用する
	launcher := NewSimpleJobLauncher(repo, &stubProvider{job: &stubJob{}, incrementer: incrementer.NewRunIDIncrementer("run.id")})

	je, err := launcher.Launch(context.Background(), "customerJob", fileParams())
	require.NoError(t, err)
	runID, _ := je.Parameters.GetInt("run.id")
	assert.Equal(t, 4, runID)
}
