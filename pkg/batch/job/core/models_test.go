package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobExecutionHappyPathTransitions(t *testing.T) {
	je := NewJobExecution("instance-1", "customerImportJob", NewJobParameters())
	assert.Equal(t, BatchStatusStarting, je.Status)

	require.NoError(t, je.MarkAsStarted())
	assert.Equal(t, BatchStatusStarted, je.Status)
	assert.False(t, je.StartTime.IsZero())

	require.NoError(t, je.MarkAsCompleted())
	assert.Equal(t, BatchStatusCompleted, je.Status)
	assert.Equal(t, ExitStatusCompleted, je.ExitStatus)
	assert.True(t, je.Status.IsFinished())
}

func TestJobExecutionIllegalTransitions(t *testing.T) {
	je := NewJobExecution("instance-1", "customerImportJob", NewJobParameters())

	// 未開始のジョブは完了できない
	assert.Error(t, je.MarkAsCompleted())
	assert.Equal(t, BatchStatusStarting, je.Status)

	require.NoError(t, je.MarkAsStarted())
	require.NoError(t, je.MarkAsCompleted())

	assert.Error(t, je.TransitionTo(BatchStatusStarted))
	assert.Error(t, je.TransitionTo(BatchStatusFailed))
	assert.Equal(t, BatchStatusCompleted, je.Status)
}

func TestJobExecutionMarkAsFailed(t *testing.T) {
	je := NewJobExecution("instance-1", "customerImportJob", NewJobParameters())
	require.NoError(t, je.MarkAsStarted())

	je.MarkAsFailed(errors.New("file not found"))
	assert.Equal(t, BatchStatusFailed, je.Status)
	assert.Equal(t, ExitStatusFailed, je.ExitStatus)
	assert.Equal(t, 1, je.ExitCode)
	assert.Len(t, je.Failures, 1)

	je.MarkAsFailed(errors.New("second"))
	assert.Equal(t, BatchStatusFailed, je.Status)
	assert.Len(t, je.Failures, 2)
}

func TestStartingCanFailDirectly(t *testing.T) {
	assert.True(t, BatchStatusStarting.CanTransitionTo(BatchStatusFailed))
	assert.False(t, BatchStatusStarting.CanTransitionTo(BatchStatusCompleted))
	assert.False(t, BatchStatusFailed.CanTransitionTo(BatchStatusStarted))
}

func TestNewStepExecutionIsAttached(t *testing.T) {
	je := NewJobExecution("instance-1", "customerImportJob", NewJobParameters())
	se := NewStepExecution("customerStep", je)

	assert.Same(t, je, se.JobExecution)
	require.Len(t, je.StepExecutions, 1)
	assert.Same(t, se, je.StepExecutions[0])
	assert.NotEmpty(t, se.ID)
}

func TestJobParametersHash(t *testing.T) {
	a := NewJobParameters()
	a.Put("input.file", "customer.csv")
	a.Put("run.id", 1)

	b := NewJobParameters()
	b.Put("run.id", float64(1))
	b.Put("input.file", "customer.csv")

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.Put("run.id", 2)
	hc, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestExecutionContextGetters(t *testing.T) {
	ec := NewExecutionContext()
	ec.Put("count", float64(4))
	ec.Put("name", "csvReader")

	n, ok := ec.GetInt("count")
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	_, ok = ec.GetInt("name")
	assert.False(t, ok)

	cp := ec.Copy()
	cp.Put("count", 5)
	n, _ = ec.GetInt("count")
	assert.Equal(t, 4, n)
}

func TestJobStatusToExitStatus(t *testing.T) {
	assert.Equal(t, ExitStatusCompleted, BatchStatusCompleted.ToExitStatus())
	assert.Equal(t, ExitStatusFailed, BatchStatusFailed.ToExitStatus())
	assert.Equal(t, ExitStatusUnknown, BatchStatusStarted.ToExitStatus())
}
