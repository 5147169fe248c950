package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/repository/memory"
)

type stubStep struct {
	name     string
	err      error
	executed int
}

func (s *stubStep) StepName() string { return s.name }

func (s *stubStep) Execute(ctx context.Context, je *core.JobExecution, se *core.StepExecution) error {
	s.executed++
	if s.err != nil {
		se.MarkAsFailed(s.err)
		return s.err
	}
	se.MarkAsCompleted()
	return nil
}

type recordingJobListener struct {
	before, after int
	finalStatus   core.JobStatus
}

func (l *recordingJobListener) BeforeJob(ctx context.Context, je *core.JobExecution) { l.before++ }
func (l *recordingJobListener) AfterJob(ctx context.Context, je *core.JobExecution) {
	l.after++
	l.finalStatus = je.Status
}

func startedExecution(t *testing.T, repo *memory.JobRepository) *core.JobExecution {
	t.Helper()
	je := core.NewJobExecution("instance-1", "customerJob", core.NewJobParameters())
	require.NoError(t, je.MarkAsStarted())
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	return je
}

func newFlow(steps ...*stubStep) *core.FlowDefinition {
	flow := core.NewFlowDefinition(steps[0].name)
	for _, s := range steps {
		_ = flow.AddStep(s.name, s)
	}
	return flow
}

func TestFlowJobCompletesSingleStep(t *testing.T) {
	repo := memory.NewJobRepository()
	importStep := &stubStep{name: "importStep"}
	listener := &recordingJobListener{}
	j := NewFlowJob("customerJob", "customerJob", newFlow(importStep), repo, []core.JobExecutionListener{listener}, nil)

	je := startedExecution(t, repo)
	require.NoError(t, j.Run(context.Background(), je, je.Parameters))

	assert.Equal(t, core.BatchStatusCompleted, je.Status)
	assert.Equal(t, core.ExitStatusCompleted, je.ExitStatus)
	assert.False(t, je.EndTime.IsZero())
	assert.Equal(t, 1, importStep.executed)
	require.Len(t, je.StepExecutions, 1)
	assert.Equal(t, 1, listener.before)
	assert.Equal(t, 1, listener.after)
	assert.Equal(t, core.BatchStatusCompleted, listener.finalStatus)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, "importStep", stored.CurrentStepName)
}

func TestFlowJobFailsWhenStepFailsWithoutTransition(t *testing.T) {
	repo := memory.NewJobRepository()
	stepErr := errors.New("input file not found")
	j := NewFlowJob("customerJob", "customerJob", newFlow(&stubStep{name: "importStep", err: stepErr}), repo, nil, nil)

	je := startedExecution(t, repo)
	err := j.Run(context.Background(), je, je.Parameters)
	require.ErrorIs(t, err, stepErr)
	assert.Equal(t, core.BatchStatusFailed, je.Status)
	assert.Equal(t, core.ExitStatusFailed, je.ExitStatus)
	assert.Equal(t, 1, je.ExitCode)
}

func TestFlowJobFollowsTransitions(t *testing.T) {
	repo := memory.NewJobRepository()
	first := &stubStep{name: "importStep"}
	second := &stubStep{name: "reportStep"}
	flow := newFlow(first, second)
	flow.AddTransitionRule("importStep", core.Transition{On: "COMPLETED", To: "reportStep"})
	flow.AddTransitionRule("reportStep", core.Transition{On: "*", End: true})

	j := NewFlowJob("customerJob", "customerJob", flow, repo, nil, nil)
	je := startedExecution(t, repo)
	require.NoError(t, j.Run(context.Background(), je, je.Parameters))

	assert.Equal(t, 1, first.executed)
	assert.Equal(t, 1, second.executed)
	assert.Equal(t, core.BatchStatusCompleted, je.Status)
	assert.Len(t, je.StepExecutions, 2)
}

func TestFlowJobFailTransition(t *testing.T) {
	repo := memory.NewJobRepository()
	flow := newFlow(&stubStep{name: "importStep"})
	flow.AddTransitionRule("importStep", core.Transition{On: "*", Fail: true})

	j := NewFlowJob("customerJob", "customerJob", flow, repo, nil, nil)
	je := startedExecution(t, repo)
	err := j.Run(context.Background(), je, je.Parameters)
	require.Error(t, err)
	assert.Equal(t, core.BatchStatusFailed, je.Status)
}

func TestFlowJobCancelledContext(t *testing.T) {
	repo := memory.NewJobRepository()
	importStep := &stubStep{name: "importStep"}
	j := NewFlowJob("customerJob", "customerJob", newFlow(importStep), repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	je := startedExecution(t, repo)
	err := j.Run(ctx, je, je.Parameters)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.BatchStatusFailed, je.Status)
	assert.Equal(t, 0, importStep.executed)
}

func TestFlowJobValidateParameters(t *testing.T) {
	j := NewFlowJob("customerJob", "customerJob", newFlow(&stubStep{name: "importStep"}), memory.NewJobRepository(), nil, []string{"input.file"})

	err := j.ValidateParameters(core.NewJobParameters())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input.file")

	params := core.NewJobParameters()
	params.Put("input.file", "customer.csv")
	assert.NoError(t, j.ValidateParameters(params))
}
