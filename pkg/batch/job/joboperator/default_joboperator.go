package joboperator

import (
	"context"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/job/joblauncher"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const module = "job_operator"

// DefaultJobOperator は JobOperator のデフォルト実装です。
// 起動は JobLauncher に委譲し、参照系の操作は JobRepository から取得します。
type DefaultJobOperator struct {
	jobRepository job.JobRepository
	jobLauncher   joblauncher.JobLauncher
}

var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator は新しい DefaultJobOperator のインスタンスを作成します。
func NewDefaultJobOperator(jobRepository job.JobRepository, jobLauncher joblauncher.JobLauncher) *DefaultJobOperator {
	return &DefaultJobOperator{
		jobRepository: jobRepository,
		jobLauncher:   jobLauncher,
	}
}

func (o *DefaultJobOperator) Start(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error) {
	logger.Debugf("JobOperator: Job '%s' を起動します。", jobName)
	return o.jobLauncher.Launch(ctx, jobName, params)
}

func (o *DefaultJobOperator) GetJobExecution(ctx context.Context, executionID string) (*core.JobExecution, error) {
	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobExecution (ID: %s) の取得に失敗しました: %w", executionID, err)
	}
	logger.Debugf("JobExecution (ID: %s) を JobRepository から取得しました。", executionID)
	return jobExecution, nil
}

func (o *DefaultJobOperator) GetJobExecutions(ctx context.Context, instanceID string) ([]*core.JobExecution, error) {
	if _, err := o.jobRepository.FindJobInstanceByID(ctx, instanceID); err != nil {
		return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) の取得に失敗しました: %w", instanceID, err)
	}
	jobExecutions, err := o.jobRepository.FindJobExecutionsByJobInstance(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) に関連する JobExecution の取得に失敗しました: %w", instanceID, err)
	}
	logger.Debugf("JobInstance (ID: %s) に関連する %d 件の JobExecution を取得しました。", instanceID, len(jobExecutions))
	return jobExecutions, nil
}

// GetLastJobExecution は JobExecution が 1 件も無い場合 nil を返します。
func (o *DefaultJobOperator) GetLastJobExecution(ctx context.Context, instanceID string) (*core.JobExecution, error) {
	jobExecution, err := o.jobRepository.FindLatestJobExecution(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) の最新 JobExecution の取得に失敗しました: %w", instanceID, err)
	}
	if jobExecution == nil {
		logger.Warnf("JobInstance (ID: %s) の JobExecution は見つかりませんでした。", instanceID)
	}
	return jobExecution, nil
}

func (o *DefaultJobOperator) GetJobInstance(ctx context.Context, instanceID string) (*core.JobInstance, error) {
	jobInstance, err := o.jobRepository.FindJobInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) の取得に失敗しました: %w", instanceID, err)
	}
	return jobInstance, nil
}

func (o *DefaultJobOperator) GetJobNames(ctx context.Context) ([]string, error) {
	jobNames, err := o.jobRepository.GetJobNames(ctx)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "ジョブ名の取得に失敗しました: %w", err)
	}
	return jobNames, nil
}

func (o *DefaultJobOperator) GetParameters(ctx context.Context, executionID string) (core.JobParameters, error) {
	jobExecution, err := o.GetJobExecution(ctx, executionID)
	if err != nil {
		return core.NewJobParameters(), err
	}
	return jobExecution.Parameters, nil
}
