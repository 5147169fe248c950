// Package job はジョブ実行メタデータを永続化するリポジトリのインターフェースを定義します。
package job

import (
	"context"

	"customerbatch/pkg/batch/job/core"
)

// JobInstance は JobInstance の永続化と取得に関する操作を定義します。
type JobInstance interface {
	SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error
	// FindJobInstanceByJobNameAndParameters は一致する JobInstance が無い場合 nil, nil を返します。
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error)
	FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error)
	GetJobInstanceCount(ctx context.Context, jobName string) (int, error)
	GetJobNames(ctx context.Context) ([]string, error)
}

// JobExecution は JobExecution の永続化と取得に関する操作を定義します。
type JobExecution interface {
	SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error
	// UpdateJobExecution は Version が一致する場合のみ更新し、成功すると Version を 1 進めます。
	UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error
	// FindJobExecutionByID は関連する StepExecution も合わせてロードします。
	FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error)
	// FindLatestJobExecution は JobExecution が 1 件も無い場合 nil, nil を返します。
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error)
	FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*core.JobExecution, error)
}

// StepExecution は StepExecution の永続化と取得に関する操作を定義します。
type StepExecution interface {
	SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error
	UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error
	FindStepExecutionByID(ctx context.Context, executionID string) (*core.StepExecution, error)
	FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error)
}

// JobRepository はジョブ実行メタデータの永続化に必要な全ての操作をまとめたインターフェースです。
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution
	Close() error
}
