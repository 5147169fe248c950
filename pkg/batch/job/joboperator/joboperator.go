// Package joboperator はジョブの起動と、JobRepository に記録された実行履歴の参照を提供します。
package joboperator

import (
	"context"

	"customerbatch/pkg/batch/job/core"
)

// JobOperator はバッチ実行の管理操作を行うためのインターフェースです。
// 実行中ジョブの停止や失敗したジョブの再開は扱いません。
type JobOperator interface {
	// Start は指定されたジョブを起動し、終了した JobExecution を返します。
	Start(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error)

	// GetJobExecution は指定された ID の JobExecution を StepExecution を含めて取得します。
	GetJobExecution(ctx context.Context, executionID string) (*core.JobExecution, error)

	// GetJobExecutions は指定された JobInstance に関連する全ての JobExecution を作成順に取得します。
	GetJobExecutions(ctx context.Context, instanceID string) ([]*core.JobExecution, error)

	// GetLastJobExecution は指定された JobInstance の最新の JobExecution を取得します。
	GetLastJobExecution(ctx context.Context, instanceID string) (*core.JobExecution, error)

	GetJobInstance(ctx context.Context, instanceID string) (*core.JobInstance, error)

	// GetJobNames は実行履歴のあるジョブ名を取得します。
	GetJobNames(ctx context.Context) ([]string, error)

	GetParameters(ctx context.Context, executionID string) (core.JobParameters, error)
}
