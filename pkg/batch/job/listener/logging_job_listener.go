// Package listener はジョブのロギングリスナーを提供します。
package listener

import (
	"context"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/logger"
)

// LoggingJobListener はジョブの開始と終了をログに出力する JobExecutionListener の実装です。
// DEBUG レベルではステップごとの件数も出力します。
type LoggingJobListener struct{}

// NewLoggingJobListener は新しい LoggingJobListener のインスタンスを作成します。
func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	logger.Infof("Job '%s' (Execution ID: %s) の実行を開始します。パラメータ: %v",
		jobExecution.JobName, jobExecution.ID, jobExecution.Parameters.Params)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	elapsed := jobExecution.EndTime.Sub(jobExecution.StartTime)
	if jobExecution.Status == core.BatchStatusFailed {
		logger.Errorf("Job '%s' がエラーで終了しました (所要時間: %s): %v", jobExecution.JobName, elapsed, jobExecution.Failures)
		return
	}
	logger.Infof("Job '%s' の実行が終了しました。ステータス: %s, 終了ステータス: %s (所要時間: %s)",
		jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus, elapsed)
	if logger.Enabled(logger.LevelDebug) {
		for _, se := range jobExecution.StepExecutions {
			logger.Debugf("  ステップ '%s': 読み込み %d, 書き込み %d, フィルタ %d, コミット %d, ロールバック %d",
				se.StepName, se.ReadCount, se.WriteCount, se.FilterCount, se.CommitCount, se.RollbackCount)
		}
	}
}

var _ core.JobExecutionListener = (*LoggingJobListener)(nil)
