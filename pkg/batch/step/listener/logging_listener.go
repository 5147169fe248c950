// Package listener はステップとチャンクのロギングリスナーを提供します。
package listener

import (
	"context"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/logger"
)

// LoggingStepListener はステップの開始と終了をログに出力する StepExecutionListener の実装です。
type LoggingStepListener struct{}

// NewLoggingStepListener は新しい LoggingStepListener のインスタンスを作成します。
func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Infof("StepListener: ステップ '%s' (ID: %s) を開始します。", stepExecution.StepName, stepExecution.ID)
}

// AfterStep は成功・失敗に関わらず呼び出されます。
func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *core.StepExecution) {
	if stepExecution.Status == core.BatchStatusFailed {
		logger.Errorf("StepListener: ステップ '%s' が失敗しました。読み込み: %d, 書き込み: %d, エラー: %v",
			stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.Failures)
		return
	}
	logger.Infof("StepListener: ステップ '%s' が終了しました。ステータス: %s, 読み込み: %d, 書き込み: %d, フィルタ: %d",
		stepExecution.StepName, stepExecution.Status, stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.FilterCount)
}

// LoggingChunkListener はチャンク処理の開始と完了をログに出力する ChunkListener の実装です。
type LoggingChunkListener struct{}

// NewLoggingChunkListener は新しい LoggingChunkListener のインスタンスを作成します。
func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Debugf("ChunkListener: ステップ '%s' のチャンク処理を開始します。", stepExecution.StepName)
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Infof("ChunkListener: ステップ '%s' のチャンクをコミットしました。累計書き込み: %d, コミット: %d",
		stepExecution.StepName, stepExecution.WriteCount, stepExecution.CommitCount)
}

func (l *LoggingChunkListener) AfterChunkError(ctx context.Context, stepExecution *core.StepExecution, err error) {
	logger.Errorf("ChunkListener: ステップ '%s' のチャンク処理がエラーで終了しました: %v", stepExecution.StepName, err)
}

var (
	_ core.StepExecutionListener = (*LoggingStepListener)(nil)
	_ core.ChunkListener         = (*LoggingChunkListener)(nil)
)
