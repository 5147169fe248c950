package core

import (
	"context"

	"customerbatch/pkg/batch/database"
)

// Job は実行可能なバッチジョブのインターフェースです。
type Job interface {
	Run(ctx context.Context, jobExecution *JobExecution, jobParameters JobParameters) error
	JobName() string
	ValidateParameters(params JobParameters) error
}

// Step はジョブ内で実行される単一のステップのインターフェースです。
type Step interface {
	Execute(ctx context.Context, jobExecution *JobExecution, stepExecution *StepExecution) error
	StepName() string
}

// ItemReader はデータを読み込むステップのインターフェースです。
// 読み込むデータが無くなった場合、Read は io.EOF を返します。
type ItemReader[O any] interface {
	Open(ctx context.Context, ec ExecutionContext) error
	Read(ctx context.Context) (O, error)
	Close(ctx context.Context) error
	GetExecutionContext(ctx context.Context) (ExecutionContext, error)
}

// ItemProcessor はアイテムを処理するステップのインターフェースです。
// ゼロ値 (nil) を返したアイテムは書き込み対象から除外されます。
type ItemProcessor[I, O any] interface {
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter はデータを書き込むステップのインターフェースです。
// items はチャンク単位で渡され、tx はそのチャンクのトランザクションです。
type ItemWriter[I any] interface {
	Open(ctx context.Context, ec ExecutionContext) error
	Write(ctx context.Context, tx database.Tx, items []I) error
	Close(ctx context.Context) error
	GetExecutionContext(ctx context.Context) (ExecutionContext, error)
}

// JobExecutionListener はジョブの実行ライフサイクルイベントを処理するためのインターフェースです。
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *JobExecution)
	// AfterJob は成功・失敗に関わらず呼び出されます。
	AfterJob(ctx context.Context, jobExecution *JobExecution)
}

// StepExecutionListener はステップ実行イベントを処理するためのインターフェースです。
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *StepExecution)
	AfterStep(ctx context.Context, stepExecution *StepExecution)
}

// ChunkListener はチャンク処理イベントを処理するためのインターフェースです。
type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *StepExecution)
	AfterChunk(ctx context.Context, stepExecution *StepExecution)
	AfterChunkError(ctx context.Context, stepExecution *StepExecution, err error)
}

// JobParametersIncrementer は JobParameters を自動的にインクリメントするためのインターフェースです。
type JobParametersIncrementer interface {
	GetNext(params JobParameters) JobParameters
}
