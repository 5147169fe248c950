// Package step はチャンク指向のステップ実装を提供します。
package step

import (
	"context"
	"errors"
	"io"
	"reflect"

	"github.com/hashicorp/go-multierror"

	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const module = "chunk_step"

// ChunkStep はチャンク指向のステップを実装します。
//
// Reader から最大 chunkSize 件を読み込み、Processor を通した結果を
// 1 つのトランザクションで Writer に書き込みます。これを Reader が io.EOF を返すまで繰り返します。
// Processor が nil を返したアイテムはフィルタされ、書き込まれません。
// いずれかのフェーズでエラーが発生した場合、そのチャンクをロールバックしてステップを失敗させます。
type ChunkStep[I, O any] struct {
	name          string
	reader        core.ItemReader[I]
	processor     core.ItemProcessor[I, O]
	writer        core.ItemWriter[O]
	chunkSize     int
	jobRepository job.JobRepository
	db            database.DBConnection

	stepListeners  []core.StepExecutionListener
	chunkListeners []core.ChunkListener
}

// NewChunkStep は新しい ChunkStep のインスタンスを作成します。
// db はチャンクごとのトランザクションを開始するために使用します。
func NewChunkStep[I, O any](
	name string,
	r core.ItemReader[I],
	p core.ItemProcessor[I, O],
	w core.ItemWriter[O],
	chunkSize int,
	repo job.JobRepository,
	db database.DBConnection,
	stepLs []core.StepExecutionListener,
	chunkLs []core.ChunkListener,
) *ChunkStep[I, O] {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	return &ChunkStep[I, O]{
		name:           name,
		reader:         r,
		processor:      p,
		writer:         w,
		chunkSize:      chunkSize,
		jobRepository:  repo,
		db:             db,
		stepListeners:  stepLs,
		chunkListeners: chunkLs,
	}
}

// StepName はステップの名前を返します。
func (cs *ChunkStep[I, O]) StepName() string {
	return cs.name
}

// Execute はチャンクステップを実行します。
// stepExecution は JobExecution に紐づいた未保存の StepExecution である必要があります。
func (cs *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution) (err error) {
	logger.Infof("ステップ '%s' の実行を開始します。", cs.name)

	if err := cs.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) の保存に失敗しました: %w", stepExecution.ID, err)
	}

	for _, l := range cs.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}
	stepExecution.MarkAsStarted()
	jobExecution.CurrentStepName = cs.name

	readerOpened, writerOpened := false, false
	defer func() {
		if closeErr := cs.close(ctx, readerOpened, writerOpened); closeErr != nil {
			logger.Errorf("ステップ '%s' のリソースのクローズに失敗しました: %v", cs.name, closeErr)
			if err == nil {
				err = closeErr
			}
		}
		cs.mergeExecutionContext(ctx, stepExecution)
		if err != nil {
			stepExecution.MarkAsFailed(err)
		} else {
			stepExecution.MarkAsCompleted()
		}
		for _, l := range cs.stepListeners {
			l.AfterStep(ctx, stepExecution)
		}
		// 実行がキャンセルされていても最終状態は記録する
		if updateErr := cs.jobRepository.UpdateStepExecution(context.WithoutCancel(ctx), stepExecution); updateErr != nil {
			logger.Errorf("ステップ '%s' の最終 StepExecution (ID: %s) の更新に失敗しました: %v", cs.name, stepExecution.ID, updateErr)
			if err == nil {
				err = updateErr
			}
		}
		logger.Infof("ステップ '%s' の実行が完了しました。ステータス: %s, 読み込み: %d, 書き込み: %d, フィルタ: %d, コミット: %d, ロールバック: %d",
			cs.name, stepExecution.Status, stepExecution.ReadCount, stepExecution.WriteCount,
			stepExecution.FilterCount, stepExecution.CommitCount, stepExecution.RollbackCount)
	}()

	if err := cs.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) の状態更新に失敗しました: %w", stepExecution.ID, err)
	}

	if err := cs.reader.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return err
	}
	readerOpened = true
	if err := cs.writer.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return err
	}
	writerOpened = true

	for {
		if err := ctx.Err(); err != nil {
			logger.Warnf("ステップ '%s' がコンテキストキャンセルにより中断されました: %v", cs.name, err)
			return exception.NewBatchErrorf(module, "ステップ '%s' が中断されました: %w", cs.name, err)
		}
		done, err := cs.executeChunk(ctx, stepExecution)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// executeChunk は 1 チャンク分の読み込み・処理・書き込みを行います。
// Reader が終端に達した場合 done は true です。
func (cs *ChunkStep[I, O]) executeChunk(ctx context.Context, stepExecution *core.StepExecution) (done bool, err error) {
	for _, l := range cs.chunkListeners {
		l.BeforeChunk(ctx, stepExecution)
	}
	defer func() {
		if err != nil {
			for _, l := range cs.chunkListeners {
				l.AfterChunkError(ctx, stepExecution, err)
			}
		}
	}()

	items := make([]O, 0, cs.chunkSize)
	read := 0
	for read < cs.chunkSize {
		item, readErr := cs.reader.Read(ctx)
		if errors.Is(readErr, io.EOF) {
			done = true
			break
		}
		if readErr != nil {
			return false, readErr
		}
		read++
		stepExecution.ReadCount++

		out, procErr := cs.processor.Process(ctx, item)
		if procErr != nil {
			return false, exception.NewBatchErrorf(module, "アイテムの処理に失敗しました: %w", procErr)
		}
		if isNil(out) {
			stepExecution.FilterCount++
			continue
		}
		items = append(items, out)
	}

	if read == 0 {
		return done, nil
	}

	if len(items) > 0 {
		if err := cs.write(ctx, stepExecution, items); err != nil {
			return false, err
		}
	}

	cs.mergeExecutionContext(ctx, stepExecution)
	if err := cs.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		return false, exception.NewBatchErrorf(module, "StepExecution (ID: %s) の状態更新に失敗しました: %w", stepExecution.ID, err)
	}
	for _, l := range cs.chunkListeners {
		l.AfterChunk(ctx, stepExecution)
	}
	return done, nil
}

// write は items を 1 つのトランザクションで書き込みます。
func (cs *ChunkStep[I, O]) write(ctx context.Context, stepExecution *core.StepExecution, items []O) error {
	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return exception.NewBatchErrorf(module, "トランザクションの開始に失敗しました: %w", err)
	}

	if err := cs.writer.Write(ctx, tx, items); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Errorf("ステップ '%s' のロールバックに失敗しました: %v", cs.name, rbErr)
		}
		stepExecution.RollbackCount++
		return err
	}
	if err := tx.Commit(); err != nil {
		stepExecution.RollbackCount++
		return exception.NewBatchErrorf(module, "トランザクションのコミットに失敗しました: %w", err)
	}
	stepExecution.WriteCount += len(items)
	stepExecution.CommitCount++
	logger.Debugf("ステップ '%s': %d 件のアイテムを書き込み、コミットしました。", cs.name, len(items))
	return nil
}

func (cs *ChunkStep[I, O]) close(ctx context.Context, readerOpened, writerOpened bool) error {
	var result *multierror.Error
	if readerOpened {
		if err := cs.reader.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if writerOpened {
		if err := cs.writer.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (cs *ChunkStep[I, O]) mergeExecutionContext(ctx context.Context, stepExecution *core.StepExecution) {
	if stepExecution.ExecutionContext == nil {
		stepExecution.ExecutionContext = core.NewExecutionContext()
	}
	if ec, err := cs.reader.GetExecutionContext(ctx); err == nil {
		stepExecution.ExecutionContext.Merge(ec)
	} else {
		logger.Errorf("Reader の ExecutionContext 取得に失敗しました: %v", err)
	}
	if ec, err := cs.writer.GetExecutionContext(ctx); err == nil {
		stepExecution.ExecutionContext.Merge(ec)
	} else {
		logger.Errorf("Writer の ExecutionContext 取得に失敗しました: %v", err)
	}
}

// isNil はアイテムが nil (nil ポインタ等を含む) かどうかを判定します。
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
