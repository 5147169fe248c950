// Package writer は汎用の ItemWriter 実装を提供します。
package writer

import (
	"context"

	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const module = "repository_writer"

// CrudRepository はアイテムを 1 件ずつ保存 (upsert) するリポジトリです。
type CrudRepository[T any] interface {
	Save(ctx context.Context, tx database.Tx, item T) error
}

// RepositoryItemWriter はチャンク内のアイテムごとに CrudRepository.Save を呼び出す ItemWriter です。
// 1 件でも失敗した場合、残りのアイテムは保存せずにエラーを返します。
type RepositoryItemWriter[T any] struct {
	repository CrudRepository[T]
}

// NewRepositoryItemWriter は新しい RepositoryItemWriter を作成します。
func NewRepositoryItemWriter[T any](repository CrudRepository[T]) *RepositoryItemWriter[T] {
	return &RepositoryItemWriter[T]{repository: repository}
}

func (w *RepositoryItemWriter[T]) Open(ctx context.Context, ec core.ExecutionContext) error {
	return nil
}

// Write は items を順に保存します。
func (w *RepositoryItemWriter[T]) Write(ctx context.Context, tx database.Tx, items []T) error {
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.repository.Save(ctx, tx, item); err != nil {
			return exception.NewBatchErrorf(module, "チャンク内 %d 件目のアイテムの保存に失敗しました: %w", i+1, err)
		}
	}
	logger.Debugf("RepositoryItemWriter: %d 件のアイテムを保存しました。", len(items))
	return nil
}

func (w *RepositoryItemWriter[T]) Close(ctx context.Context) error {
	return nil
}

func (w *RepositoryItemWriter[T]) GetExecutionContext(ctx context.Context) (core.ExecutionContext, error) {
	return core.NewExecutionContext(), nil
}

var _ core.ItemWriter[any] = (*RepositoryItemWriter[any])(nil)
