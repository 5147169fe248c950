// Package processor は汎用の ItemProcessor 実装を提供します。
package processor

import (
	"context"

	"customerbatch/pkg/batch/job/core"
)

// PassThroughItemProcessor は受け取ったアイテムをそのまま返す ItemProcessor です。
type PassThroughItemProcessor[T any] struct{}

// NewPassThroughItemProcessor は新しい PassThroughItemProcessor を作成します。
func NewPassThroughItemProcessor[T any]() *PassThroughItemProcessor[T] {
	return &PassThroughItemProcessor[T]{}
}

func (p *PassThroughItemProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	return item, nil
}

var _ core.ItemProcessor[any, any] = (*PassThroughItemProcessor[any])(nil)
