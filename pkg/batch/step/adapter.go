package step

import (
	"context"

	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/exception"
)

// AnyReader は型付きの ItemReader を ItemReader[any] として扱うためのアダプターです。
// JSL から組み立てるステップは any 型でアイテムを受け渡します。
type AnyReader[T any] struct {
	core.ItemReader[T]
}

// NewAnyReader は reader を ItemReader[any] でラップします。
func NewAnyReader[T any](reader core.ItemReader[T]) *AnyReader[T] {
	return &AnyReader[T]{ItemReader: reader}
}

func (a *AnyReader[T]) Read(ctx context.Context) (any, error) {
	item, err := a.ItemReader.Read(ctx)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// AnyProcessor は型付きの ItemProcessor を ItemProcessor[any, any] として扱うためのアダプターです。
type AnyProcessor[I, O any] struct {
	processor core.ItemProcessor[I, O]
}

// NewAnyProcessor は processor を ItemProcessor[any, any] でラップします。
func NewAnyProcessor[I, O any](processor core.ItemProcessor[I, O]) *AnyProcessor[I, O] {
	return &AnyProcessor[I, O]{processor: processor}
}

func (a *AnyProcessor[I, O]) Process(ctx context.Context, item any) (any, error) {
	typed, ok := item.(I)
	if !ok {
		return nil, exception.NewBatchErrorf(module, "プロセッサが予期しない型のアイテムを受け取りました: %T", item)
	}
	return a.processor.Process(ctx, typed)
}

// AnyWriter は型付きの ItemWriter を ItemWriter[any] として扱うためのアダプターです。
type AnyWriter[T any] struct {
	core.ItemWriter[T]
}

// NewAnyWriter は writer を ItemWriter[any] でラップします。
func NewAnyWriter[T any](writer core.ItemWriter[T]) *AnyWriter[T] {
	return &AnyWriter[T]{ItemWriter: writer}
}

func (a *AnyWriter[T]) Write(ctx context.Context, tx database.Tx, items []any) error {
	typed := make([]T, 0, len(items))
	for _, item := range items {
		t, ok := item.(T)
		if !ok {
			return exception.NewBatchErrorf(module, "ライターが予期しない型のアイテムを受け取りました: %T", item)
		}
		typed = append(typed, t)
	}
	return a.ItemWriter.Write(ctx, tx, typed)
}

var (
	_ core.ItemReader[any]         = (*AnyReader[string])(nil)
	_ core.ItemProcessor[any, any] = (*AnyProcessor[string, string])(nil)
	_ core.ItemWriter[any]         = (*AnyWriter[string])(nil)
)
