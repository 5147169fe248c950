package exception

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchError_ErrorAndUnwrap(t *testing.T) {
	cause := os.ErrNotExist
	err := NewBatchError("flat_file_reader", "入力ファイルのオープンに失敗しました", cause, false, false)

	assert.Equal(t, "[flat_file_reader] 入力ファイルのオープンに失敗しました: file does not exist", err.Error())
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.False(t, err.IsRetryable())
	assert.False(t, err.IsSkippable())
	assert.NotEmpty(t, err.StackTrace)
}

func TestNewBatchErrorf(t *testing.T) {
	cause := errors.New("boom")

	err := NewBatchErrorf("writer", "チャンク %d の書き込みに失敗しました: %w", 3, cause)
	assert.Equal(t, "[writer] チャンク 3 の書き込みに失敗しました: boom", err.Error())
	assert.ErrorIs(t, err, cause)

	plain := NewBatchErrorf("config", "ジョブ名 '%s' が不正です", "x")
	assert.Nil(t, plain.OriginalErr)
	assert.Equal(t, "[config] ジョブ名 'x' が不正です", plain.Error())
}

func TestAsBatchError_FindsWrappedError(t *testing.T) {
	inner := NewBatchError("repository_writer", "保存に失敗しました", nil, true, false)
	wrapped := fmt.Errorf("chunk failed: %w", inner)

	be, ok := AsBatchError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, be)
	assert.True(t, be.IsRetryable())
	assert.Equal(t, "repository_writer", ModuleOf(wrapped))

	_, ok = AsBatchError(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, "", ModuleOf(nil))
}
