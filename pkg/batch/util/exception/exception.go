package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// BatchError はバッチ処理中に発生するカスタムエラー型です。
// エラーの発生元モジュール、メッセージ、ラップされた元のエラー、
// そしてリトライ可能か、スキップ可能かのフラグを保持します。
type BatchError struct {
	Module      string // エラーが発生したモジュール (例: "flat_file_reader", "repository_writer", "config")
	Message     string // エラーの簡潔な説明
	OriginalErr error  // ラップされた元のエラー
	isRetryable bool
	isSkippable bool
	StackTrace  string // スタックトレース (デバッグ用)

	// Message に OriginalErr の内容が既に含まれている場合 true
	causeInMessage bool
}

// NewBatchError は新しい BatchError のインスタンスを作成します。
func NewBatchError(module, message string, originalErr error, isRetryable, isSkippable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf はフォーマット文字列からリトライ不可・スキップ不可の BatchError を作成します。
// 引数に %w が含まれる場合、そのエラーを OriginalErr として保持します。
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	wrapped := fmt.Errorf(format, a...)
	be := &BatchError{
		Module:     module,
		Message:    wrapped.Error(),
		StackTrace: captureStack(),
	}
	if inner := errors.Unwrap(wrapped); inner != nil {
		be.OriginalErr = inner
		be.causeInMessage = true
	}
	return be
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error は error インターフェースの実装です。
func (e *BatchError) Error() string {
	if e.OriginalErr != nil && !e.causeInMessage {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap は errors.Unwrap のために元のエラーを返します。
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable はこのエラーがリトライ可能かどうかを返します。
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable はこのエラーがスキップ可能かどうかを返します。
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// AsBatchError はエラーチェーンから最初の BatchError を取り出します。
func AsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// ModuleOf はエラーチェーン中の最初の BatchError のモジュール名を返します。BatchError でない場合は空文字列です。
func ModuleOf(err error) string {
	if be, ok := AsBatchError(err); ok {
		return be.Module
	}
	return ""
}
