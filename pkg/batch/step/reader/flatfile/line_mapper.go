package flatfile

import (
	"sync/atomic"

	"customerbatch/pkg/batch/util/logger"
)

// LineMapper は 1 行のテキストをアイテムに変換します。
type LineMapper[T any] interface {
	MapLine(line string, lineNumber int) (T, error)
}

// LineTokenizer は 1 行のテキストを FieldSet に分割します。
type LineTokenizer interface {
	Tokenize(line string) (FieldSet, error)
}

// FieldSetMapper は FieldSet をアイテムに変換します。
type FieldSetMapper[T any] interface {
	MapFieldSet(fs FieldSet) (T, error)
}

// FieldSetMapperFunc は関数を FieldSetMapper として使うためのアダプターです。
type FieldSetMapperFunc[T any] func(fs FieldSet) (T, error)

func (f FieldSetMapperFunc[T]) MapFieldSet(fs FieldSet) (T, error) {
	return f(fs)
}

// DefaultLineMapper は LineTokenizer と FieldSetMapper を組み合わせた LineMapper です。
// トークン数が一致しなかった行は WARN ログを出力して件数を数えます。
type DefaultLineMapper[T any] struct {
	Tokenizer      LineTokenizer
	FieldSetMapper FieldSetMapper[T]

	lenientLines atomic.Int64
}

// NewDefaultLineMapper は新しい DefaultLineMapper を作成します。
func NewDefaultLineMapper[T any](tokenizer LineTokenizer, mapper FieldSetMapper[T]) *DefaultLineMapper[T] {
	return &DefaultLineMapper[T]{Tokenizer: tokenizer, FieldSetMapper: mapper}
}

func (m *DefaultLineMapper[T]) MapLine(line string, lineNumber int) (T, error) {
	fs, err := m.Tokenizer.Tokenize(line)
	if err != nil {
		var zero T
		return zero, err
	}
	if fs.Lenient() {
		m.lenientLines.Add(1)
		logger.Warnf("行 %d のトークン数が一致しません (期待値 %d, 実際 %d)。不足分は空、超過分は切り捨てて処理します。",
			lineNumber, len(fs.names), fs.TokenCount())
	}
	return m.FieldSetMapper.MapFieldSet(fs)
}

// LenientLineCount はトークン数が一致しなかった行の数を返します。
func (m *DefaultLineMapper[T]) LenientLineCount() int {
	return int(m.lenientLines.Load())
}
