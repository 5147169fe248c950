package flatfile

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const (
	module        = "flat_file_reader"
	utf8BOM       = "\uFEFF"
	maxLineLength = 1024 * 1024
)

// lenientLineCounter はトークン数が一致しなかった行数を報告できる LineMapper です。
type lenientLineCounter interface {
	LenientLineCount() int
}

// FlatFileItemReader はテキストファイルを 1 行ずつ読み込み、LineMapper でアイテムに変換する ItemReader です。
//
// 先頭の LinesToSkip 行 (ヘッダなど) と空行は読み飛ばします。
// ファイルを最後まで読むと io.EOF を返し、以降も io.EOF を返し続けます。
// 読み込み位置からの再開には対応していません。
type FlatFileItemReader[T any] struct {
	// Name は ExecutionContext のキーの接頭辞として使用します。
	Name        string
	Resource    string
	LinesToSkip int
	Encoding    string
	LineMapper  LineMapper[T]

	file      *os.File
	scanner   *bufio.Scanner
	lineCount int
	readCount int
	exhausted bool
}

// NewFlatFileItemReader は新しい FlatFileItemReader を作成します。
func NewFlatFileItemReader[T any](name, resource string, linesToSkip int, lineMapper LineMapper[T]) *FlatFileItemReader[T] {
	return &FlatFileItemReader[T]{
		Name:        name,
		Resource:    resource,
		LinesToSkip: linesToSkip,
		Encoding:    "UTF-8",
		LineMapper:  lineMapper,
	}
}

// Open はファイルを開き、LinesToSkip 行を読み飛ばします。
// ファイルが存在しない、または開けない場合はエラーを返します。
func (r *FlatFileItemReader[T]) Open(ctx context.Context, ec core.ExecutionContext) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if r.file != nil {
		return exception.NewBatchErrorf(module, "リーダー '%s' は既にオープンされています", r.Name)
	}
	if r.LineMapper == nil {
		return exception.NewBatchErrorf(module, "リーダー '%s' に LineMapper が設定されていません", r.Name)
	}
	if !isUTF8(r.Encoding) {
		return exception.NewBatchErrorf(module, "未対応のエンコーディングです: %s", r.Encoding)
	}
	if n, ok := ec.GetInt(r.key("read.count")); ok && n > 0 {
		logger.Warnf("リーダー '%s' は読み込み位置からの再開に対応していません。ファイルの先頭から読み込みます。(前回の読み込み件数: %d)", r.Name, n)
	}

	f, err := os.Open(r.Resource)
	if err != nil {
		return exception.NewBatchErrorf(module, "入力ファイル '%s' を開けませんでした: %w", r.Resource, err)
	}
	r.file = f
	r.scanner = bufio.NewScanner(f)
	r.scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	r.lineCount = 0
	r.readCount = 0
	r.exhausted = false

	for i := 0; i < r.LinesToSkip; i++ {
		line, ok, err := r.nextLine()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		logger.Debugf("リーダー '%s': 行 %d をスキップしました: %s", r.Name, r.lineCount, line)
	}
	logger.Infof("入力ファイル '%s' をオープンしました。", r.Resource)
	return nil
}

// Read は次の空でない行をアイテムに変換して返します。
func (r *FlatFileItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
	}
	if r.scanner == nil {
		return zero, exception.NewBatchErrorf(module, "リーダー '%s' はオープンされていません", r.Name)
	}
	if r.exhausted {
		return zero, io.EOF
	}

	for {
		line, ok, err := r.nextLine()
		if err != nil {
			return zero, err
		}
		if !ok {
			r.exhausted = true
			logger.Debugf("リーダー '%s': ファイルの終端に達しました。読み込み件数: %d", r.Name, r.readCount)
			return zero, io.EOF
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		item, err := r.LineMapper.MapLine(line, r.lineCount)
		if err != nil {
			return zero, exception.NewBatchErrorf(module, "'%s' の %d 行目の変換に失敗しました: %w", r.Resource, r.lineCount, err)
		}
		r.readCount++
		return item, nil
	}
}

// nextLine は次の物理行を返します。終端に達した場合 ok は false です。
func (r *FlatFileItemReader[T]) nextLine() (string, bool, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", false, exception.NewBatchErrorf(module, "'%s' の %d 行目の読み込みに失敗しました: %w", r.Resource, r.lineCount+1, err)
		}
		return "", false, nil
	}
	r.lineCount++
	line := r.scanner.Text()
	if r.lineCount == 1 {
		line = strings.TrimPrefix(line, utf8BOM)
	}
	return strings.TrimSuffix(line, "\r"), true, nil
}

// Close はファイルを閉じます。複数回呼び出しても安全です。
func (r *FlatFileItemReader[T]) Close(ctx context.Context) error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.scanner = nil
	if err != nil {
		return exception.NewBatchErrorf(module, "入力ファイル '%s' のクローズに失敗しました: %w", r.Resource, err)
	}
	logger.Debugf("入力ファイル '%s' をクローズしました。", r.Resource)
	return nil
}

// GetExecutionContext は読み込み件数などの状態を ExecutionContext として返します。
func (r *FlatFileItemReader[T]) GetExecutionContext(ctx context.Context) (core.ExecutionContext, error) {
	ec := core.NewExecutionContext()
	ec.Put(r.key("read.count"), r.readCount)
	ec.Put(r.key("line.count"), r.lineCount)
	if counter, ok := r.LineMapper.(lenientLineCounter); ok {
		ec.Put(r.key("lenient.count"), counter.LenientLineCount())
	}
	return ec, nil
}

func (r *FlatFileItemReader[T]) key(suffix string) string {
	name := r.Name
	if name == "" {
		name = "flatFileItemReader"
	}
	return name + "." + suffix
}

func isUTF8(encoding string) bool {
	switch strings.ToUpper(strings.ReplaceAll(encoding, "-", "")) {
	case "", "UTF8":
		return true
	default:
		return false
	}
}

var _ core.ItemReader[any] = (*FlatFileItemReader[any])(nil)
