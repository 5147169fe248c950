// Package flatfile は区切り文字形式のテキストファイルを 1 行 1 アイテムとして読み込む ItemReader を提供します。
package flatfile

import (
	"fmt"
	"strings"
)

// IncorrectTokenCountError は strict モードで行のトークン数が Names の数と一致しない場合のエラーです。
type IncorrectTokenCountError struct {
	Expected int
	Actual   int
	Line     string
}

func (e *IncorrectTokenCountError) Error() string {
	return fmt.Sprintf("トークン数が一致しません: 期待値 %d, 実際 %d (行: %q)", e.Expected, e.Actual, e.Line)
}

// DelimitedLineTokenizer は 1 行を区切り文字で分割し、名前付きの FieldSet に変換します。
//
// QuoteCharacter で始まるトークンは区切り文字を含むことができ、
// 囲み内で QuoteCharacter を 2 つ続けると 1 文字として扱います。
// トークンの途中に現れた QuoteCharacter は通常の文字です。
// Strict が false の場合、トークンが不足すれば空文字で補い、過剰なトークンは切り捨てます。
type DelimitedLineTokenizer struct {
	Delimiter      rune
	QuoteCharacter rune
	Names          []string
	Strict         bool
}

// NewDelimitedLineTokenizer はカンマ区切り、ダブルクォート囲みの非 strict な Tokenizer を作成します。
func NewDelimitedLineTokenizer(names ...string) *DelimitedLineTokenizer {
	return &DelimitedLineTokenizer{
		Delimiter:      ',',
		QuoteCharacter: '"',
		Names:          names,
	}
}

// Tokenize は line を分割して FieldSet を返します。
func (t *DelimitedLineTokenizer) Tokenize(line string) (FieldSet, error) {
	tokens := t.split(line)
	actual := len(tokens)

	if len(t.Names) == 0 {
		return newFieldSet(nil, tokens, actual), nil
	}
	if actual != len(t.Names) {
		if t.Strict {
			return FieldSet{}, &IncorrectTokenCountError{Expected: len(t.Names), Actual: actual, Line: line}
		}
		if actual > len(t.Names) {
			tokens = tokens[:len(t.Names)]
		}
		for len(tokens) < len(t.Names) {
			tokens = append(tokens, "")
		}
	}
	return newFieldSet(t.Names, tokens, actual), nil
}

func (t *DelimitedLineTokenizer) split(line string) []string {
	delim := t.Delimiter
	if delim == 0 {
		delim = ','
	}
	quote := t.QuoteCharacter

	var tokens []string
	var current strings.Builder
	inQuote := false
	atStart := true
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0 && r == quote && inQuote:
			if i+1 < len(runes) && runes[i+1] == quote {
				current.WriteRune(quote)
				i++
			} else {
				inQuote = false
			}
		case quote != 0 && r == quote && atStart:
			inQuote = true
		case r == delim && !inQuote:
			tokens = append(tokens, current.String())
			current.Reset()
			atStart = true
			continue
		default:
			current.WriteRune(r)
		}
		atStart = false
	}
	tokens = append(tokens, current.String())
	return tokens
}
