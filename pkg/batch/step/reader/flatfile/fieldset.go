package flatfile

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldSet は 1 行分のトークンを名前でアクセスできるようにまとめたものです。
type FieldSet struct {
	names      []string
	values     []string
	index      map[string]int
	tokenCount int
}

func newFieldSet(names, values []string, tokenCount int) FieldSet {
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	return FieldSet{names: names, values: values, index: index, tokenCount: tokenCount}
}

// Names はフィールド名の一覧を返します。
func (fs FieldSet) Names() []string {
	return append([]string(nil), fs.names...)
}

// Values はトークンの一覧を返します。
func (fs FieldSet) Values() []string {
	return append([]string(nil), fs.values...)
}

// TokenCount は補完・切り捨て前に行から得られたトークン数です。
func (fs FieldSet) TokenCount() int {
	return fs.tokenCount
}

// Lenient はトークン数が Names と一致せず、補完または切り捨てが行われたかを返します。
func (fs FieldSet) Lenient() bool {
	return len(fs.names) > 0 && fs.tokenCount != len(fs.names)
}

// ReadString は name に対応するトークンをそのまま返します。
func (fs FieldSet) ReadString(name string) (string, error) {
	i, ok := fs.index[name]
	if !ok {
		return "", fmt.Errorf("フィールド '%s' は存在しません", name)
	}
	return fs.values[i], nil
}

// ReadInt は name に対応するトークンを整数として返します。
// 空 (空白のみを含む) の場合は 0 を返します。
func (fs FieldSet) ReadInt(name string) (int, error) {
	s, err := fs.ReadString(name)
	if err != nil {
		return 0, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("フィールド '%s' の値 '%s' を整数に変換できません: %w", name, s, err)
	}
	return n, nil
}
