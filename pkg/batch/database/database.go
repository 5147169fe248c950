// Package database はバッチフレームワークが使用するデータベース接続とトランザクションの抽象化を提供します。
package database

import (
	"context"
	"database/sql"
	"strings"
)

// Tx はデータベーストランザクションのインターフェースです。
// sql.Tx の必要なメソッドを抽象化します。
type Tx interface {
	Commit() error
	Rollback() error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DBConnection はデータベース接続のインターフェースです。
// sql.DB の必要なメソッドを抽象化します。
type DBConnection interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
	Close() error
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	// Dialect は接続先のデータベースタイプ (postgres, mysql など) を返します。
	Dialect() string
}

// sqlDBAdapter は sql.DB を DBConnection インターフェースに適合させるアダプターです。
type sqlDBAdapter struct {
	db      *sql.DB
	dialect string
}

// NewSQLDBAdapter は *sql.DB を DBConnection でラップします。
func NewSQLDBAdapter(db *sql.DB, dialect string) DBConnection {
	return &sqlDBAdapter{db: db, dialect: strings.ToLower(dialect)}
}

func (a *sqlDBAdapter) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := a.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (a *sqlDBAdapter) Close() error {
	return a.db.Close()
}

func (a *sqlDBAdapter) PingContext(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *sqlDBAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.db.ExecContext(ctx, query, args...)
}

func (a *sqlDBAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return a.db.QueryContext(ctx, query, args...)
}

func (a *sqlDBAdapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return a.db.QueryRowContext(ctx, query, args...)
}

func (a *sqlDBAdapter) Dialect() string {
	return a.dialect
}

// UsesDollarPlaceholders は dialect が $1, $2 ... 形式のプレースホルダを使うかどうかを返します。
func UsesDollarPlaceholders(dialect string) bool {
	switch strings.ToLower(dialect) {
	case "postgres", "redshift":
		return true
	default:
		return false
	}
}

// Rebind は $1, $2 ... 形式で書かれたクエリを dialect のプレースホルダ形式に変換します。
// mysql / sqlite / snowflake では ? に置き換えます。引数は $n の出現順に並んでいる必要があります。
// シングルクォートで囲まれたリテラル内の $ は変換しません。
func Rebind(dialect, query string) string {
	if UsesDollarPlaceholders(dialect) {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			inQuote = !inQuote
			b.WriteByte(c)
			continue
		}
		if c == '$' && !inQuote && i+1 < len(query) && isDigit(query[i+1]) {
			b.WriteByte('?')
			for i+1 < len(query) && isDigit(query[i+1]) {
				i++
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
