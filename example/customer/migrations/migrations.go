// Package migrations は customers テーブルの定義を埋め込みます。
package migrations

import (
	"embed"
	"io/fs"
	"strings"
)

//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var files embed.FS

// ForDialect は dialect に対応する customers テーブルのマイグレーションファイル群を返します。
// redshift は postgres 用の定義を使用します。snowflake など定義の無いデータベースでは false を返します。
func ForDialect(dialect string) (fs.FS, bool) {
	dir := strings.ToLower(dialect)
	if dir == "redshift" {
		dir = "postgres"
	}
	switch dir {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, false
	}
	sub, err := fs.Sub(files, dir)
	if err != nil {
		return nil, false
	}
	return sub, true
}
