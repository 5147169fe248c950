package connector

import (
	_ "github.com/mattn/go-sqlite3" // SQLite ドライバ

	"customerbatch/pkg/batch/config"
)

// sqliteConnector はローカルファイルの SQLite データベースへの接続情報を組み立てます。
// database にはファイルパスを指定します。
type sqliteConnector struct{}

func (c *sqliteConnector) DriverName() string {
	return "sqlite3"
}

func (c *sqliteConnector) DSN(cfg config.DatabaseConfig) (string, error) {
	return appendQuery(sqlitePath(cfg), "_busy_timeout", "5000"), nil
}

func (c *sqliteConnector) MigrationURL(cfg config.DatabaseConfig, table string) (string, error) {
	return appendQuery("sqlite3://"+sqlitePath(cfg), "x-migrations-table", table), nil
}

func sqlitePath(cfg config.DatabaseConfig) string {
	if cfg.Database == "" {
		return "customer.db"
	}
	return cfg.Database
}

func init() {
	RegisterConnector("sqlite", &sqliteConnector{})
}
