// Package connector はデータベースタイプごとの接続方法を登録・選択します。
// 各コネクタは init 関数で自身を登録します。
package connector

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

// ErrMigrationUnsupported はそのデータベースタイプでマイグレーションを実行できないことを示します。
var ErrMigrationUnsupported = errors.New("このデータベースタイプはマイグレーションに対応していません")

// DBConnector は特定のデータベースタイプへの接続情報を組み立てるインターフェースです。
type DBConnector interface {
	// DriverName は sql.Open に渡すドライバ名を返します。
	DriverName() string
	// DSN は sql.Open に渡す接続文字列を返します。
	DSN(cfg config.DatabaseConfig) (string, error)
	// MigrationURL は golang-migrate が期待するデータベース URL を返します。
	// table が空でなければマイグレーション履歴テーブル名として指定します。
	MigrationURL(cfg config.DatabaseConfig, table string) (string, error)
}

var connectors = make(map[string]DBConnector)

// RegisterConnector は指定されたタイプ名で DBConnector を登録します。
func RegisterConnector(dbType string, c DBConnector) {
	dbType = strings.ToLower(dbType)
	if _, exists := connectors[dbType]; exists {
		logger.Warnf("DBConnector '%s' は既に登録されています。上書きします。", dbType)
	}
	connectors[dbType] = c
}

// Lookup は登録済みの DBConnector を返します。
func Lookup(dbType string) (DBConnector, error) {
	c, ok := connectors[strings.ToLower(dbType)]
	if !ok {
		return nil, exception.NewBatchErrorf("database", "未対応のデータベースタイプ: %s", dbType)
	}
	return c, nil
}

// GetSQLDB は設定に基づいて *sql.DB を開き、コネクションプールを設定します。
// 接続確認 (Ping) は行いません。
func GetSQLDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	c, err := Lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	dsn, err := c.DSN(cfg)
	if err != nil {
		return nil, exception.NewBatchError("database", "接続文字列の構築に失敗しました", err, false, false)
	}
	db, err := sql.Open(c.DriverName(), dsn)
	if err != nil {
		return nil, exception.NewBatchError("database", cfg.Type+" への接続に失敗しました", err, false, false)
	}
	applyPoolSettings(db, cfg)
	return db, nil
}

// NewDBConnectionFromConfig は設定に基づいてデータベースへ接続し、Ping で疎通を確認します。
func NewDBConnectionFromConfig(ctx context.Context, cfg config.DatabaseConfig) (database.DBConnection, error) {
	db, err := GetSQLDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, exception.NewBatchError("database", cfg.Type+" への Ping に失敗しました", err, false, false)
	}
	logger.Debugf("%s に正常に接続しました。MaxOpenConns: %d, MaxIdleConns: %d, ConnMaxLifetime: %d秒",
		cfg.Type, cfg.ConnectionPool.MaxOpenConns, cfg.ConnectionPool.MaxIdleConns, cfg.ConnectionPool.ConnMaxLifetimeSeconds)
	return database.NewSQLDBAdapter(db, cfg.Type), nil
}

func applyPoolSettings(db *sql.DB, cfg config.DatabaseConfig) {
	pool := cfg.ConnectionPool
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetimeSeconds > 0 {
		db.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeSeconds) * time.Second)
	}
}

func appendQuery(rawURL, key, value string) string {
	if value == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + value
}
