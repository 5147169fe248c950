package connector

import (
	"errors"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/redshift"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

// RunMigrations は埋め込まれたマイグレーションファイル群 (fsys 直下の *.sql) を適用します。
// table はマイグレーション履歴テーブル名で、空の場合は golang-migrate のデフォルトを使用します。
// マイグレーションに対応していないデータベースタイプでは警告を出してスキップします。
func RunMigrations(cfg config.DatabaseConfig, fsys fs.FS, table string) error {
	c, err := Lookup(cfg.Type)
	if err != nil {
		return err
	}
	databaseURL, err := c.MigrationURL(cfg, table)
	if errors.Is(err, ErrMigrationUnsupported) {
		logger.Warnf("データベースタイプ '%s' はマイグレーションに対応していません。テーブル '%s' の管理対象をスキップします。", cfg.Type, table)
		return nil
	}
	if err != nil {
		return exception.NewBatchError("database_migration", "マイグレーション URL の構築に失敗しました", err, false, false)
	}

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return exception.NewBatchError("database_migration", "マイグレーションソースの読み込みに失敗しました", err, false, false)
	}

	logger.Infof("データベースマイグレーションを開始します。DBタイプ: %s, 履歴テーブル: %s", cfg.Type, table)
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return exception.NewBatchError("database_migration", "マイグレーションインスタンスの作成に失敗しました", err, false, false)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warnf("マイグレーションのクローズに失敗しました: source=%v, database=%v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Infof("マイグレーションは不要です。データベースは最新の状態です。(%s)", table)
			return nil
		}
		return exception.NewBatchError("database_migration", "マイグレーションの適用に失敗しました", err, false, false)
	}
	logger.Infof("マイグレーションが正常に完了しました。(%s)", table)
	return nil
}
