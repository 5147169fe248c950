// Package repository は設定に応じた JobRepository の実装を生成します。
package repository

import (
	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/repository/memory"
	sqlrepo "customerbatch/pkg/batch/repository/sql"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

// NewJobRepository は batch.job_repository.type に応じた JobRepository を生成します。
// "sql" の場合は dbConn 上のテーブルを使用します。
func NewJobRepository(cfg config.Config, dbConn database.DBConnection) (job.JobRepository, error) {
	switch cfg.Batch.JobRepository.Type {
	case "memory":
		logger.Debugf("インメモリ Job Repository を生成しました。")
		return memory.NewJobRepository(), nil
	case "sql", "":
		if dbConn == nil {
			return nil, exception.NewBatchErrorf("repository_factory", "SQL Job Repository にはデータベース接続が必要です")
		}
		logger.Debugf("SQL Job Repository を生成しました (Dialect: %s)。", dbConn.Dialect())
		return sqlrepo.NewSQLJobRepository(dbConn), nil
	default:
		return nil, exception.NewBatchErrorf("repository_factory", "未対応のジョブリポジトリタイプです: %s", cfg.Batch.JobRepository.Type)
	}
}
