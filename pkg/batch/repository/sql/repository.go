// Package sql はジョブリポジトリを SQL データベース上に実装します。
// クエリは $1 形式で記述し、接続先の dialect に合わせて変換してから実行します。
package sql

import (
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/util/logger"
)

// SQLJobRepository は JobRepository の SQL データベース実装です。
// 各リポジトリの具体的な実装を埋め込み、委譲します。
type SQLJobRepository struct {
	dbConnection database.DBConnection

	*SQLJobInstanceRepository
	*SQLJobExecutionRepository
	*SQLStepExecutionRepository
}

// NewSQLJobRepository は新しい SQLJobRepository のインスタンスを作成します。
// データベース接続の所有権は呼び出し元に残ります。
func NewSQLJobRepository(dbConn database.DBConnection) *SQLJobRepository {
	steps := NewSQLStepExecutionRepository(dbConn)
	return &SQLJobRepository{
		dbConnection:               dbConn,
		SQLJobInstanceRepository:   NewSQLJobInstanceRepository(dbConn),
		SQLJobExecutionRepository:  NewSQLJobExecutionRepository(dbConn, steps),
		SQLStepExecutionRepository: steps,
	}
}

// GetDBConnection は JobRepository が使用するデータベース接続を返します。
func (r *SQLJobRepository) GetDBConnection() database.DBConnection {
	return r.dbConnection
}

// Close は何も解放しません。接続は生成元 (BatchInitializer) が閉じます。
func (r *SQLJobRepository) Close() error {
	logger.Debugf("SQL Job Repository をクローズしました。")
	return nil
}

var _ job.JobRepository = (*SQLJobRepository)(nil)
