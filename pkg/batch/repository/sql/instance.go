package sql

import (
	"context"
	"database/sql"
	"errors"

	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
	"customerbatch/pkg/batch/util/serialization"
)

const module = "job_repository"

// SQLJobInstanceRepository は JobInstance の SQL データベース実装です。
type SQLJobInstanceRepository struct {
	dbConnection database.DBConnection
}

// NewSQLJobInstanceRepository は新しい SQLJobInstanceRepository のインスタンスを作成します。
func NewSQLJobInstanceRepository(dbConn database.DBConnection) *SQLJobInstanceRepository {
	return &SQLJobInstanceRepository{dbConnection: dbConn}
}

func (r *SQLJobInstanceRepository) q(query string) string {
	return database.Rebind(r.dbConnection.Dialect(), query)
}

// SaveJobInstance は新しい JobInstance をデータベースに保存します。
func (r *SQLJobInstanceRepository) SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error {
	paramsJSON, err := serialization.MarshalJobParameters(jobInstance.Parameters)
	if err != nil {
		return exception.NewBatchError(module, "JobInstance JobParameters のシリアライズに失敗しました", err, false, false)
	}

	query := `
    INSERT INTO job_instances (id, job_name, job_parameters, parameters_hash, create_time, version)
    VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.dbConnection.ExecContext(ctx, r.q(query),
		jobInstance.ID,
		jobInstance.JobName,
		string(paramsJSON),
		jobInstance.ParametersHash,
		jobInstance.CreateTime,
		jobInstance.Version,
	)
	if err != nil {
		return exception.NewBatchErrorf(module, "JobInstance (ID: %s) の保存に失敗しました: %w", jobInstance.ID, err)
	}
	logger.Debugf("JobInstance (ID: %s, JobName: %s) を保存しました。", jobInstance.ID, jobInstance.JobName)
	return nil
}

const selectJobInstance = `
    SELECT id, job_name, job_parameters, parameters_hash, create_time, version
    FROM job_instances`

// FindJobInstanceByJobNameAndParameters はジョブ名とパラメータのハッシュが一致する JobInstance を検索します。
func (r *SQLJobInstanceRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError(module, "検索用 JobParameters のハッシュ計算に失敗しました", err, false, false)
	}
	row := r.dbConnection.QueryRowContext(ctx, r.q(selectJobInstance+` WHERE job_name = $1 AND parameters_hash = $2`), jobName, hash)
	ji, err := scanJobInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobInstance (JobName: %s) の検索に失敗しました: %w", jobName, err)
	}
	return ji, nil
}

// FindJobInstanceByID は指定された ID の JobInstance を取得します。
func (r *SQLJobInstanceRepository) FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error) {
	row := r.dbConnection.QueryRowContext(ctx, r.q(selectJobInstance+` WHERE id = $1`), instanceID)
	ji, err := scanJobInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) が見つかりませんでした", instanceID)
	}
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) の取得に失敗しました: %w", instanceID, err)
	}
	return ji, nil
}

// GetJobInstanceCount は指定されたジョブ名の JobInstance の数を返します。
func (r *SQLJobInstanceRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	var count int
	err := r.dbConnection.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM job_instances WHERE job_name = $1`), jobName).Scan(&count)
	if err != nil {
		return 0, exception.NewBatchErrorf(module, "JobInstance 数の取得に失敗しました (JobName: %s): %w", jobName, err)
	}
	return count, nil
}

// GetJobNames はリポジトリに存在する全てのジョブ名を返します。
func (r *SQLJobInstanceRepository) GetJobNames(ctx context.Context) ([]string, error) {
	rows, err := r.dbConnection.QueryContext(ctx, `SELECT DISTINCT job_name FROM job_instances ORDER BY job_name`)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "ジョブ名の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, exception.NewBatchErrorf(module, "ジョブ名のスキャンに失敗しました: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, exception.NewBatchErrorf(module, "ジョブ名の取得中にエラーが発生しました: %w", err)
	}
	return names, nil
}

func scanJobInstance(row *sql.Row) (*core.JobInstance, error) {
	ji := &core.JobInstance{}
	var paramsJSON sql.NullString
	if err := row.Scan(&ji.ID, &ji.JobName, &paramsJSON, &ji.ParametersHash, &ji.CreateTime, &ji.Version); err != nil {
		return nil, err
	}
	params, err := serialization.UnmarshalJobParameters([]byte(paramsJSON.String))
	if err != nil {
		logger.Errorf("JobInstance (ID: %s) の JobParameters のデコードに失敗しました: %v", ji.ID, err)
		params = core.NewJobParameters()
	}
	ji.Parameters = params
	return ji, nil
}
