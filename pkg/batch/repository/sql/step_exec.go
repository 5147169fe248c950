package sql

import (
	"context"
	"database/sql"
	"time"

	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
	"customerbatch/pkg/batch/util/serialization"
)

// SQLStepExecutionRepository は StepExecution の SQL データベース実装です。
type SQLStepExecutionRepository struct {
	dbConnection database.DBConnection
}

// NewSQLStepExecutionRepository は新しい SQLStepExecutionRepository のインスタンスを作成します。
func NewSQLStepExecutionRepository(dbConn database.DBConnection) *SQLStepExecutionRepository {
	return &SQLStepExecutionRepository{dbConnection: dbConn}
}

func (r *SQLStepExecutionRepository) q(query string) string {
	return database.Rebind(r.dbConnection.Dialect(), query)
}

// SaveStepExecution は新しい StepExecution をデータベースに保存します。
func (r *SQLStepExecutionRepository) SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	if stepExecution.JobExecution == nil {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) が JobExecution に紐づいていません", stepExecution.ID)
	}
	failures, ec, err := marshalStepExecution(stepExecution)
	if err != nil {
		return exception.NewBatchError(module, "StepExecution のシリアライズに失敗しました", err, false, false)
	}

	query := `
    INSERT INTO step_executions (id, job_execution_id, step_name, start_time, end_time, status, exit_status, read_count, write_count, commit_count, rollback_count, filter_count, failure_exceptions, execution_context, last_updated, version)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err = r.dbConnection.ExecContext(ctx, r.q(query),
		stepExecution.ID,
		stepExecution.JobExecution.ID,
		stepExecution.StepName,
		nullTime(stepExecution.StartTime),
		nullTime(stepExecution.EndTime),
		string(stepExecution.Status),
		string(stepExecution.ExitStatus),
		stepExecution.ReadCount,
		stepExecution.WriteCount,
		stepExecution.CommitCount,
		stepExecution.RollbackCount,
		stepExecution.FilterCount,
		failures,
		ec,
		stepExecution.LastUpdated,
		stepExecution.Version,
	)
	if err != nil {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) の保存に失敗しました: %w", stepExecution.ID, err)
	}
	logger.Debugf("StepExecution (ID: %s, StepName: %s) を保存しました。", stepExecution.ID, stepExecution.StepName)
	return nil
}

// UpdateStepExecution は既存の StepExecution の状態を更新します。
func (r *SQLStepExecutionRepository) UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	failures, ec, err := marshalStepExecution(stepExecution)
	if err != nil {
		return exception.NewBatchError(module, "StepExecution のシリアライズに失敗しました", err, false, false)
	}

	now := time.Now()
	query := `
    UPDATE step_executions
    SET start_time = $1, end_time = $2, status = $3, exit_status = $4, read_count = $5, write_count = $6, commit_count = $7, rollback_count = $8, filter_count = $9, failure_exceptions = $10, execution_context = $11, last_updated = $12, version = $13
    WHERE id = $14 AND version = $15`
	res, err := r.dbConnection.ExecContext(ctx, r.q(query),
		nullTime(stepExecution.StartTime),
		nullTime(stepExecution.EndTime),
		string(stepExecution.Status),
		string(stepExecution.ExitStatus),
		stepExecution.ReadCount,
		stepExecution.WriteCount,
		stepExecution.CommitCount,
		stepExecution.RollbackCount,
		stepExecution.FilterCount,
		failures,
		ec,
		now,
		stepExecution.Version+1,
		stepExecution.ID,
		stepExecution.Version,
	)
	if err != nil {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) の更新に失敗しました: %w", stepExecution.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) の更新結果取得に失敗しました: %w", stepExecution.ID, err)
	}
	if affected == 0 {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s, Version: %d) の更新対象が見つかりませんでした (またはバージョン不一致)", stepExecution.ID, stepExecution.Version)
	}
	stepExecution.Version++
	stepExecution.LastUpdated = now
	logger.Debugf("StepExecution (ID: %s, Status: %s) を更新しました。", stepExecution.ID, stepExecution.Status)
	return nil
}

const selectStepExecution = `
    SELECT id, job_execution_id, step_name, start_time, end_time, status, exit_status, read_count, write_count, commit_count, rollback_count, filter_count, failure_exceptions, execution_context, last_updated, version
    FROM step_executions`

// FindStepExecutionByID は指定された ID の StepExecution を取得します。
// JobExecution には ID のみが設定されます。
func (r *SQLStepExecutionRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*core.StepExecution, error) {
	rows, err := r.dbConnection.QueryContext(ctx, r.q(selectStepExecution+` WHERE id = $1`), executionID)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "StepExecution (ID: %s) の取得に失敗しました: %w", executionID, err)
	}
	steps, err := scanStepExecutions(rows)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "StepExecution (ID: %s) の取得に失敗しました: %w", executionID, err)
	}
	if len(steps) == 0 {
		return nil, exception.NewBatchErrorf(module, "StepExecution (ID: %s) が見つかりませんでした", executionID)
	}
	return steps[0], nil
}

// FindStepExecutionsByJobExecutionID は JobExecution に関連する StepExecution を開始順に取得します。
func (r *SQLStepExecutionRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error) {
	rows, err := r.dbConnection.QueryContext(ctx, r.q(selectStepExecution+` WHERE job_execution_id = $1 ORDER BY start_time ASC`), jobExecutionID)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "StepExecution 一覧 (JobExecutionID: %s) の取得に失敗しました: %w", jobExecutionID, err)
	}
	steps, err := scanStepExecutions(rows)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "StepExecution 一覧 (JobExecutionID: %s) の取得に失敗しました: %w", jobExecutionID, err)
	}
	return steps, nil
}

func marshalStepExecution(se *core.StepExecution) (string, string, error) {
	failures, err := serialization.MarshalFailures(se.Failures)
	if err != nil {
		return "", "", err
	}
	ec, err := serialization.MarshalExecutionContext(se.ExecutionContext)
	if err != nil {
		return "", "", err
	}
	return string(failures), string(ec), nil
}

func scanStepExecutions(rows *sql.Rows) ([]*core.StepExecution, error) {
	defer rows.Close()

	steps := make([]*core.StepExecution, 0)
	for rows.Next() {
		se := &core.StepExecution{}
		var (
			jobExecutionID            string
			startTime, endTime        sql.NullTime
			status, exitStatus        string
			failuresJSON, contextJSON sql.NullString
		)
		err := rows.Scan(
			&se.ID, &jobExecutionID, &se.StepName,
			&startTime, &endTime,
			&status, &exitStatus,
			&se.ReadCount, &se.WriteCount, &se.CommitCount, &se.RollbackCount, &se.FilterCount,
			&failuresJSON, &contextJSON,
			&se.LastUpdated, &se.Version,
		)
		if err != nil {
			return nil, err
		}
		se.JobExecution = &core.JobExecution{ID: jobExecutionID}
		se.StartTime = startTime.Time
		se.EndTime = endTime.Time
		se.Status = core.JobStatus(status)
		se.ExitStatus = core.ExitStatus(exitStatus)
		if se.Failures, err = serialization.UnmarshalFailures([]byte(failuresJSON.String)); err != nil {
			return nil, err
		}
		if se.ExecutionContext, err = serialization.UnmarshalExecutionContext([]byte(contextJSON.String)); err != nil {
			return nil, err
		}
		steps = append(steps, se)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}
