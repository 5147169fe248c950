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

// SQLJobExecutionRepository は JobExecution の SQL データベース実装です。
type SQLJobExecutionRepository struct {
	dbConnection database.DBConnection
	steps        *SQLStepExecutionRepository
}

// NewSQLJobExecutionRepository は新しい SQLJobExecutionRepository のインスタンスを作成します。
// steps は JobExecution のロード時に StepExecution を取得するために使用します。
func NewSQLJobExecutionRepository(dbConn database.DBConnection, steps *SQLStepExecutionRepository) *SQLJobExecutionRepository {
	return &SQLJobExecutionRepository{dbConnection: dbConn, steps: steps}
}

func (r *SQLJobExecutionRepository) q(query string) string {
	return database.Rebind(r.dbConnection.Dialect(), query)
}

type jobExecutionColumns struct {
	params   string
	failures string
	context  string
}

func marshalJobExecution(je *core.JobExecution) (jobExecutionColumns, error) {
	var cols jobExecutionColumns
	params, err := serialization.MarshalJobParameters(je.Parameters)
	if err != nil {
		return cols, err
	}
	failures, err := serialization.MarshalFailures(je.Failures)
	if err != nil {
		return cols, err
	}
	ec, err := serialization.MarshalExecutionContext(je.ExecutionContext)
	if err != nil {
		return cols, err
	}
	return jobExecutionColumns{params: string(params), failures: string(failures), context: string(ec)}, nil
}

// SaveJobExecution は新しい JobExecution をデータベースに保存します。
func (r *SQLJobExecutionRepository) SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	cols, err := marshalJobExecution(jobExecution)
	if err != nil {
		return exception.NewBatchError(module, "JobExecution のシリアライズに失敗しました", err, false, false)
	}

	query := `
    INSERT INTO job_executions (id, job_instance_id, job_name, start_time, end_time, status, exit_status, exit_code, create_time, last_updated, version, job_parameters, failure_exceptions, execution_context, current_step_name)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = r.dbConnection.ExecContext(ctx, r.q(query),
		jobExecution.ID,
		jobExecution.JobInstanceID,
		jobExecution.JobName,
		nullTime(jobExecution.StartTime),
		nullTime(jobExecution.EndTime),
		string(jobExecution.Status),
		string(jobExecution.ExitStatus),
		jobExecution.ExitCode,
		jobExecution.CreateTime,
		jobExecution.LastUpdated,
		jobExecution.Version,
		cols.params,
		cols.failures,
		cols.context,
		jobExecution.CurrentStepName,
	)
	if err != nil {
		return exception.NewBatchErrorf(module, "JobExecution (ID: %s) の保存に失敗しました: %w", jobExecution.ID, err)
	}
	logger.Debugf("JobExecution (ID: %s, Status: %s) を保存しました。", jobExecution.ID, jobExecution.Status)
	return nil
}

// UpdateJobExecution は既存の JobExecution の状態を更新します。
// Version が一致しない場合は他のプロセスが更新済みとみなしエラーを返します。
func (r *SQLJobExecutionRepository) UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	cols, err := marshalJobExecution(jobExecution)
	if err != nil {
		return exception.NewBatchError(module, "JobExecution のシリアライズに失敗しました", err, false, false)
	}

	now := time.Now()
	query := `
    UPDATE job_executions
    SET start_time = $1, end_time = $2, status = $3, exit_status = $4, exit_code = $5, last_updated = $6, version = $7, failure_exceptions = $8, execution_context = $9, current_step_name = $10
    WHERE id = $11 AND version = $12`
	res, err := r.dbConnection.ExecContext(ctx, r.q(query),
		nullTime(jobExecution.StartTime),
		nullTime(jobExecution.EndTime),
		string(jobExecution.Status),
		string(jobExecution.ExitStatus),
		jobExecution.ExitCode,
		now,
		jobExecution.Version+1,
		cols.failures,
		cols.context,
		jobExecution.CurrentStepName,
		jobExecution.ID,
		jobExecution.Version,
	)
	if err != nil {
		return exception.NewBatchErrorf(module, "JobExecution (ID: %s) の更新に失敗しました: %w", jobExecution.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return exception.NewBatchErrorf(module, "JobExecution (ID: %s) の更新結果取得に失敗しました: %w", jobExecution.ID, err)
	}
	if affected == 0 {
		return exception.NewBatchErrorf(module, "JobExecution (ID: %s, Version: %d) の更新対象が見つかりませんでした (またはバージョン不一致)", jobExecution.ID, jobExecution.Version)
	}
	jobExecution.Version++
	jobExecution.LastUpdated = now
	logger.Debugf("JobExecution (ID: %s, Status: %s) を更新しました。", jobExecution.ID, jobExecution.Status)
	return nil
}

const selectJobExecution = `
    SELECT id, job_instance_id, job_name, start_time, end_time, status, exit_status, exit_code, create_time, last_updated, version, job_parameters, failure_exceptions, execution_context, current_step_name
    FROM job_executions`

// FindJobExecutionByID は指定された ID の JobExecution を StepExecution と合わせて取得します。
func (r *SQLJobExecutionRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error) {
	rows, err := r.dbConnection.QueryContext(ctx, r.q(selectJobExecution+` WHERE id = $1`), executionID)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobExecution (ID: %s) の取得に失敗しました: %w", executionID, err)
	}
	executions, err := scanJobExecutions(rows)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobExecution (ID: %s) の取得に失敗しました: %w", executionID, err)
	}
	if len(executions) == 0 {
		return nil, exception.NewBatchErrorf(module, "JobExecution (ID: %s) が見つかりませんでした", executionID)
	}
	je := executions[0]
	if err := r.attachSteps(ctx, je); err != nil {
		return nil, err
	}
	return je, nil
}

// FindLatestJobExecution は JobInstance の最新の JobExecution を取得します。
func (r *SQLJobExecutionRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error) {
	rows, err := r.dbConnection.QueryContext(ctx, r.q(selectJobExecution+` WHERE job_instance_id = $1 ORDER BY create_time DESC LIMIT 1`), jobInstanceID)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "最新の JobExecution (JobInstanceID: %s) の取得に失敗しました: %w", jobInstanceID, err)
	}
	executions, err := scanJobExecutions(rows)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "最新の JobExecution (JobInstanceID: %s) の取得に失敗しました: %w", jobInstanceID, err)
	}
	if len(executions) == 0 {
		return nil, nil
	}
	je := executions[0]
	if err := r.attachSteps(ctx, je); err != nil {
		return nil, err
	}
	return je, nil
}

// FindJobExecutionsByJobInstance は JobInstance に関連する全ての JobExecution を作成順に取得します。
func (r *SQLJobExecutionRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*core.JobExecution, error) {
	rows, err := r.dbConnection.QueryContext(ctx, r.q(selectJobExecution+` WHERE job_instance_id = $1 ORDER BY create_time ASC`), jobInstanceID)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobExecution 一覧 (JobInstanceID: %s) の取得に失敗しました: %w", jobInstanceID, err)
	}
	executions, err := scanJobExecutions(rows)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobExecution 一覧 (JobInstanceID: %s) の取得に失敗しました: %w", jobInstanceID, err)
	}
	return executions, nil
}

func (r *SQLJobExecutionRepository) attachSteps(ctx context.Context, je *core.JobExecution) error {
	if r.steps == nil {
		return nil
	}
	steps, err := r.steps.FindStepExecutionsByJobExecutionID(ctx, je.ID)
	if err != nil {
		return err
	}
	for _, se := range steps {
		se.JobExecution = je
	}
	je.StepExecutions = steps
	return nil
}

func scanJobExecutions(rows *sql.Rows) ([]*core.JobExecution, error) {
	defer rows.Close()

	var executions []*core.JobExecution
	for rows.Next() {
		je := &core.JobExecution{StepExecutions: make([]*core.StepExecution, 0)}
		var (
			startTime, endTime                    sql.NullTime
			status, exitStatus                    string
			paramsJSON, failuresJSON, contextJSON sql.NullString
			currentStep                           sql.NullString
		)
		err := rows.Scan(
			&je.ID, &je.JobInstanceID, &je.JobName,
			&startTime, &endTime,
			&status, &exitStatus, &je.ExitCode,
			&je.CreateTime, &je.LastUpdated, &je.Version,
			&paramsJSON, &failuresJSON, &contextJSON, &currentStep,
		)
		if err != nil {
			return nil, err
		}
		je.StartTime = startTime.Time
		je.EndTime = endTime.Time
		je.Status = core.JobStatus(status)
		je.ExitStatus = core.ExitStatus(exitStatus)
		je.CurrentStepName = currentStep.String

		if je.Parameters, err = serialization.UnmarshalJobParameters([]byte(paramsJSON.String)); err != nil {
			return nil, err
		}
		if je.Failures, err = serialization.UnmarshalFailures([]byte(failuresJSON.String)); err != nil {
			return nil, err
		}
		if je.ExecutionContext, err = serialization.UnmarshalExecutionContext([]byte(contextJSON.String)); err != nil {
			return nil, err
		}
		executions = append(executions, je)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return executions, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

