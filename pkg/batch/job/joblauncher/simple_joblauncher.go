package joblauncher

import (
	"context"
	"errors"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const module = "job_launcher"

var (
	// ErrJobInstanceAlreadyComplete は同じパラメータの JobInstance が既に COMPLETED の場合に返されます。
	ErrJobInstanceAlreadyComplete = errors.New("job instance already complete")
	// ErrJobExecutionAlreadyRunning は同じ JobInstance の JobExecution が実行中の場合に返されます。
	ErrJobExecutionAlreadyRunning = errors.New("job execution already running")
)

// seeder は採番の起点を外部から与えられる JobParametersIncrementer です。
type seeder interface {
	Seed(last int)
}

// SimpleJobLauncher は JobLauncher の同期実装です。
// JobExecution のライフサイクル管理と JobRepository への永続化を行います。
type SimpleJobLauncher struct {
	jobRepository job.JobRepository
	jobProvider   JobProvider
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher は新しい SimpleJobLauncher のインスタンスを作成します。
func NewSimpleJobLauncher(jobRepository job.JobRepository, jobProvider JobProvider) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository: jobRepository,
		jobProvider:   jobProvider,
	}
}

// Launch は指定された Job を起動し、終了まで待ちます。
//
// 起動処理 (ジョブの生成、パラメータ検証、JobInstance の取得) に失敗した場合は JobExecution を作成せずにエラーを返します。
// 同じ JobInstance が既に COMPLETED の場合は ErrJobInstanceAlreadyComplete を返します。
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error) {
	logger.Infof("JobLauncher を使用して Job '%s' を起動します。", jobName)

	batchJob, err := l.jobProvider.CreateJob(jobName, params)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "Job '%s' の作成に失敗しました: %w", jobName, err)
	}
	if err := batchJob.ValidateParameters(params); err != nil {
		return nil, exception.NewBatchErrorf(module, "Job '%s' の JobParameters のバリデーションに失敗しました: %w", jobName, err)
	}

	params, err = l.applyIncrementer(ctx, jobName, params)
	if err != nil {
		return nil, err
	}

	jobInstance, err := l.findOrCreateJobInstance(ctx, jobName, params)
	if err != nil {
		return nil, err
	}

	jobExecution := core.NewJobExecution(jobInstance.ID, jobName, params)
	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		return nil, exception.NewBatchErrorf(module, "JobExecution (ID: %s) の初期保存に失敗しました: %w", jobExecution.ID, err)
	}

	if err := jobExecution.MarkAsStarted(); err != nil {
		return jobExecution, exception.NewBatchErrorf(module, "JobExecution (ID: %s) を開始できません: %w", jobExecution.ID, err)
	}
	if err := l.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		jobExecution.MarkAsFailed(err)
		l.saveFinalState(ctx, jobExecution)
		return jobExecution, exception.NewBatchErrorf(module, "JobExecution (ID: %s) の STARTED 状態への更新に失敗しました: %w", jobExecution.ID, err)
	}

	logger.Infof("Job '%s' (Execution ID: %s, Job Instance ID: %s) を実行します。", jobName, jobExecution.ID, jobInstance.ID)
	runErr := batchJob.Run(ctx, jobExecution, params)
	if runErr != nil && jobExecution.Status != core.BatchStatusFailed {
		jobExecution.MarkAsFailed(runErr)
	}

	if err := l.saveFinalState(ctx, jobExecution); err != nil && runErr == nil {
		runErr = err
	}
	return jobExecution, runErr
}

// applyIncrementer は JSL に定義された JobParametersIncrementer でパラメータを更新します。
func (l *SimpleJobLauncher) applyIncrementer(ctx context.Context, jobName string, params core.JobParameters) (core.JobParameters, error) {
	incrementer, err := l.jobProvider.GetJobParametersIncrementer(jobName)
	if err != nil {
		return params, exception.NewBatchErrorf(module, "Job '%s' の JobParametersIncrementer の取得に失敗しました: %w", jobName, err)
	}
	if incrementer == nil {
		return params, nil
	}
	if s, ok := incrementer.(seeder); ok {
		count, err := l.jobRepository.GetJobInstanceCount(ctx, jobName)
		if err != nil {
			return params, exception.NewBatchErrorf(module, "Job '%s' の JobInstance 数の取得に失敗しました: %w", jobName, err)
		}
		s.Seed(count)
	}
	next := incrementer.GetNext(params)
	logger.Infof("JobParametersIncrementer により JobParameters を更新しました: %v", next.Params)
	return next, nil
}

func (l *SimpleJobLauncher) findOrCreateJobInstance(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	jobInstance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, params)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobInstance の検索に失敗しました: %w", err)
	}

	if jobInstance != nil {
		latest, err := l.jobRepository.FindLatestJobExecution(ctx, jobInstance.ID)
		if err != nil {
			return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) の最新 JobExecution の取得に失敗しました: %w", jobInstance.ID, err)
		}
		if latest != nil {
			switch latest.Status {
			case core.BatchStatusCompleted:
				return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) は既に完了しています: %w", jobInstance.ID, ErrJobInstanceAlreadyComplete)
			case core.BatchStatusStarting, core.BatchStatusStarted:
				return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) の JobExecution (ID: %s) が実行中です: %w", jobInstance.ID, latest.ID, ErrJobExecutionAlreadyRunning)
			}
		}
		logger.Infof("既存の JobInstance (ID: %s) で新しい JobExecution を開始します。", jobInstance.ID)
		return jobInstance, nil
	}

	jobInstance, err = core.NewJobInstance(jobName, params)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobInstance の作成に失敗しました: %w", err)
	}
	if err := l.jobRepository.SaveJobInstance(ctx, jobInstance); err != nil {
		return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) の保存に失敗しました: %w", jobInstance.ID, err)
	}
	logger.Infof("新しい JobInstance (ID: %s, JobName: %s) を作成しました。", jobInstance.ID, jobName)
	return jobInstance, nil
}

// saveFinalState は終了した JobExecution を保存します。実行がキャンセルされていても保存します。
func (l *SimpleJobLauncher) saveFinalState(ctx context.Context, jobExecution *core.JobExecution) error {
	if err := l.jobRepository.UpdateJobExecution(context.WithoutCancel(ctx), jobExecution); err != nil {
		logger.Errorf("JobExecution (ID: %s) の最終状態の更新に失敗しました: %v", jobExecution.ID, err)
		return exception.NewBatchErrorf(module, "JobExecution (ID: %s) の最終状態の永続化に失敗しました: %w", jobExecution.ID, err)
	}
	logger.Debugf("JobExecution (ID: %s) を最終状態 (%s) で保存しました。", jobExecution.ID, jobExecution.Status)
	return nil
}
