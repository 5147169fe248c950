// Package runner はフロー定義に従ってステップを実行する Job 実装を提供します。
package runner

import (
	"context"
	"time"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const module = "flow_job"

// FlowJob は JSL で定義されたフローに基づいてジョブを実行する core.Job の実装です。
type FlowJob struct {
	id                 string
	name               string
	flow               *core.FlowDefinition
	jobRepository      job.JobRepository
	jobListeners       []core.JobExecutionListener
	requiredParameters []string
}

var _ core.Job = (*FlowJob)(nil)

// NewFlowJob は新しい FlowJob のインスタンスを作成します。
func NewFlowJob(
	id string,
	name string,
	flow *core.FlowDefinition,
	jobRepository job.JobRepository,
	jobListeners []core.JobExecutionListener,
	requiredParameters []string,
) *FlowJob {
	return &FlowJob{
		id:                 id,
		name:               name,
		flow:               flow,
		jobRepository:      jobRepository,
		jobListeners:       jobListeners,
		requiredParameters: requiredParameters,
	}
}

// JobID はジョブの ID を返します。
func (j *FlowJob) JobID() string {
	return j.id
}

// JobName はジョブ名を返します。
func (j *FlowJob) JobName() string {
	return j.name
}

// GetFlow はジョブのフロー定義を返します。
func (j *FlowJob) GetFlow() *core.FlowDefinition {
	return j.flow
}

// ValidateParameters は必須パラメータが全て指定されているかを検証します。
func (j *FlowJob) ValidateParameters(params core.JobParameters) error {
	for _, key := range j.requiredParameters {
		v, ok := params.Params[key]
		if !ok || v == nil || v == "" {
			return exception.NewBatchErrorf(module, "ジョブ '%s' の必須パラメータ '%s' が指定されていません", j.name, key)
		}
	}
	return nil
}

// Run はフロー定義の開始要素から順にステップを実行します。
// jobExecution は STARTED 状態で渡される必要があります。
// ジョブが FAILED で終了した場合は原因となったエラーを返します。
func (j *FlowJob) Run(ctx context.Context, jobExecution *core.JobExecution, jobParameters core.JobParameters) (runErr error) {
	logger.Infof("ジョブ '%s' (Execution ID: %s) を開始します。", j.name, jobExecution.ID)

	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}
	defer func() {
		if jobExecution.Status == core.BatchStatusStarted {
			// 遷移先が無いまま抜けた場合は正常終了として扱う
			j.complete(jobExecution)
		}
		if jobExecution.EndTime.IsZero() {
			jobExecution.EndTime = time.Now()
		}
		for _, l := range j.jobListeners {
			l.AfterJob(ctx, jobExecution)
		}
		logger.Infof("ジョブ '%s' (Execution ID: %s) が終了しました。最終ステータス: %s, 終了ステータス: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	}()

	currentID := j.flow.StartElement
	for currentID != "" {
		if err := ctx.Err(); err != nil {
			logger.Warnf("コンテキストがキャンセルされたため、ジョブ '%s' の実行を中断します: %v", j.name, err)
			jobExecution.MarkAsFailed(err)
			return err
		}

		s, ok := j.flow.Steps[currentID]
		if !ok {
			err := exception.NewBatchErrorf(module, "フロー要素 '%s' が見つかりません", currentID)
			jobExecution.MarkAsFailed(err)
			return err
		}

		jobExecution.CurrentStepName = s.StepName()
		stepExecution := core.NewStepExecution(s.StepName(), jobExecution)
		stepErr := s.Execute(ctx, jobExecution, stepExecution)
		if stepErr != nil {
			logger.Errorf("ジョブ '%s': ステップ '%s' の実行中にエラーが発生しました: %v", j.name, currentID, stepErr)
		}
		j.saveProgress(ctx, jobExecution)

		rule, found := j.flow.GetTransitionRule(currentID, stepExecution.ExitStatus)
		switch {
		case !found && stepErr != nil:
			jobExecution.MarkAsFailed(stepErr)
			return stepErr
		case !found:
			logger.Debugf("ジョブ '%s': ステップ '%s' からの遷移ルールが無いため、フローを終了します。", j.name, currentID)
			currentID = ""
		case rule.End:
			logger.Infof("ジョブ '%s': ステップ '%s' から 'end' 遷移が指示されました。", j.name, currentID)
			if stepErr != nil {
				// 失敗したステップからの end は、失敗を記録したうえでジョブを完了させる
				jobExecution.AddFailureException(stepErr)
			}
			currentID = ""
		case rule.Fail:
			err := stepErr
			if err == nil {
				err = exception.NewBatchErrorf(module, "ステップ '%s' から 'fail' 遷移が指示されました (終了ステータス: %s)", currentID, stepExecution.ExitStatus)
			}
			jobExecution.MarkAsFailed(err)
			return err
		default:
			currentID = rule.To
		}
	}
	return nil
}

func (j *FlowJob) complete(jobExecution *core.JobExecution) {
	if err := jobExecution.MarkAsCompleted(); err != nil {
		logger.Errorf("ジョブ '%s' を完了状態にできませんでした: %v", j.name, err)
		jobExecution.MarkAsFailed(err)
	}
}

// saveProgress はステップ終了時点の JobExecution を保存します。
// 保存に失敗してもジョブは継続し、最終状態は JobLauncher が保存します。
func (j *FlowJob) saveProgress(ctx context.Context, jobExecution *core.JobExecution) {
	if err := j.jobRepository.UpdateJobExecution(context.WithoutCancel(ctx), jobExecution); err != nil {
		logger.Warnf("ジョブ '%s': JobExecution (ID: %s) の途中状態の保存に失敗しました: %v", j.name, jobExecution.ID, err)
	}
}
