// Package factory は JSL 定義から Job を組み立てる JobFactory を提供します。
package factory

import (
	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/job/component"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/job/jsl"
	"customerbatch/pkg/batch/job/runner"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const module = "job_factory"

// JobFactory は Job オブジェクトを生成するためのファクトリです。
// アプリケーションは初期化時にコンポーネントやリスナーのビルダーを名前で登録し、
// JSL 定義はその名前で参照します。
type JobFactory struct {
	config        *config.Config
	jobRepository job.JobRepository
	db            database.DBConnection
	definitions   *jsl.Definitions
	registry      *component.Registry
}

// NewJobFactory は新しい JobFactory のインスタンスを作成します。
func NewJobFactory(cfg *config.Config, repo job.JobRepository, db database.DBConnection, definitions *jsl.Definitions) *JobFactory {
	return &JobFactory{
		config:        cfg,
		jobRepository: repo,
		db:            db,
		definitions:   definitions,
		registry:      component.NewRegistry(),
	}
}

// RegisterComponentBuilder は Reader, Processor, Writer のビルダーを登録します。
func (f *JobFactory) RegisterComponentBuilder(name string, builder component.ComponentBuilder) {
	f.registry.Components[name] = builder
	logger.Debugf("JobFactory: コンポーネントビルダー '%s' を登録しました。", name)
}

// RegisterJobListenerBuilder は JobExecutionListener のビルダーを登録します。
func (f *JobFactory) RegisterJobListenerBuilder(name string, builder component.JobListenerBuilder) {
	f.registry.JobListeners[name] = builder
	logger.Debugf("JobFactory: JobExecutionListener ビルダー '%s' を登録しました。", name)
}

// RegisterStepExecutionListenerBuilder は StepExecutionListener のビルダーを登録します。
func (f *JobFactory) RegisterStepExecutionListenerBuilder(name string, builder component.StepListenerBuilder) {
	f.registry.StepListeners[name] = builder
	logger.Debugf("JobFactory: StepExecutionListener ビルダー '%s' を登録しました。", name)
}

// RegisterChunkListenerBuilder は ChunkListener のビルダーを登録します。
func (f *JobFactory) RegisterChunkListenerBuilder(name string, builder component.ChunkListenerBuilder) {
	f.registry.ChunkListeners[name] = builder
	logger.Debugf("JobFactory: ChunkListener ビルダー '%s' を登録しました。", name)
}

// RegisterJobParametersIncrementerBuilder は JobParametersIncrementer のビルダーを登録します。
func (f *JobFactory) RegisterJobParametersIncrementerBuilder(name string, builder component.IncrementerBuilder) {
	f.registry.Incrementers[name] = builder
	logger.Debugf("JobFactory: JobParametersIncrementer ビルダー '%s' を登録しました。", name)
}

// CreateJob は JSL 定義から指定されたジョブ名の core.Job を作成します。
// JSL のプロパティが参照する JobParameters は params から解決します。
func (f *JobFactory) CreateJob(jobName string, params core.JobParameters) (core.Job, error) {
	jslJob, ok := f.definitions.Get(jobName)
	if !ok {
		return nil, exception.NewBatchErrorf(module, "指定された Job '%s' の JSL 定義が見つかりません", jobName)
	}

	flow, err := jsl.ConvertJSLToCoreFlow(jslJob.Flow, f.registry, f.config, f.jobRepository, f.db, params)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JSL ジョブ '%s' のフロー変換に失敗しました: %w", jobName, err)
	}

	jobListeners := make([]core.JobExecutionListener, 0, len(jslJob.Listeners))
	for _, ref := range jslJob.Listeners {
		builder, found := f.registry.JobListeners[ref.Ref]
		if !found {
			return nil, exception.NewBatchErrorf(module, "JobExecutionListener '%s' のビルダーが登録されていません", ref.Ref)
		}
		l, err := builder(f.config)
		if err != nil {
			return nil, exception.NewBatchErrorf(module, "JobExecutionListener '%s' のビルドに失敗しました: %w", ref.Ref, err)
		}
		jobListeners = append(jobListeners, l)
	}

	logger.Debugf("JSL 定義から Job '%s' を作成しました。", jobName)
	return runner.NewFlowJob(jslJob.ID, jslJob.Name, flow, f.jobRepository, jobListeners, jslJob.RequiredParameters), nil
}

// GetJobParametersIncrementer は指定されたジョブの JobParametersIncrementer を構築して返します。
// JSL に incrementer が定義されていない場合は nil を返します。
func (f *JobFactory) GetJobParametersIncrementer(jobName string) (core.JobParametersIncrementer, error) {
	jslJob, ok := f.definitions.Get(jobName)
	if !ok || jslJob.Incrementer.Ref == "" {
		return nil, nil
	}
	builder, found := f.registry.Incrementers[jslJob.Incrementer.Ref]
	if !found {
		return nil, exception.NewBatchErrorf(module, "JobParametersIncrementer '%s' のビルダーが登録されていません", jslJob.Incrementer.Ref)
	}
	incrementer, err := builder(f.config, jslJob.Incrementer.Properties)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "JobParametersIncrementer '%s' のビルドに失敗しました: %w", jslJob.Incrementer.Ref, err)
	}
	return incrementer, nil
}
