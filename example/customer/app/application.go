package app

import (
	"context"
	"errors"

	"customerbatch/example/customer/domain/entity"
	"customerbatch/example/customer/migrations"
	customerprocessor "customerbatch/example/customer/step/processor"
	customerreader "customerbatch/example/customer/step/reader"
	customerwriter "customerbatch/example/customer/step/writer"
	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/initializer"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/job/factory"
	"customerbatch/pkg/batch/job/incrementer"
	"customerbatch/pkg/batch/job/joblauncher"
	"customerbatch/pkg/batch/job/joboperator"
	joblistener "customerbatch/pkg/batch/job/listener"
	"customerbatch/pkg/batch/step"
	steplistener "customerbatch/pkg/batch/step/listener"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const (
	module = "app"
	// InputFileParameter は入力ファイルのパスを渡す JobParameters のキーです。
	InputFileParameter = "input.file"
)

// registerApplicationComponents はアプリケーション固有のコンポーネントとリスナーを JobFactory に登録します。
func registerApplicationComponents(jobFactory *factory.JobFactory) {
	jobFactory.RegisterComponentBuilder("customerItemReader", func(cfg *config.Config, db database.DBConnection, properties map[string]string) (any, error) {
		r, err := customerreader.NewCustomerReader(cfg, properties)
		if err != nil {
			return nil, err
		}
		return step.NewAnyReader[*entity.Customer](r), nil
	})
	jobFactory.RegisterComponentBuilder("customerItemProcessor", func(cfg *config.Config, db database.DBConnection, properties map[string]string) (any, error) {
		return step.NewAnyProcessor[*entity.Customer, *entity.Customer](customerprocessor.NewCustomerProcessor()), nil
	})
	jobFactory.RegisterComponentBuilder("customerItemWriter", func(cfg *config.Config, db database.DBConnection, properties map[string]string) (any, error) {
		w, err := customerwriter.NewCustomerWriter(db)
		if err != nil {
			return nil, err
		}
		return step.NewAnyWriter[*entity.Customer](w), nil
	})

	jobFactory.RegisterStepExecutionListenerBuilder("loggingStepListener", func(cfg *config.Config) (core.StepExecutionListener, error) {
		return steplistener.NewLoggingStepListener(), nil
	})
	jobFactory.RegisterChunkListenerBuilder("loggingChunkListener", func(cfg *config.Config) (core.ChunkListener, error) {
		return steplistener.NewLoggingChunkListener(), nil
	})
	jobFactory.RegisterJobListenerBuilder("loggingJobListener", func(cfg *config.Config) (core.JobExecutionListener, error) {
		return joblistener.NewLoggingJobListener(), nil
	})

	jobFactory.RegisterJobParametersIncrementerBuilder("runIdIncrementer", func(cfg *config.Config, properties map[string]string) (core.JobParametersIncrementer, error) {
		return incrementer.NewRunIDIncrementer(properties["name"]), nil
	})
	jobFactory.RegisterJobParametersIncrementerBuilder("timestampIncrementer", func(cfg *config.Config, properties map[string]string) (core.JobParametersIncrementer, error) {
		return incrementer.NewTimestampIncrementer(properties["name"]), nil
	})

	logger.Debugf("全てのアプリケーションコンポーネントビルダーを登録しました。")
}

// setupApplication は .env のロードとバッチアプリケーションの初期化を行います。
// エラーを返した場合も、確保済みのリソースは返された BatchInitializer の Close で解放します。
func setupApplication(ctx context.Context, envFilePath string, embeddedConfig, embeddedJSL []byte) (*initializer.BatchInitializer, joboperator.JobOperator, error) {
	if envFilePath != "" && !config.LoadDotEnv(envFilePath) {
		logger.Warnf(".env ファイル '%s' をロードできませんでした (本番環境では環境変数を使用)。", envFilePath)
	}

	batchInitializer := initializer.NewBatchInitializer(&config.Config{EmbeddedConfig: embeddedConfig})
	batchInitializer.JSLDefinitionBytes = embeddedJSL
	batchInitializer.AppMigrations = migrations.ForDialect

	jobLauncher, jobFactory, err := batchInitializer.Initialize(ctx)
	if err != nil {
		return batchInitializer, nil, exception.NewBatchError(module, "バッチアプリケーションの初期化に失敗しました", err, false, false)
	}
	registerApplicationComponents(jobFactory)
	logger.Infof("バッチアプリケーションの初期化が完了しました。")
	return batchInitializer, joboperator.NewDefaultJobOperator(batchInitializer.JobRepository, jobLauncher), nil
}

// executeJob は設定されたジョブを input.file パラメータ付きで起動します。
// inputPath が空の場合は batch.input.path を使用します。
func executeJob(ctx context.Context, jobOperator joboperator.JobOperator, cfg *config.Config, inputPath string) (*core.JobExecution, error) {
	jobName := cfg.Batch.JobName
	if jobName == "" {
		return nil, exception.NewBatchErrorf(module, "設定ファイルにジョブ名が指定されていません")
	}
	if inputPath == "" {
		inputPath = cfg.Batch.Input.Path
	}
	if inputPath == "" {
		return nil, exception.NewBatchErrorf(module, "入力ファイルが指定されていません")
	}
	logger.Infof("実行する Job: '%s' (入力ファイル: %s)", jobName, inputPath)

	jobParams := core.NewJobParameters()
	jobParams.Put(InputFileParameter, inputPath)
	return jobOperator.Start(ctx, jobName, jobParams)
}

// reportStepExecutions は JobRepository に記録されたステップごとの件数をログに出力します。
func reportStepExecutions(ctx context.Context, jobOperator joboperator.JobOperator, jobExecution *core.JobExecution) {
	if jobExecution == nil {
		return
	}
	stored, err := jobOperator.GetJobExecution(context.WithoutCancel(ctx), jobExecution.ID)
	if err != nil {
		logger.Warnf("JobExecution (ID: %s) の実行結果を取得できませんでした: %v", jobExecution.ID, err)
		return
	}
	for _, se := range stored.StepExecutions {
		logger.Infof("Step '%s': %s (Read: %d, Write: %d, Filter: %d, Commit: %d, Rollback: %d)",
			se.StepName, se.Status, se.ReadCount, se.WriteCount, se.FilterCount, se.CommitCount, se.RollbackCount)
	}
}

// RunApplication はアプリケーションのメインロジックを実行し、プロセスの終了コードを返します。
// ジョブが COMPLETED で終了した場合のみ 0 を返します。
func RunApplication(ctx context.Context, envFilePath string, embeddedConfig, embeddedJSL []byte, inputPath string) int {
	batchInitializer, jobOperator, err := setupApplication(ctx, envFilePath, embeddedConfig, embeddedJSL)
	defer func() {
		if closeErr := batchInitializer.Close(); closeErr != nil {
			logger.Errorf("バッチアプリケーションのリソースクローズ中にエラーが発生しました: %v", closeErr)
		} else {
			logger.Infof("バッチアプリケーションのリソースを正常にクローズしました。")
		}
	}()
	if err != nil {
		return handleApplicationError(err, nil, "")
	}

	jobExecution, err := executeJob(ctx, jobOperator, batchInitializer.Config, inputPath)
	reportStepExecutions(ctx, jobOperator, jobExecution)
	return handleApplicationError(err, jobExecution, batchInitializer.Config.Batch.JobName)
}

// handleApplicationError はジョブの結果をログに出力し、終了コードを返します。
func handleApplicationError(err error, jobExecution *core.JobExecution, jobName string) int {
	if err != nil {
		switch {
		case errors.Is(err, joblauncher.ErrJobInstanceAlreadyComplete):
			logger.Errorf("Job '%s' は同じパラメータで既に完了しています: %v", jobName, err)
		case errors.Is(err, joblauncher.ErrJobExecutionAlreadyRunning):
			logger.Errorf("Job '%s' は既に実行中です: %v", jobName, err)
		default:
			logger.Errorf("Job '%s' の実行中にエラーが発生しました: %v", jobName, err)
		}
		if be, ok := exception.AsBatchError(err); ok && be.StackTrace != "" {
			logger.Debugf("BatchError StackTrace:\n%s", be.StackTrace)
		}
	}

	if jobExecution == nil {
		return 1
	}
	for i, f := range jobExecution.Failures {
		logger.Errorf("  - 失敗 %d: %v", i+1, f)
	}
	if jobExecution.Status != core.BatchStatusCompleted {
		logger.Errorf("Job '%s' は %s で終了しました。詳細は JobExecution (ID: %s) およびログを確認してください。",
			jobExecution.JobName, jobExecution.Status, jobExecution.ID)
		return 1
	}
	if err != nil {
		return 1
	}
	logger.Infof("Job '%s' (Execution ID: %s) は正常に完了しました。", jobExecution.JobName, jobExecution.ID)
	return 0
}
