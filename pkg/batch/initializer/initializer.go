// Package initializer はバッチアプリケーションの起動に必要な部品を組み立てます。
package initializer

import (
	"context"
	"io/fs"
	"time"

	"github.com/hashicorp/go-multierror"

	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/database/connector"
	"customerbatch/pkg/batch/database/migrations"
	"customerbatch/pkg/batch/job/factory"
	"customerbatch/pkg/batch/job/joblauncher"
	"customerbatch/pkg/batch/job/jsl"
	"customerbatch/pkg/batch/repository"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const module = "initializer"

// AppMigrationSource はデータベースタイプに対応するアプリケーションのマイグレーションファイル群を返します。
// 対応するファイル群が無い場合は false を返します。
type AppMigrationSource func(dialect string) (fs.FS, bool)

// BatchInitializer はバッチアプリケーションの初期化処理を担当します。
// Initialize で確保したリソースは Close で解放します。
type BatchInitializer struct {
	Config             *config.Config
	JSLDefinitionBytes []byte
	AppMigrations      AppMigrationSource

	// ConnectRetries はデータベース接続の最大試行回数です。
	ConnectRetries    int
	ConnectRetryDelay time.Duration

	DBConnection  database.DBConnection
	JobRepository job.JobRepository
	JobFactory    *factory.JobFactory
	JobLauncher   *joblauncher.SimpleJobLauncher
}

// NewBatchInitializer は新しい BatchInitializer のインスタンスを作成します。
// cfg.EmbeddedConfig に application.yaml の内容を設定しておく必要があります。
func NewBatchInitializer(cfg *config.Config) *BatchInitializer {
	return &BatchInitializer{
		Config:            cfg,
		ConnectRetries:    5,
		ConnectRetryDelay: 2 * time.Second,
	}
}

// Initialize は設定のロード、データベース接続、マイグレーション、JobRepository と JobFactory の生成を行います。
func (bi *BatchInitializer) Initialize(ctx context.Context) (*joblauncher.SimpleJobLauncher, *factory.JobFactory, error) {
	cfg, err := config.NewBytesConfigLoader(bi.Config.EmbeddedConfig).Load()
	if err != nil {
		return nil, nil, exception.NewBatchErrorf(module, "設定のロードに失敗しました: %w", err)
	}
	bi.Config = cfg

	logger.SetLogLevel(cfg.System.Logging.Level)
	logger.Infof("ロギングレベルを '%s' に設定しました。", cfg.System.Logging.Level)
	applyTimezone(cfg.System.Timezone)

	conn, err := connectWithRetry(ctx, cfg.Database, bi.ConnectRetries, bi.ConnectRetryDelay)
	if err != nil {
		return nil, nil, exception.NewBatchErrorf(module, "データベースへの接続に失敗しました: %w", err)
	}
	bi.DBConnection = conn

	if err := bi.migrate(); err != nil {
		return nil, nil, err
	}

	jobRepository, err := repository.NewJobRepository(*cfg, conn)
	if err != nil {
		return nil, nil, exception.NewBatchErrorf(module, "Job Repository の生成に失敗しました: %w", err)
	}
	bi.JobRepository = jobRepository
	logger.Infof("Job Repository (%s) を生成しました。", cfg.Batch.JobRepository.Type)

	definitions := jsl.NewDefinitions()
	if err := definitions.LoadFromBytes(bi.JSLDefinitionBytes); err != nil {
		return nil, nil, exception.NewBatchErrorf(module, "JSL 定義のロードに失敗しました: %w", err)
	}

	bi.JobFactory = factory.NewJobFactory(cfg, jobRepository, conn, definitions)
	bi.JobLauncher = joblauncher.NewSimpleJobLauncher(jobRepository, bi.JobFactory)
	return bi.JobLauncher, bi.JobFactory, nil
}

// migrate はバッチフレームワークとアプリケーションのマイグレーションを実行します。
func (bi *BatchInitializer) migrate() error {
	dbCfg := bi.Config.Database
	if !dbCfg.Migrations.Enabled {
		logger.Infof("マイグレーションは無効化されています。")
		return nil
	}

	if bi.Config.Batch.JobRepository.Type != "memory" {
		if fsys, ok := migrations.ForDialect(dbCfg.Type); ok {
			if err := connector.RunMigrations(dbCfg, fsys, dbCfg.Migrations.Table); err != nil {
				return exception.NewBatchErrorf(module, "バッチフレームワークのマイグレーションに失敗しました: %w", err)
			}
		} else {
			logger.Warnf("データベースタイプ '%s' のジョブリポジトリ用マイグレーションはありません。スキップします。", dbCfg.Type)
		}
	}

	if bi.AppMigrations == nil {
		return nil
	}
	if fsys, ok := bi.AppMigrations(dbCfg.Type); ok {
		if err := connector.RunMigrations(dbCfg, fsys, dbCfg.Migrations.AppTable); err != nil {
			return exception.NewBatchErrorf(module, "アプリケーションのマイグレーションに失敗しました: %w", err)
		}
	} else {
		logger.Warnf("データベースタイプ '%s' のアプリケーション用マイグレーションはありません。スキップします。", dbCfg.Type)
	}
	return nil
}

// connectWithRetry は指定されたデータベースにリトライ付きで接続を試みます。
func connectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, delay time.Duration) (database.DBConnection, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error
	for i := 1; i <= maxRetries; i++ {
		logger.Debugf("データベース接続を試行中 (試行 %d/%d)...", i, maxRetries)
		conn, err := connector.NewDBConnectionFromConfig(ctx, cfg)
		if err == nil {
			logger.Infof("データベース (%s) に接続しました。", cfg.Type)
			return conn, nil
		}
		lastErr = err
		logger.Warnf("データベース接続に失敗しました (試行 %d/%d): %v", i, maxRetries, err)
		if i == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func applyTimezone(name string) {
	if name == "" {
		return
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warnf("タイムゾーン '%s' をロードできませんでした。システムの設定を使用します: %v", name, err)
		return
	}
	time.Local = loc
}

// Close は BatchInitializer が保持するリソースを解放します。
// JobRepository はデータベース接続を所有しないため、接続は最後に閉じます。
func (bi *BatchInitializer) Close() error {
	var result *multierror.Error
	if bi.JobRepository != nil {
		if err := bi.JobRepository.Close(); err != nil {
			result = multierror.Append(result, exception.NewBatchErrorf(module, "Job Repository のクローズに失敗しました: %w", err))
		}
	}
	if bi.DBConnection != nil {
		if err := bi.DBConnection.Close(); err != nil {
			result = multierror.Append(result, exception.NewBatchErrorf(module, "データベース接続のクローズに失敗しました: %w", err))
		} else {
			logger.Infof("データベース接続を閉じました。")
		}
		bi.DBConnection = nil
	}
	return result.ErrorOrNil()
}
