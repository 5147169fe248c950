package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

// BytesConfigLoader はバイトスライスから設定をロードします。
type BytesConfigLoader struct {
	data []byte
}

// NewBytesConfigLoader は新しい BytesConfigLoader のインスタンスを作成します。
func NewBytesConfigLoader(data []byte) *BytesConfigLoader {
	return &BytesConfigLoader{data: data}
}

// Load は YAML をデフォルト値の上にパースし、環境変数で上書きしてから検証します。
func (l *BytesConfigLoader) Load() (*Config, error) {
	cfg := NewConfig()
	if len(l.data) > 0 {
		if err := yaml.Unmarshal(l.data, cfg); err != nil {
			return nil, exception.NewBatchError("config", "YAML設定のパースに失敗しました", err, false, false)
		}
	}
	cfg.EmbeddedConfig = l.data

	loadEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv は .env ファイルを環境変数に読み込みます。
// 既に設定されている環境変数は上書きしません。ファイルが無い場合は false を返します。
func LoadDotEnv(path string) bool {
	if path == "" {
		return false
	}
	if err := godotenv.Load(path); err != nil {
		logger.Debugf(".env ファイル '%s' をロードできませんでした: %v", path, err)
		return false
	}
	logger.Infof(".env ファイル '%s' をロードしました。", path)
	return true
}

func loadEnvVars(cfg *Config) {
	// Database 設定
	envString("DATABASE_TYPE", &cfg.Database.Type)
	envString("DATABASE_HOST", &cfg.Database.Host)
	envInt("DATABASE_PORT", &cfg.Database.Port)
	envString("DATABASE_DATABASE", &cfg.Database.Database)
	envString("DATABASE_USER", &cfg.Database.User)
	envString("DATABASE_PASSWORD", &cfg.Database.Password)
	envString("DATABASE_SSLMODE", &cfg.Database.Sslmode)
	envString("DATABASE_ACCOUNT", &cfg.Database.Account)
	envString("DATABASE_WAREHOUSE", &cfg.Database.Warehouse)
	envString("DATABASE_SCHEMA", &cfg.Database.Schema)
	envString("DATABASE_ROLE", &cfg.Database.Role)
	envInt("DATABASE_MAX_OPEN_CONNS", &cfg.Database.ConnectionPool.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &cfg.Database.ConnectionPool.MaxIdleConns)
	envInt("DATABASE_CONN_MAX_LIFETIME_SECONDS", &cfg.Database.ConnectionPool.ConnMaxLifetimeSeconds)
	envBool("DATABASE_MIGRATIONS_ENABLED", &cfg.Database.Migrations.Enabled)

	// Batch 設定
	envString("BATCH_JOB_NAME", &cfg.Batch.JobName)
	envInt("BATCH_CHUNK_SIZE", &cfg.Batch.ChunkSize)
	envString("BATCH_JOB_REPOSITORY_TYPE", &cfg.Batch.JobRepository.Type)
	envString("BATCH_INPUT_PATH", &cfg.Batch.Input.Path)
	envString("BATCH_INPUT_DELIMITER", &cfg.Batch.Input.Delimiter)
	envInt("BATCH_INPUT_LINES_TO_SKIP", &cfg.Batch.Input.LinesToSkip)
	envBool("BATCH_INPUT_STRICT", &cfg.Batch.Input.Strict)

	// System 設定
	envString("SYSTEM_TIMEZONE", &cfg.System.Timezone)
	envString("SYSTEM_LOGGING_LEVEL", &cfg.System.Logging.Level)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warnf("%s の値 '%s' が無効です。設定ファイルまたはデフォルトの値を使用します。", key, v)
		return
	}
	*dst = n
}

func envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warnf("%s の値 '%s' が無効です。設定ファイルまたはデフォルトの値を使用します。", key, v)
		return
	}
	*dst = b
}
