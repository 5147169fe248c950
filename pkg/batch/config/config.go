package config

import (
	"strings"

	"customerbatch/pkg/batch/util/exception"
)

// EmbeddedConfig は main.go から渡される埋め込み設定 (application.yaml) の内容です。
type EmbeddedConfig []byte

// ConnectionPoolConfig はデータベースコネクションプールの設定を保持します。
type ConnectionPoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `yaml:"conn_max_lifetime_seconds"`
}

// MigrationConfig はスキーママイグレーションの実行設定です。
type MigrationConfig struct {
	Enabled bool `yaml:"enabled"`
	// Table はバッチフレームワーク用のマイグレーション履歴テーブル名です。
	Table string `yaml:"table"`
	// AppTable はアプリケーション用のマイグレーション履歴テーブル名です。
	AppTable string `yaml:"app_table"`
}

// DatabaseConfig は顧客データおよびジョブリポジトリを格納するデータストアの設定です。
// Type は postgres / redshift / mysql / sqlite / snowflake のいずれかです。
type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Sslmode  string `yaml:"sslmode"`

	// Snowflake 用
	Account   string `yaml:"account"`
	Warehouse string `yaml:"warehouse"`
	Schema    string `yaml:"schema"`
	Role      string `yaml:"role"`

	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	Migrations     MigrationConfig      `yaml:"migrations"`
}

// JobRepositoryConfig はジョブ実行メタデータの保存先です。
// "sql" はデータストアのテーブル、"memory" はプロセス内のみに保持します。
type JobRepositoryConfig struct {
	Type string `yaml:"type"`
}

// InputConfig は入力ファイル (CSV) の読み込み設定です。
type InputConfig struct {
	Path        string `yaml:"path"`
	Delimiter   string `yaml:"delimiter"`
	LinesToSkip int    `yaml:"lines_to_skip"`
	Strict      bool   `yaml:"strict"`
	Encoding    string `yaml:"encoding"`
}

type BatchConfig struct {
	JobName       string              `yaml:"job_name"`
	ChunkSize     int                 `yaml:"chunk_size"`
	JobRepository JobRepositoryConfig `yaml:"job_repository"`
	Input         InputConfig         `yaml:"input"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

type Config struct {
	Database       DatabaseConfig `yaml:"database"`
	Batch          BatchConfig    `yaml:"batch"`
	System         SystemConfig   `yaml:"system"`
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig はデフォルト値を設定した Config を返します。
// YAML で指定されなかった項目はこの値のまま残ります。
func NewConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "sqlite",
			Migrations: MigrationConfig{
				Enabled:  true,
				Table:    "batch_schema_migrations",
				AppTable: "schema_migrations",
			},
		},
		Batch: BatchConfig{
			ChunkSize:     10,
			JobRepository: JobRepositoryConfig{Type: "sql"},
			Input: InputConfig{
				Delimiter:   ",",
				LinesToSkip: 1,
				Encoding:    "UTF-8",
			},
		},
		System: SystemConfig{
			Timezone: "UTC",
			Logging:  LoggingConfig{Level: "INFO"},
		},
	}
}

var supportedDatabaseTypes = []string{"postgres", "redshift", "mysql", "sqlite", "snowflake"}

// Validate は設定値の整合性を検証します。
func (c *Config) Validate() error {
	dbType := strings.ToLower(c.Database.Type)
	supported := false
	for _, t := range supportedDatabaseTypes {
		if t == dbType {
			supported = true
			break
		}
	}
	if !supported {
		return exception.NewBatchErrorf("config", "未対応のデータベースタイプです: '%s'", c.Database.Type)
	}
	if dbType == "snowflake" && c.Database.Account == "" {
		return exception.NewBatchErrorf("config", "snowflake を使用する場合は database.account が必要です")
	}
	if c.Batch.ChunkSize <= 0 {
		return exception.NewBatchErrorf("config", "batch.chunk_size は 1 以上である必要があります: %d", c.Batch.ChunkSize)
	}
	switch c.Batch.JobRepository.Type {
	case "sql", "memory":
	default:
		return exception.NewBatchErrorf("config", "未対応のジョブリポジトリタイプです: '%s'", c.Batch.JobRepository.Type)
	}
	if len([]rune(c.Batch.Input.Delimiter)) != 1 {
		return exception.NewBatchErrorf("config", "batch.input.delimiter は 1 文字である必要があります: '%s'", c.Batch.Input.Delimiter)
	}
	if c.Batch.Input.LinesToSkip < 0 {
		return exception.NewBatchErrorf("config", "batch.input.lines_to_skip は 0 以上である必要があります: %d", c.Batch.Input.LinesToSkip)
	}
	return nil
}
