package connector

import (
	"github.com/snowflakedb/gosnowflake"

	"customerbatch/pkg/batch/config"
)

// snowflakeConnector は Snowflake への接続情報を組み立てます。
type snowflakeConnector struct{}

func (c *snowflakeConnector) DriverName() string {
	return "snowflake"
}

func (c *snowflakeConnector) DSN(cfg config.DatabaseConfig) (string, error) {
	sc := &gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	}
	if cfg.Host != "" {
		sc.Host = cfg.Host
		sc.Port = cfg.Port
	}
	return gosnowflake.DSN(sc)
}

// MigrationURL は未対応です。Snowflake のテーブルは事前に作成しておく必要があります。
func (c *snowflakeConnector) MigrationURL(cfg config.DatabaseConfig, table string) (string, error) {
	return "", ErrMigrationUnsupported
}

func init() {
	RegisterConnector("snowflake", &snowflakeConnector{})
}
