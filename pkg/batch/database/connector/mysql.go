package connector

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"customerbatch/pkg/batch/config"
)

// mysqlConnector は MySQL への接続情報を組み立てます。
type mysqlConnector struct{}

func (c *mysqlConnector) DriverName() string {
	return "mysql"
}

func (c *mysqlConnector) DSN(cfg config.DatabaseConfig) (string, error) {
	return mysqlConfig(cfg).FormatDSN(), nil
}

// MigrationURL はマイグレーションファイル内の複数ステートメントを実行できるよう multiStatements を有効にします。
func (c *mysqlConnector) MigrationURL(cfg config.DatabaseConfig, table string) (string, error) {
	mc := mysqlConfig(cfg)
	mc.MultiStatements = true
	return appendQuery("mysql://"+mc.FormatDSN(), "x-migrations-table", table), nil
}

func mysqlConfig(cfg config.DatabaseConfig) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	return mc
}

func init() {
	RegisterConnector("mysql", &mysqlConnector{})
}
