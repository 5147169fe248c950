package connector

import (
	"net"
	"net/url"
	"strconv"

	_ "github.com/lib/pq" // PostgreSQL ドライバ

	"customerbatch/pkg/batch/config"
)

// postgresConnector は PostgreSQL への接続情報を組み立てます。
type postgresConnector struct {
	migrationScheme string
}

func (c *postgresConnector) DriverName() string {
	return "postgres"
}

func (c *postgresConnector) DSN(cfg config.DatabaseConfig) (string, error) {
	return postgresURL("postgres", cfg), nil
}

func (c *postgresConnector) MigrationURL(cfg config.DatabaseConfig, table string) (string, error) {
	return appendQuery(postgresURL(c.migrationScheme, cfg), "x-migrations-table", table), nil
}

func postgresURL(scheme string, cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.Sslmode != "" {
		u.RawQuery = url.Values{"sslmode": []string{cfg.Sslmode}}.Encode()
	}
	return u.String()
}

func init() {
	RegisterConnector("postgres", &postgresConnector{migrationScheme: "postgres"})
}
