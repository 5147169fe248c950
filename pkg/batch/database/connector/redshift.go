package connector

import (
	_ "github.com/lib/pq" // Redshift は PostgreSQL と互換性があるため、pq ドライバを使用
)

// Redshift は PostgreSQL のワイヤプロトコルで接続し、マイグレーションには redshift ドライバを使用します。
func init() {
	RegisterConnector("redshift", &postgresConnector{migrationScheme: "redshift"})
}
