// Package repository は顧客データの永続化を担当します。
package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"customerbatch/example/customer/domain/entity"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/step/writer"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const module = "customer_repository"

var columns = []string{"id", "first_name", "last_name", "email", "gender", "contact_no", "country", "dob"}

// CustomerRepository は customers テーブルへ顧客を ID 単位で upsert します。
// 同じ ID の顧客が既に存在する場合は全項目を上書きします。
type CustomerRepository struct {
	dialect string
	// statements は 1 件の保存で順に実行するクエリです。
	statements []string
}

// NewCustomerRepository は dialect に応じた upsert クエリを持つ CustomerRepository を作成します。
func NewCustomerRepository(dialect string) (*CustomerRepository, error) {
	d := strings.ToLower(dialect)
	var statements []string
	switch d {
	case "postgres", "sqlite":
		statements = []string{insertQuery() + " ON CONFLICT (id) DO UPDATE SET " + assignments("%s = EXCLUDED.%s")}
	case "mysql":
		statements = []string{insertQuery() + " ON DUPLICATE KEY UPDATE " + assignments("%s = VALUES(%s)")}
	case "redshift":
		// Redshift は主キー制約を強制しないため、同じトランザクション内で削除してから挿入します。
		statements = []string{"DELETE FROM customers WHERE id = $1", insertQuery()}
	case "snowflake":
		statements = []string{mergeQuery()}
	default:
		return nil, exception.NewBatchErrorf(module, "未対応のデータベースタイプです: %s", dialect)
	}
	for i, s := range statements {
		statements[i] = database.Rebind(d, s)
	}
	logger.Debugf("CustomerRepository を生成しました (Dialect: %s)。", d)
	return &CustomerRepository{dialect: d, statements: statements}, nil
}

// Save は customer を tx 上で upsert します。
func (r *CustomerRepository) Save(ctx context.Context, tx database.Tx, customer *entity.Customer) error {
	if tx == nil {
		return exception.NewBatchErrorf(module, "トランザクションが指定されていません")
	}
	if customer == nil {
		return exception.NewBatchErrorf(module, "保存する顧客が nil です")
	}
	args := []any{
		customer.ID,
		customer.FirstName,
		customer.LastName,
		customer.Email,
		customer.Gender,
		customer.ContactNo,
		customer.Country,
		customer.Dob,
	}
	for _, query := range r.statements {
		queryArgs := args
		if strings.HasPrefix(query, "DELETE") {
			queryArgs = args[:1]
		}
		if _, err := tx.ExecContext(ctx, query, queryArgs...); err != nil {
			return exception.NewBatchErrorf(module, "顧客 (ID: %d) の保存に失敗しました: %w", customer.ID, err)
		}
	}
	return nil
}

// Dialect は upsert クエリの組み立てに使用したデータベースタイプを返します。
func (r *CustomerRepository) Dialect() string {
	return r.dialect
}

func insertQuery() string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	return "INSERT INTO customers (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
}

// assignments は id 以外の列について format ("%s" を 2 回含む) を展開し、カンマで連結します。
func assignments(format string) string {
	parts := make([]string, 0, len(columns)-1)
	for _, c := range columns[1:] {
		parts = append(parts, fmt.Sprintf(format, c, c))
	}
	return strings.Join(parts, ", ")
}

func mergeQuery() string {
	selects := make([]string, len(columns))
	values := make([]string, len(columns))
	for i, c := range columns {
		selects[i] = "$" + strconv.Itoa(i+1) + " AS " + c
		values[i] = "s." + c
	}
	return "MERGE INTO customers t USING (SELECT " + strings.Join(selects, ", ") + ") s ON t.id = s.id" +
		" WHEN MATCHED THEN UPDATE SET " + assignments("t.%s = s.%s") +
		" WHEN NOT MATCHED THEN INSERT (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(values, ", ") + ")"
}

var _ writer.CrudRepository[*entity.Customer] = (*CustomerRepository)(nil)
