// Package writer は顧客データを保存する ItemWriter を提供します。
package writer

import (
	"customerbatch/example/customer/domain/entity"
	"customerbatch/example/customer/repository"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/step/writer"
	"customerbatch/pkg/batch/util/exception"
)

// NewCustomerWriter は db のデータベースタイプに合わせた CustomerRepository を使う ItemWriter を作成します。
// チャンク内の顧客は 1 件ずつ upsert されます。
func NewCustomerWriter(db database.DBConnection) (*writer.RepositoryItemWriter[*entity.Customer], error) {
	if db == nil {
		return nil, exception.NewBatchErrorf("customer_writer", "データベース接続が指定されていません")
	}
	repo, err := repository.NewCustomerRepository(db.Dialect())
	if err != nil {
		return nil, err
	}
	return writer.NewRepositoryItemWriter[*entity.Customer](repo), nil
}
