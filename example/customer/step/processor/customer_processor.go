// Package processor は顧客データの ItemProcessor を提供します。
package processor

import (
	"context"

	"customerbatch/example/customer/domain/entity"
	"customerbatch/pkg/batch/job/core"
)

// CustomerProcessor は受け取った顧客をそのまま返します。
// 検証や変換が必要になった場合はここに追加します。
type CustomerProcessor struct{}

func NewCustomerProcessor() *CustomerProcessor {
	return &CustomerProcessor{}
}

func (p *CustomerProcessor) Process(ctx context.Context, customer *entity.Customer) (*entity.Customer, error) {
	return customer, nil
}

var _ core.ItemProcessor[*entity.Customer, *entity.Customer] = (*CustomerProcessor)(nil)
