// Package reader は顧客 CSV を読み込む ItemReader を提供します。
package reader

import (
	"strconv"

	"customerbatch/example/customer/domain/entity"
	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/step/reader/flatfile"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const (
	module = "customer_reader"
	// ReaderName は ExecutionContext に保存する読み込み状態のキーの接頭辞です。
	ReaderName = "csvReader"
)

// CustomerFieldNames は CSV の列の並びです。
var CustomerFieldNames = []string{"id", "firstName", "lastName", "email", "gender", "contactNo", "country", "dob"}

// CustomerFieldSetMapper は FieldSet を Customer に変換します。
// id は整数として解釈し、それ以外の項目は文字列のまま設定します。
type CustomerFieldSetMapper struct{}

func (CustomerFieldSetMapper) MapFieldSet(fs flatfile.FieldSet) (*entity.Customer, error) {
	id, err := fs.ReadInt("id")
	if err != nil {
		return nil, err
	}
	c := &entity.Customer{ID: id}
	for name, dst := range map[string]*string{
		"firstName": &c.FirstName,
		"lastName":  &c.LastName,
		"email":     &c.Email,
		"gender":    &c.Gender,
		"contactNo": &c.ContactNo,
		"country":   &c.Country,
		"dob":       &c.Dob,
	} {
		v, err := fs.ReadString(name)
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	return c, nil
}

// NewCustomerReader は顧客 CSV を読み込む FlatFileItemReader を作成します。
//
// 入力ファイルや区切り文字は cfg.Batch.Input を既定値とし、JSL のプロパティ
// (resource, delimiter, lines-to-skip, strict, encoding) で上書きできます。
// resource には #{jobParameters['input.file']} のように JobParameters を参照した値が解決済みで渡されます。
func NewCustomerReader(cfg *config.Config, properties map[string]string) (*flatfile.FlatFileItemReader[*entity.Customer], error) {
	input := cfg.Batch.Input
	if v, ok := properties["resource"]; ok && v != "" {
		input.Path = v
	}
	if v, ok := properties["delimiter"]; ok && v != "" {
		input.Delimiter = v
	}
	if v, ok := properties["encoding"]; ok && v != "" {
		input.Encoding = v
	}
	if v, ok := properties["lines-to-skip"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, exception.NewBatchErrorf(module, "lines-to-skip の値が不正です: '%s'", v)
		}
		input.LinesToSkip = n
	}
	if v, ok := properties["strict"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, exception.NewBatchErrorf(module, "strict の値が不正です: '%s'", v)
		}
		input.Strict = b
	}
	if input.Path == "" {
		return nil, exception.NewBatchErrorf(module, "入力ファイルが指定されていません")
	}
	delimiter := []rune(input.Delimiter)
	if len(delimiter) != 1 {
		return nil, exception.NewBatchErrorf(module, "区切り文字は 1 文字である必要があります: '%s'", input.Delimiter)
	}

	tokenizer := flatfile.NewDelimitedLineTokenizer(CustomerFieldNames...)
	tokenizer.Delimiter = delimiter[0]
	tokenizer.Strict = input.Strict

	mapper := flatfile.NewDefaultLineMapper[*entity.Customer](tokenizer, CustomerFieldSetMapper{})
	r := flatfile.NewFlatFileItemReader[*entity.Customer](ReaderName, input.Path, input.LinesToSkip, mapper)
	if input.Encoding != "" {
		r.Encoding = input.Encoding
	}
	logger.Debugf("CustomerReader を生成しました (Resource: %s, Delimiter: %q, Strict: %t)。", input.Path, input.Delimiter, input.Strict)
	return r, nil
}

var _ flatfile.FieldSetMapper[*entity.Customer] = CustomerFieldSetMapper{}
