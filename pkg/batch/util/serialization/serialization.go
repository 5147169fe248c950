// Package serialization はジョブリポジトリに永続化する値の JSON 変換を提供します。
package serialization

import (
	"encoding/json"
	"errors"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/exception"
)

const module = "serialization"

// MarshalExecutionContext は ExecutionContext を JSON にシリアライズします。
// nil の場合は空の JSON オブジェクトを返します。
func MarshalExecutionContext(ec core.ExecutionContext) ([]byte, error) {
	if ec == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, exception.NewBatchError(module, "ExecutionContext のシリアライズに失敗しました", err, false, false)
	}
	return data, nil
}

// UnmarshalExecutionContext は JSON を ExecutionContext にデシリアライズします。
// 空データや "null" は空の ExecutionContext として扱います。
func UnmarshalExecutionContext(data []byte) (core.ExecutionContext, error) {
	ec := core.NewExecutionContext()
	if isEmpty(data) {
		return ec, nil
	}
	if err := json.Unmarshal(data, &ec); err != nil {
		return nil, exception.NewBatchError(module, "ExecutionContext のデシリアライズに失敗しました", err, false, false)
	}
	return ec, nil
}

// MarshalJobParameters は JobParameters を JSON にシリアライズします。
func MarshalJobParameters(params core.JobParameters) ([]byte, error) {
	if params.Params == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(params.Params)
	if err != nil {
		return nil, exception.NewBatchError(module, "JobParameters のシリアライズに失敗しました", err, false, false)
	}
	return data, nil
}

// UnmarshalJobParameters は JSON を JobParameters にデシリアライズします。
func UnmarshalJobParameters(data []byte) (core.JobParameters, error) {
	params := core.NewJobParameters()
	if isEmpty(data) {
		return params, nil
	}
	if err := json.Unmarshal(data, &params.Params); err != nil {
		return core.JobParameters{}, exception.NewBatchError(module, "JobParameters のデシリアライズに失敗しました", err, false, false)
	}
	return params, nil
}

// MarshalFailures は []error をエラーメッセージの JSON 配列にシリアライズします。
func MarshalFailures(failures []error) ([]byte, error) {
	msgs := make([]string, 0, len(failures))
	for _, f := range failures {
		if f != nil {
			msgs = append(msgs, f.Error())
		}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, exception.NewBatchError(module, "Failures のシリアライズに失敗しました", err, false, false)
	}
	return data, nil
}

// UnmarshalFailures は JSON 配列を []error に戻します。
// 元のエラー型は復元されず、メッセージのみを保持します。
func UnmarshalFailures(data []byte) ([]error, error) {
	if isEmpty(data) {
		return []error{}, nil
	}
	var msgs []string
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, exception.NewBatchError(module, "Failures のデシリアライズに失敗しました", err, false, false)
	}
	failures := make([]error, len(msgs))
	for i, msg := range msgs {
		failures[i] = errors.New(msg)
	}
	return failures, nil
}

func isEmpty(data []byte) bool {
	return len(data) == 0 || string(data) == "null"
}
