// Package incrementer は JobParameters を実行ごとに変化させる JobParametersIncrementer を提供します。
package incrementer

import (
	"fmt"
	"sync"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/logger"
)

// RunIDIncrementer はジョブパラメータの run ID (既定は "run.id") を採番する JobParametersIncrementer の実装です。
//
// パラメータに run ID が無い場合は「既存の最大値 + 1」を設定し、存在する場合はその値を 1 つ進めます。
// 既存の最大値はプロセスをまたいで保持されないため、起動時に Seed で JobInstance 数を与えます。
type RunIDIncrementer struct {
	name string

	mu   sync.Mutex
	last int
}

// NewRunIDIncrementer は新しい RunIDIncrementer のインスタンスを作成します。
// name が空の場合は "run.id" を使用します。
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = "run.id"
	}
	return &RunIDIncrementer{name: name}
}

// Name は採番するパラメータ名を返します。
func (i *RunIDIncrementer) Name() string {
	return i.name
}

// Seed は採番済みの最大値を設定します。現在の値より小さい値は無視します。
func (i *RunIDIncrementer) Seed(last int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if last > i.last {
		i.last = last
	}
}

// GetNext は run ID を設定した新しい JobParameters を返します。params 自体は変更しません。
func (i *RunIDIncrementer) GetNext(params core.JobParameters) core.JobParameters {
	next := params.Copy()

	i.mu.Lock()
	defer i.mu.Unlock()

	current, ok := params.GetInt(i.name)
	if !ok {
		current = i.last
	}
	runID := current + 1
	if runID > i.last {
		i.last = runID
	}
	next.Put(i.name, runID)
	logger.Debugf("JobParametersIncrementer '%s': run ID を %d に設定しました。", i.name, runID)
	return next
}

// String は RunIDIncrementer の文字列表現を返します。
func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

var _ core.JobParametersIncrementer = (*RunIDIncrementer)(nil)
