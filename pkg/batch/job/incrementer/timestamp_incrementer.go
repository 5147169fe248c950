package incrementer

import (
	"fmt"
	"strconv"
	"time"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/logger"
)

// TimestampIncrementer はジョブパラメータに起動時刻 (Unix ミリ秒) を設定する JobParametersIncrementer の実装です。
// 起動ごとに別の JobInstance として扱いたい場合に使用します。
type TimestampIncrementer struct {
	name string
	now  func() time.Time
}

// NewTimestampIncrementer は新しい TimestampIncrementer のインスタンスを作成します。
// name が空の場合は "timestamp" を使用します。
func NewTimestampIncrementer(name string) *TimestampIncrementer {
	if name == "" {
		name = "timestamp"
	}
	return &TimestampIncrementer{name: name, now: time.Now}
}

// GetNext は起動時刻を設定した新しい JobParameters を返します。
func (i *TimestampIncrementer) GetNext(params core.JobParameters) core.JobParameters {
	next := params.Copy()
	ts := i.now().UnixMilli()
	next.Put(i.name, strconv.FormatInt(ts, 10))
	logger.Debugf("JobParametersIncrementer '%s': '%s' を %d に設定しました。", i.name, i.name, ts)
	return next
}

func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var _ core.JobParametersIncrementer = (*TimestampIncrementer)(nil)
