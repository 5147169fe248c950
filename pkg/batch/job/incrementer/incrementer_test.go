package incrementer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerbatch/pkg/batch/job/core"
)

func TestRunIDIncrementerStartsAtOne(t *testing.T) {
	inc := NewRunIDIncrementer("")
	params := core.NewJobParameters()
	params.Put("input.file", "customer.csv")

	next := inc.GetNext(params)
	runID, ok := next.GetInt("run.id")
	require.True(t, ok)
	assert.Equal(t, 1, runID)

	file, _ := next.GetString("input.file")
	assert.Equal(t, "customer.csv", file)
	_, exists := params.GetInt("run.id")
	assert.False(t, exists, "元のパラメータは変更されない")
}

func TestRunIDIncrementerUsesSeed(t *testing.T) {
	inc := NewRunIDIncrementer("run.id")
	inc.Seed(4)
	inc.Seed(2)

	runID, _ := inc.GetNext(core.NewJobParameters()).GetInt("run.id")
	assert.Equal(t, 5, runID)
	runID, _ = inc.GetNext(core.NewJobParameters()).GetInt("run.id")
	assert.Equal(t, 6, runID)
}

func TestRunIDIncrementerIncrementsExistingValue(t *testing.T) {
	inc := NewRunIDIncrementer("run.id")
	params := core.NewJobParameters()
	params.Put("run.id", 41)

	runID, _ := inc.GetNext(params).GetInt("run.id")
	assert.Equal(t, 42, runID)
	assert.Equal(t, "RunIDIncrementer[name=run.id]", inc.String())
}

func TestTimestampIncrementer(t *testing.T) {
	inc := NewTimestampIncrementer("")
	inc.now = func() time.Time { return time.UnixMilli(1700000000123) }

	ts, ok := inc.GetNext(core.NewJobParameters()).GetString("timestamp")
	require.True(t, ok)
	assert.Equal(t, "1700000000123", ts)
}
