package listener

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/logger"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevWriter, prevFlags, prevLevel := log.Writer(), log.Flags(), logger.CurrentLevel()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevWriter)
		log.SetFlags(prevFlags)
		logger.SetLogLevel(prevLevel.String())
	})
	return &buf
}

func TestLoggingJobListenerCompleted(t *testing.T) {
	buf := captureLog(t)
	logger.SetLogLevel("DEBUG")

	params := core.NewJobParameters()
	params.Put("input.file", "customer.csv")
	je := core.NewJobExecution("instance-1", "customerJob", params)
	se := core.NewStepExecution("customerStep", je)
	se.WriteCount = 5

	l := NewLoggingJobListener()
	l.BeforeJob(context.Background(), je)
	require.NoError(t, je.MarkAsStarted())
	require.NoError(t, je.MarkAsCompleted())
	l.AfterJob(context.Background(), je)

	out := buf.String()
	assert.Contains(t, out, "customer.csv")
	assert.Contains(t, out, "ステータス: COMPLETED")
	assert.Contains(t, out, "ステップ 'customerStep': 読み込み 0, 書き込み 5")
}

func TestLoggingJobListenerFailed(t *testing.T) {
	buf := captureLog(t)

	je := core.NewJobExecution("instance-1", "customerJob", core.NewJobParameters())
	require.NoError(t, je.MarkAsStarted())
	je.MarkAsFailed(errors.New("input file missing"))
	NewLoggingJobListener().AfterJob(context.Background(), je)

	assert.Contains(t, buf.String(), "[ERROR]")
	assert.Contains(t, buf.String(), "input file missing")
}
