// Package joblauncher は Job を JobParameters とともに起動する JobLauncher を提供します。
package joblauncher

import (
	"context"

	"customerbatch/pkg/batch/job/core"
)

// JobLauncher は Job を JobParameters とともに起動するためのインターフェースです。
type JobLauncher interface {
	// Launch は指定された Job を起動し、終了した JobExecution を返します。
	// ジョブ自体が失敗した場合も JobExecution は返され、その Status は FAILED です。
	Launch(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error)
}

// JobProvider は JobLauncher がジョブと JobParametersIncrementer を取得するためのインターフェースです。
type JobProvider interface {
	CreateJob(jobName string, params core.JobParameters) (core.Job, error)
	GetJobParametersIncrementer(jobName string) (core.JobParametersIncrementer, error)
}
