// Package memory はプロセス内のみでジョブ実行メタデータを保持する JobRepository の実装です。
// テストや、ジョブ履歴をデータストアに残さない実行で使用します。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/util/exception"
)

const module = "job_repository"

// JobRepository は JobRepository のインメモリ実装です。
// 保存時と取得時に値をコピーするため、呼び出し元のオブジェクトは共有されません。
type JobRepository struct {
	mu             sync.Mutex
	instances      map[string]*core.JobInstance
	instanceOrder  []string
	jobExecutions  map[string]*core.JobExecution
	stepExecutions map[string]*core.StepExecution
}

// NewJobRepository は空の JobRepository を作成します。
func NewJobRepository() *JobRepository {
	return &JobRepository{
		instances:      make(map[string]*core.JobInstance),
		jobExecutions:  make(map[string]*core.JobExecution),
		stepExecutions: make(map[string]*core.StepExecution),
	}
}

var _ job.JobRepository = (*JobRepository)(nil)

func (r *JobRepository) SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[jobInstance.ID]; exists {
		return exception.NewBatchErrorf(module, "JobInstance (ID: %s) は既に存在します", jobInstance.ID)
	}
	cp := *jobInstance
	cp.Parameters = jobInstance.Parameters.Copy()
	r.instances[cp.ID] = &cp
	r.instanceOrder = append(r.instanceOrder, cp.ID)
	return nil
}

func (r *JobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError(module, "検索用 JobParameters のハッシュ計算に失敗しました", err, false, false)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.instanceOrder {
		ji := r.instances[id]
		if ji.JobName == jobName && ji.ParametersHash == hash {
			cp := *ji
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *JobRepository) FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ji, ok := r.instances[instanceID]
	if !ok {
		return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) が見つかりませんでした", instanceID)
	}
	cp := *ji
	return &cp, nil
}

func (r *JobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, ji := range r.instances {
		if ji.JobName == jobName {
			count++
		}
	}
	return count, nil
}

func (r *JobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	var names []string
	for _, ji := range r.instances {
		if !seen[ji.JobName] {
			seen[ji.JobName] = true
			names = append(names, ji.JobName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *JobRepository) SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobExecutions[jobExecution.ID]; exists {
		return exception.NewBatchErrorf(module, "JobExecution (ID: %s) は既に存在します", jobExecution.ID)
	}
	r.jobExecutions[jobExecution.ID] = copyJobExecution(jobExecution)
	return nil
}

func (r *JobRepository) UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobExecutions[jobExecution.ID]
	if !ok || stored.Version != jobExecution.Version {
		return exception.NewBatchErrorf(module, "JobExecution (ID: %s, Version: %d) の更新対象が見つかりませんでした (またはバージョン不一致)", jobExecution.ID, jobExecution.Version)
	}
	jobExecution.Version++
	jobExecution.LastUpdated = time.Now()
	r.jobExecutions[jobExecution.ID] = copyJobExecution(jobExecution)
	return nil
}

func (r *JobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobExecutions[executionID]
	if !ok {
		return nil, exception.NewBatchErrorf(module, "JobExecution (ID: %s) が見つかりませんでした", executionID)
	}
	return r.withSteps(stored), nil
}

func (r *JobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	executions := r.executionsOf(jobInstanceID)
	if len(executions) == 0 {
		return nil, nil
	}
	return r.withSteps(executions[len(executions)-1]), nil
}

func (r *JobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstanceID string) ([]*core.JobExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	executions := r.executionsOf(jobInstanceID)
	result := make([]*core.JobExecution, len(executions))
	for i, je := range executions {
		result[i] = copyJobExecution(je)
	}
	return result, nil
}

func (r *JobRepository) SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	if stepExecution.JobExecution == nil {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) が JobExecution に紐づいていません", stepExecution.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stepExecutions[stepExecution.ID]; exists {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) は既に存在します", stepExecution.ID)
	}
	r.stepExecutions[stepExecution.ID] = copyStepExecution(stepExecution)
	return nil
}

func (r *JobRepository) UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.stepExecutions[stepExecution.ID]
	if !ok || stored.Version != stepExecution.Version {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s, Version: %d) の更新対象が見つかりませんでした (またはバージョン不一致)", stepExecution.ID, stepExecution.Version)
	}
	stepExecution.Version++
	stepExecution.LastUpdated = time.Now()
	r.stepExecutions[stepExecution.ID] = copyStepExecution(stepExecution)
	return nil
}

func (r *JobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*core.StepExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	se, ok := r.stepExecutions[executionID]
	if !ok {
		return nil, exception.NewBatchErrorf(module, "StepExecution (ID: %s) が見つかりませんでした", executionID)
	}
	return copyStepExecution(se), nil
}

func (r *JobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepsOf(jobExecutionID), nil
}

// Close は保持している全てのデータを破棄します。
func (r *JobRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]*core.JobInstance)
	r.instanceOrder = nil
	r.jobExecutions = make(map[string]*core.JobExecution)
	r.stepExecutions = make(map[string]*core.StepExecution)
	return nil
}

func (r *JobRepository) executionsOf(jobInstanceID string) []*core.JobExecution {
	var executions []*core.JobExecution
	for _, je := range r.jobExecutions {
		if je.JobInstanceID == jobInstanceID {
			executions = append(executions, je)
		}
	}
	sort.SliceStable(executions, func(i, j int) bool {
		return executions[i].CreateTime.Before(executions[j].CreateTime)
	})
	return executions
}

func (r *JobRepository) stepsOf(jobExecutionID string) []*core.StepExecution {
	steps := make([]*core.StepExecution, 0)
	for _, se := range r.stepExecutions {
		if se.JobExecution != nil && se.JobExecution.ID == jobExecutionID {
			steps = append(steps, copyStepExecution(se))
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StartTime.Before(steps[j].StartTime)
	})
	return steps
}

func (r *JobRepository) withSteps(stored *core.JobExecution) *core.JobExecution {
	je := copyJobExecution(stored)
	je.StepExecutions = r.stepsOf(je.ID)
	for _, se := range je.StepExecutions {
		se.JobExecution = je
	}
	return je
}

func copyJobExecution(je *core.JobExecution) *core.JobExecution {
	cp := *je
	cp.Parameters = je.Parameters.Copy()
	cp.Failures = append([]error(nil), je.Failures...)
	cp.ExecutionContext = je.ExecutionContext.Copy()
	cp.StepExecutions = make([]*core.StepExecution, 0)
	return &cp
}

// copyStepExecution は JobExecution を ID のみのスタブに置き換えたコピーを返します。
func copyStepExecution(se *core.StepExecution) *core.StepExecution {
	cp := *se
	cp.Failures = append([]error(nil), se.Failures...)
	cp.ExecutionContext = se.ExecutionContext.Copy()
	if se.JobExecution != nil {
		cp.JobExecution = &core.JobExecution{ID: se.JobExecution.ID}
	}
	return &cp
}
