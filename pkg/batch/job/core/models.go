package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// JobStatus はジョブ/ステップ実行の状態を表します。
//
// 状態遷移は STARTING → STARTED → COMPLETED | FAILED のみです。
// STARTING から直接 FAILED になるのは起動処理自体が失敗した場合です。
type JobStatus string

const (
	BatchStatusStarting  JobStatus = "STARTING"
	BatchStatusStarted   JobStatus = "STARTED"
	BatchStatusCompleted JobStatus = "COMPLETED"
	BatchStatusFailed    JobStatus = "FAILED"
	BatchStatusUnknown   JobStatus = "UNKNOWN"
)

var allowedTransitions = map[JobStatus][]JobStatus{
	BatchStatusStarting: {BatchStatusStarted, BatchStatusFailed},
	BatchStatusStarted:  {BatchStatusCompleted, BatchStatusFailed},
}

// IsFinished は JobStatus が終了状態かどうかを判定します。
func (s JobStatus) IsFinished() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// CanTransitionTo は s から next への遷移が許可されているかを返します。
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ToExitStatus は JobStatus を対応する ExitStatus に変換します。
func (s JobStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	default:
		return ExitStatusUnknown
	}
}

// ExitStatus はジョブ/ステップの終了時の詳細なステータスを表します。
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusNoOp      ExitStatus = "NOOP"
)

// ExecutionContext はジョブやステップの状態を共有するためのキー-値ストアです。
type ExecutionContext map[string]interface{}

// NewExecutionContext は新しい空の ExecutionContext を作成します。
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Put は指定されたキーと値で ExecutionContext に値を設定します。
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// Get は指定されたキーの値を取得します。
func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	v, ok := ec[key]
	return v, ok
}

// GetString は指定されたキーの値を文字列として取得します。
func (ec ExecutionContext) GetString(key string) (string, bool) {
	v, ok := ec[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt は指定されたキーの値を int として取得します。
// JSON からの復元で float64 になっている値も受け付けます。
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	v, ok := ec[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// Merge は other の全てのキーを ec にコピーします。
func (ec ExecutionContext) Merge(other ExecutionContext) {
	for k, v := range other {
		ec[k] = v
	}
}

// Copy は ExecutionContext のシャローコピーを返します。
func (ec ExecutionContext) Copy() ExecutionContext {
	cp := NewExecutionContext()
	cp.Merge(ec)
	return cp
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

// JobParameters はジョブ実行時のパラメータを保持する構造体です。
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters は JobParameters の新しいインスタンスを作成します。
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put はパラメータを設定します。
func (p *JobParameters) Put(key string, value interface{}) {
	if p.Params == nil {
		p.Params = make(map[string]interface{})
	}
	p.Params[key] = value
}

// GetString は文字列パラメータを取得します。
func (p JobParameters) GetString(key string) (string, bool) {
	v, ok := p.Params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt は整数パラメータを取得します。
func (p JobParameters) GetInt(key string) (int, bool) {
	v, ok := p.Params[key]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// Copy はパラメータのコピーを返します。
func (p JobParameters) Copy() JobParameters {
	cp := NewJobParameters()
	for k, v := range p.Params {
		cp.Params[k] = v
	}
	return cp
}

// Hash は JobInstance を識別するためのパラメータのハッシュ値を返します。
// 数値は文字列表現に正規化するため、永続化後に float64 として復元された値とも一致します。
func (p JobParameters) Hash() (string, error) {
	normalized := make(map[string]string, len(p.Params))
	for k, v := range p.Params {
		if i, ok := toInt(v); ok {
			if _, isString := v.(string); !isString {
				normalized[k] = strconv.Itoa(i)
				continue
			}
		}
		normalized[k] = fmt.Sprintf("%v", v)
	}
	// json.Marshal はマップのキーをソートして出力する
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// JobInstance はジョブの論理的な実行単位を表す構造体です。
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance は新しい JobInstance を作成します。
func NewJobInstance(jobName string, params JobParameters) (*JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	return &JobInstance{
		ID:             uuid.New().String(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}, nil
}

// JobExecution はジョブの単一の実行インスタンスを表す構造体です。
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	ExitCode         int
	Failures         []error
	Version          int
	CreateTime       time.Time
	LastUpdated      time.Time
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
	CurrentStepName  string
}

// NewJobExecution は STARTING 状態の新しい JobExecution を作成します。
func NewJobExecution(jobInstanceID, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               uuid.New().String(),
		JobInstanceID:    jobInstanceID,
		JobName:          jobName,
		Parameters:       params,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		Failures:         make([]error, 0),
		StepExecutions:   make([]*StepExecution, 0),
		ExecutionContext: NewExecutionContext(),
	}
}

// TransitionTo は状態遷移ルールを検証してから状態を変更します。
func (je *JobExecution) TransitionTo(next JobStatus) error {
	if !je.Status.CanTransitionTo(next) {
		return fmt.Errorf("JobExecution (ID: %s) は %s から %s へ遷移できません", je.ID, je.Status, next)
	}
	je.Status = next
	je.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted は JobExecution を実行中にします。
func (je *JobExecution) MarkAsStarted() error {
	if err := je.TransitionTo(BatchStatusStarted); err != nil {
		return err
	}
	je.StartTime = je.LastUpdated
	return nil
}

// MarkAsCompleted は JobExecution を完了にします。
func (je *JobExecution) MarkAsCompleted() error {
	if err := je.TransitionTo(BatchStatusCompleted); err != nil {
		return err
	}
	je.ExitStatus = ExitStatusCompleted
	je.EndTime = je.LastUpdated
	return nil
}

// MarkAsFailed は JobExecution を失敗にし、エラー情報を追加します。
// 既に FAILED の場合はエラー情報の追加のみ行います。
func (je *JobExecution) MarkAsFailed(err error) {
	je.AddFailureException(err)
	if je.Status == BatchStatusFailed {
		return
	}
	if terr := je.TransitionTo(BatchStatusFailed); terr != nil {
		// COMPLETED からの失敗など、通常起こり得ない遷移はそのまま記録する
		je.AddFailureException(terr)
		je.Status = BatchStatusFailed
	}
	je.ExitStatus = ExitStatusFailed
	je.ExitCode = 1
	je.EndTime = time.Now()
}

// AddFailureException は JobExecution にエラー情報を追加します。
func (je *JobExecution) AddFailureException(err error) {
	if err != nil {
		je.Failures = append(je.Failures, err)
		je.LastUpdated = time.Now()
	}
}

// AddStepExecution は StepExecution を追加します。
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.StepExecutions = append(je.StepExecutions, se)
}

// StepExecution はステップの単一の実行インスタンスを表す構造体です。
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         []error
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
	Version          int
}

// NewStepExecution は新しい StepExecution を作成し、JobExecution に関連付けます。
func NewStepExecution(stepName string, jobExecution *JobExecution) *StepExecution {
	se := &StepExecution{
		ID:               uuid.New().String(),
		StepName:         stepName,
		JobExecution:     jobExecution,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		Failures:         make([]error, 0),
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      time.Now(),
	}
	if jobExecution != nil {
		jobExecution.AddStepExecution(se)
	}
	return se
}

// MarkAsStarted は StepExecution を実行中にします。
func (se *StepExecution) MarkAsStarted() {
	se.Status = BatchStatusStarted
	se.StartTime = time.Now()
	se.LastUpdated = se.StartTime
}

// MarkAsCompleted は StepExecution を完了にします。
func (se *StepExecution) MarkAsCompleted() {
	se.Status = BatchStatusCompleted
	se.ExitStatus = ExitStatusCompleted
	se.EndTime = time.Now()
	se.LastUpdated = se.EndTime
}

// MarkAsFailed は StepExecution を失敗にし、エラー情報を追加します。
func (se *StepExecution) MarkAsFailed(err error) {
	se.Status = BatchStatusFailed
	se.ExitStatus = ExitStatusFailed
	se.EndTime = time.Now()
	se.LastUpdated = se.EndTime
	if err != nil {
		se.Failures = append(se.Failures, err)
	}
}
