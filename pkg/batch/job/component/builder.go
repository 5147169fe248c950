// Package component は JSL から参照されるコンポーネントとリスナーのビルダー型を定義します。
package component

import (
	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/job/core"
)

// ComponentBuilder は Reader, Processor, Writer を生成するための関数型です。
// properties には JSL の ComponentRef に記述されたプロパティが渡されます。
// 戻り値は core.ItemReader[any] などの any 型インターフェースを満たす必要があります。
type ComponentBuilder func(cfg *config.Config, db database.DBConnection, properties map[string]string) (any, error)

// JobListenerBuilder は JobExecutionListener を生成するための関数型です。
type JobListenerBuilder func(cfg *config.Config) (core.JobExecutionListener, error)

// StepListenerBuilder は StepExecutionListener を生成するための関数型です。
type StepListenerBuilder func(cfg *config.Config) (core.StepExecutionListener, error)

// ChunkListenerBuilder は ChunkListener を生成するための関数型です。
type ChunkListenerBuilder func(cfg *config.Config) (core.ChunkListener, error)

// IncrementerBuilder は JobParametersIncrementer を生成するための関数型です。
type IncrementerBuilder func(cfg *config.Config, properties map[string]string) (core.JobParametersIncrementer, error)

// Registry は名前で参照される各種ビルダーを保持します。
type Registry struct {
	Components     map[string]ComponentBuilder
	JobListeners   map[string]JobListenerBuilder
	StepListeners  map[string]StepListenerBuilder
	ChunkListeners map[string]ChunkListenerBuilder
	Incrementers   map[string]IncrementerBuilder
}

// NewRegistry は空の Registry を作成します。
func NewRegistry() *Registry {
	return &Registry{
		Components:     make(map[string]ComponentBuilder),
		JobListeners:   make(map[string]JobListenerBuilder),
		StepListeners:  make(map[string]StepListenerBuilder),
		ChunkListeners: make(map[string]ChunkListenerBuilder),
		Incrementers:   make(map[string]IncrementerBuilder),
	}
}
