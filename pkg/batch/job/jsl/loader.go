package jsl

import (
	"sort"

	"gopkg.in/yaml.v3"

	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const loaderModule = "jsl_loader"

// Definitions はロード済みの JSL ジョブ定義を ID で保持します。
type Definitions struct {
	jobs map[string]Job
}

// NewDefinitions は空の Definitions を作成します。
func NewDefinitions() *Definitions {
	return &Definitions{jobs: make(map[string]Job)}
}

// LoadFromBytes は単一の JSL YAML からジョブ定義をロードして登録します。
func (d *Definitions) LoadFromBytes(data []byte) error {
	jobDef, err := Parse(data)
	if err != nil {
		return err
	}
	if _, exists := d.jobs[jobDef.ID]; exists {
		return exception.NewBatchErrorf(loaderModule, "JSL ジョブID '%s' が重複しています", jobDef.ID)
	}
	d.jobs[jobDef.ID] = jobDef
	logger.Infof("JSL ジョブ '%s' をロードしました。ロード済みジョブ数: %d", jobDef.ID, len(d.jobs))
	return nil
}

// Get はジョブ ID に対応する定義を返します。
func (d *Definitions) Get(jobID string) (Job, bool) {
	jobDef, ok := d.jobs[jobID]
	return jobDef, ok
}

// IDs はロード済みのジョブ ID を昇順で返します。
func (d *Definitions) IDs() []string {
	ids := make([]string, 0, len(d.jobs))
	for id := range d.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Parse は JSL YAML をパースし、定義を検証します。
func Parse(data []byte) (Job, error) {
	var jobDef Job
	if err := yaml.Unmarshal(data, &jobDef); err != nil {
		return Job{}, exception.NewBatchError(loaderModule, "JSL ファイルのパースに失敗しました", err, false, false)
	}
	if err := validate(&jobDef); err != nil {
		return Job{}, err
	}
	return jobDef, nil
}

func validate(jobDef *Job) error {
	if jobDef.ID == "" {
		return exception.NewBatchErrorf(loaderModule, "JSL ファイルに 'id' が定義されていません")
	}
	if jobDef.Name == "" {
		return exception.NewBatchErrorf(loaderModule, "JSL ジョブ '%s' に 'name' が定義されていません", jobDef.ID)
	}
	if jobDef.Flow.StartElement == "" {
		return exception.NewBatchErrorf(loaderModule, "JSL ジョブ '%s' のフローに 'start-element' が定義されていません", jobDef.ID)
	}
	if len(jobDef.Flow.Elements) == 0 {
		return exception.NewBatchErrorf(loaderModule, "JSL ジョブ '%s' のフローに 'elements' が定義されていません", jobDef.ID)
	}
	if _, ok := jobDef.Flow.Elements[jobDef.Flow.StartElement]; !ok {
		return exception.NewBatchErrorf(loaderModule, "フローの 'start-element' '%s' が 'elements' に見つかりません", jobDef.Flow.StartElement)
	}

	for id, s := range jobDef.Flow.Elements {
		if s.ID == "" {
			s.ID = id
		} else if s.ID != id {
			return exception.NewBatchErrorf(loaderModule, "ステップ '%s' の ID がマップのキー '%s' と一致しません", s.ID, id)
		}
		if s.Reader.Ref == "" || s.Writer.Ref == "" {
			return exception.NewBatchErrorf(loaderModule, "ステップ '%s' には reader と writer が必要です", id)
		}
		if s.Chunk != nil && s.Chunk.ItemCount < 0 {
			return exception.NewBatchErrorf(loaderModule, "ステップ '%s' の item-count は 0 以上である必要があります: %d", id, s.Chunk.ItemCount)
		}
		for _, t := range s.Transitions {
			if err := validateTransition(id, t, jobDef.Flow.Elements); err != nil {
				return err
			}
		}
		jobDef.Flow.Elements[id] = s
	}
	return nil
}

// validateTransition は単一の遷移ルールを検証します。
func validateTransition(from string, t Transition, elements map[string]Step) error {
	if t.On == "" {
		return exception.NewBatchErrorf(loaderModule, "フロー要素 '%s' の遷移ルールに 'on' が定義されていません", from)
	}
	exclusive := 0
	if t.End {
		exclusive++
	}
	if t.Fail {
		exclusive++
	}
	if t.To != "" {
		exclusive++
	}
	if exclusive != 1 {
		return exception.NewBatchErrorf(loaderModule, "フロー要素 '%s' の遷移ルール (on: '%s') には 'to', 'end', 'fail' のいずれか 1 つのみを指定してください", from, t.On)
	}
	if t.To != "" {
		if _, ok := elements[t.To]; !ok {
			return exception.NewBatchErrorf(loaderModule, "フロー要素 '%s' の遷移ルール (on: '%s') の遷移先 '%s' が見つかりません", from, t.On, t.To)
		}
	}
	return nil
}
