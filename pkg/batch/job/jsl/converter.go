package jsl

import (
	"sort"

	"customerbatch/pkg/batch/config"
	"customerbatch/pkg/batch/database"
	"customerbatch/pkg/batch/job/component"
	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/repository/job"
	"customerbatch/pkg/batch/step"
	"customerbatch/pkg/batch/step/processor"
	"customerbatch/pkg/batch/util/exception"
	"customerbatch/pkg/batch/util/logger"
)

const converterModule = "jsl_converter"

// ConvertJSLToCoreFlow は JSL の Flow 定義を core.FlowDefinition に変換します。
// 各ステップのコンポーネントとリスナーは registry に登録されたビルダーから生成されます。
// コンポーネントのプロパティ中の #{jobParameters['key']} は params の値に置き換えられます。
func ConvertJSLToCoreFlow(
	jslFlow Flow,
	registry *component.Registry,
	cfg *config.Config,
	jobRepository job.JobRepository,
	db database.DBConnection,
	params core.JobParameters,
) (*core.FlowDefinition, error) {
	if _, ok := jslFlow.Elements[jslFlow.StartElement]; !ok {
		return nil, exception.NewBatchErrorf(converterModule, "フローの 'start-element' '%s' が 'elements' に見つかりません", jslFlow.StartElement)
	}
	flowDef := core.NewFlowDefinition(jslFlow.StartElement)

	ids := make([]string, 0, len(jslFlow.Elements))
	for id := range jslFlow.Elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		jslStep := jslFlow.Elements[id]
		coreStep, err := buildChunkStep(id, jslStep, registry, cfg, jobRepository, db, params)
		if err != nil {
			return nil, err
		}
		if err := flowDef.AddStep(id, coreStep); err != nil {
			return nil, exception.NewBatchError(converterModule, "フローへのステップの追加に失敗しました", err, false, false)
		}
		for _, t := range jslStep.Transitions {
			if err := validateTransition(id, t, jslFlow.Elements); err != nil {
				return nil, err
			}
			flowDef.AddTransitionRule(id, core.Transition{On: t.On, To: t.To, End: t.End, Fail: t.Fail})
		}
		logger.Debugf("チャンクステップ '%s' を構築しました。", id)
	}
	return flowDef, nil
}

func buildChunkStep(
	id string,
	jslStep Step,
	registry *component.Registry,
	cfg *config.Config,
	jobRepository job.JobRepository,
	db database.DBConnection,
	params core.JobParameters,
) (core.Step, error) {
	readerInstance, err := buildComponent(registry, "リーダー", jslStep.Reader, cfg, db, params)
	if err != nil {
		return nil, err
	}
	r, ok := readerInstance.(core.ItemReader[any])
	if !ok {
		return nil, exception.NewBatchErrorf(converterModule, "リーダー '%s' の型が不正です (期待: ItemReader[any], 実際: %T)", jslStep.Reader.Ref, readerInstance)
	}

	var p core.ItemProcessor[any, any] = processor.NewPassThroughItemProcessor[any]()
	if jslStep.Processor.Ref != "" {
		processorInstance, err := buildComponent(registry, "プロセッサ", jslStep.Processor, cfg, db, params)
		if err != nil {
			return nil, err
		}
		p, ok = processorInstance.(core.ItemProcessor[any, any])
		if !ok {
			return nil, exception.NewBatchErrorf(converterModule, "プロセッサ '%s' の型が不正です (期待: ItemProcessor[any, any], 実際: %T)", jslStep.Processor.Ref, processorInstance)
		}
	}

	writerInstance, err := buildComponent(registry, "ライター", jslStep.Writer, cfg, db, params)
	if err != nil {
		return nil, err
	}
	w, ok := writerInstance.(core.ItemWriter[any])
	if !ok {
		return nil, exception.NewBatchErrorf(converterModule, "ライター '%s' の型が不正です (期待: ItemWriter[any], 実際: %T)", jslStep.Writer.Ref, writerInstance)
	}

	stepListeners := make([]core.StepExecutionListener, 0, len(jslStep.Listeners))
	for _, ref := range jslStep.Listeners {
		builder, found := registry.StepListeners[ref.Ref]
		if !found {
			return nil, exception.NewBatchErrorf(converterModule, "StepExecutionListener '%s' のビルダーが登録されていません", ref.Ref)
		}
		l, err := builder(cfg)
		if err != nil {
			return nil, exception.NewBatchErrorf(converterModule, "StepExecutionListener '%s' のビルドに失敗しました: %w", ref.Ref, err)
		}
		stepListeners = append(stepListeners, l)
	}

	chunkListeners := make([]core.ChunkListener, 0, len(jslStep.ChunkListeners))
	for _, ref := range jslStep.ChunkListeners {
		builder, found := registry.ChunkListeners[ref.Ref]
		if !found {
			return nil, exception.NewBatchErrorf(converterModule, "ChunkListener '%s' のビルダーが登録されていません", ref.Ref)
		}
		l, err := builder(cfg)
		if err != nil {
			return nil, exception.NewBatchErrorf(converterModule, "ChunkListener '%s' のビルドに失敗しました: %w", ref.Ref, err)
		}
		chunkListeners = append(chunkListeners, l)
	}

	chunkSize := cfg.Batch.ChunkSize
	if jslStep.Chunk != nil && jslStep.Chunk.ItemCount > 0 {
		chunkSize = jslStep.Chunk.ItemCount
	}

	return step.NewChunkStep[any, any](id, r, p, w, chunkSize, jobRepository, db, stepListeners, chunkListeners), nil
}

func buildComponent(registry *component.Registry, kind string, ref ComponentRef, cfg *config.Config, db database.DBConnection, params core.JobParameters) (any, error) {
	builder, ok := registry.Components[ref.Ref]
	if !ok {
		return nil, exception.NewBatchErrorf(converterModule, "%s '%s' のビルダーが見つかりません", kind, ref.Ref)
	}
	properties, err := ResolveProperties(ref.Properties, params)
	if err != nil {
		return nil, exception.NewBatchErrorf(converterModule, "%s '%s' のプロパティの解決に失敗しました: %w", kind, ref.Ref, err)
	}
	instance, err := builder(cfg, db, properties)
	if err != nil {
		return nil, exception.NewBatchErrorf(converterModule, "%s '%s' のビルドに失敗しました: %w", kind, ref.Ref, err)
	}
	return instance, nil
}
