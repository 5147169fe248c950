package jsl

import (
	"fmt"
	"regexp"

	"customerbatch/pkg/batch/job/core"
	"customerbatch/pkg/batch/util/exception"
)

// jobParameterPattern は #{jobParameters['key']} 形式の参照に一致します。
var jobParameterPattern = regexp.MustCompile(`#\{jobParameters\['([^']+)'\]\}`)

// ResolveProperties は properties 内の #{jobParameters['key']} を params の値で置き換えたコピーを返します。
// 参照されたキーが params に存在しない場合はエラーを返します。
func ResolveProperties(properties map[string]string, params core.JobParameters) (map[string]string, error) {
	if len(properties) == 0 {
		return properties, nil
	}
	resolved := make(map[string]string, len(properties))
	for name, value := range properties {
		var missing string
		resolved[name] = jobParameterPattern.ReplaceAllStringFunc(value, func(ref string) string {
			key := jobParameterPattern.FindStringSubmatch(ref)[1]
			v, ok := params.Params[key]
			if !ok {
				if missing == "" {
					missing = key
				}
				return ref
			}
			return fmt.Sprint(v)
		})
		if missing != "" {
			return nil, exception.NewBatchErrorf(converterModule, "プロパティ '%s' が参照する JobParameter '%s' が指定されていません", name, missing)
		}
	}
	return resolved, nil
}
