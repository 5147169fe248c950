package core

import "fmt"

// Transition はフロー要素の終了ステータスに応じた遷移先を表します。
// To, End, Fail のいずれか 1 つのみが設定されます。
type Transition struct {
	On   string
	To   string
	End  bool
	Fail bool
}

// Matches は exitStatus が On のパターンに一致するかどうかを返します。"*" は全てに一致します。
func (t Transition) Matches(exitStatus ExitStatus) bool {
	return t.On == "*" || t.On == string(exitStatus)
}

// FlowDefinition はジョブの実行フロー全体を定義します。
type FlowDefinition struct {
	StartElement string
	Steps        map[string]Step
	transitions  map[string][]Transition
}

// NewFlowDefinition は startElement から始まる空の FlowDefinition を作成します。
func NewFlowDefinition(startElement string) *FlowDefinition {
	return &FlowDefinition{
		StartElement: startElement,
		Steps:        make(map[string]Step),
		transitions:  make(map[string][]Transition),
	}
}

// AddStep はフローにステップを追加します。同じ ID のステップは追加できません。
func (f *FlowDefinition) AddStep(id string, step Step) error {
	if _, exists := f.Steps[id]; exists {
		return fmt.Errorf("フロー要素 '%s' は既に存在します", id)
	}
	f.Steps[id] = step
	return nil
}

// AddTransitionRule は from からの遷移ルールを追加します。ルールは追加順に評価されます。
func (f *FlowDefinition) AddTransitionRule(from string, t Transition) {
	f.transitions[from] = append(f.transitions[from], t)
}

// GetTransitionRule は from の終了ステータスに一致する遷移ルールを返します。
// 完全一致のルールを "*" より優先します。
func (f *FlowDefinition) GetTransitionRule(from string, exitStatus ExitStatus) (Transition, bool) {
	var wildcard *Transition
	for i, t := range f.transitions[from] {
		if t.On == string(exitStatus) {
			return t, true
		}
		if t.On == "*" && wildcard == nil {
			wildcard = &f.transitions[from][i]
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return Transition{}, false
}
