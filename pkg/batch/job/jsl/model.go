// Package jsl は YAML で記述されたジョブ定義 (JSL) のモデルとローダーを提供します。
package jsl

// Job は JSL ファイルのトップレベル構造です。
type Job struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Flow        Flow           `yaml:"flow"`
	Listeners   []ComponentRef `yaml:"listeners,omitempty"`
	Incrementer ComponentRef   `yaml:"incrementer,omitempty"`
	// RequiredParameters は起動時に必須の JobParameters のキーです。
	RequiredParameters []string `yaml:"required-parameters,omitempty"`
}

// Flow はステップの実行順序を定義します。
type Flow struct {
	StartElement string          `yaml:"start-element"`
	Elements     map[string]Step `yaml:"elements"`
}

// Step はチャンク指向のステップ定義です。
// processor を省略した場合はアイテムをそのまま Writer に渡します。
type Step struct {
	ID             string         `yaml:"id,omitempty"`
	Description    string         `yaml:"description,omitempty"`
	Reader         ComponentRef   `yaml:"reader"`
	Processor      ComponentRef   `yaml:"processor,omitempty"`
	Writer         ComponentRef   `yaml:"writer"`
	Chunk          *Chunk         `yaml:"chunk,omitempty"`
	Transitions    []Transition   `yaml:"transitions,omitempty"`
	Listeners      []ComponentRef `yaml:"listeners,omitempty"`
	ChunkListeners []ComponentRef `yaml:"chunk-listeners,omitempty"`
}

// ComponentRef は登録済みのコンポーネントやリスナーを名前で参照します。
type ComponentRef struct {
	Ref        string            `yaml:"ref"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Chunk はチャンク処理の設定です。
// item-count が 0 の場合は batch.chunk_size の設定値を使用します。
type Chunk struct {
	ItemCount int `yaml:"item-count"`
}

// Transition は終了ステータスに応じた遷移先を定義します。
type Transition struct {
	On   string `yaml:"on"`
	To   string `yaml:"to,omitempty"`
	End  bool   `yaml:"end,omitempty"`
	Fail bool   `yaml:"fail,omitempty"`
}
