// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// ContainerKind はティドラーを格納するコンテナの種類を表す。
type ContainerKind string

const (
	// ContainerBag は不変のバッグ。
	ContainerBag ContainerKind = "bags"
	// ContainerRecipe は複数のバッグから合成されるレシピ。
	ContainerRecipe ContainerKind = "recipes"
)

// TimestampLayout はCreated/Modifiedの書式（UTC）。
const TimestampLayout = "20060102150405"

// FormatTimestamp は時刻をティドラーのタイムスタンプ書式に変換する。
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// untypedSentinel は型が未指定であることを示す値。
const untypedSentinel = "None"

// Tiddler はコンテンツの1単位（ティドラー）を表す。
// 外部ストアが所有し、このモジュールは読み取りのみ行う。
// Bag と Recipe はどちらか一方のみが設定される。
type Tiddler struct {
	Title    string
	Bag      string
	Recipe   string
	Text     string
	Type     string // 空文字または"None"は型なし
	Created  string // YYYYMMDDHHMMSS
	Modified string // YYYYMMDDHHMMSS
	Modifier string
	Revision int
	Tags     []string
}

// Container はティドラーのコンテナ種別と名前を返す。
// Recipeが設定されている場合はレシピを優先する。
func (t *Tiddler) Container() (ContainerKind, string) {
	if t.Recipe != "" {
		return ContainerRecipe, t.Recipe
	}
	return ContainerBag, t.Bag
}

// HasType はティドラーに有効なコンテンツタイプが宣言されているかを返す。
func (t *Tiddler) HasType() bool {
	return t.Type != "" && t.Type != untypedSentinel
}

// MediaType はパラメータを除いた小文字のコンテンツタイプを返す。
func (t *Tiddler) MediaType() string {
	if !t.HasType() {
		return ""
	}
	mt, _, _ := strings.Cut(t.Type, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// Ref はティドラーを指す参照を返す。
func (t *Tiddler) Ref() TiddlerRef {
	return TiddlerRef{
		Title:    t.Title,
		Bag:      t.Bag,
		Recipe:   t.Recipe,
		Revision: t.Revision,
	}
}

// TiddlerRef はストアからティドラーを取得するための参照。
// Revisionが0の場合は最新リビジョンを指す。
type TiddlerRef struct {
	Title    string
	Bag      string
	Recipe   string
	Revision int
}

// WithRevision は指定リビジョンを指す参照のコピーを返す。
func (r TiddlerRef) WithRevision(revision int) TiddlerRef {
	r.Revision = revision
	return r
}

// Tiddlers はティドラーの順序付きコレクションとそのメタデータ。
// リクエストごとに渡され、このモジュールは所有しない。
type Tiddlers struct {
	Title       string
	IsSearch    bool
	IsRevisions bool
	Items       []*Tiddler
}

// Add はティドラーをコレクション末尾に追加する。
func (c *Tiddlers) Add(t *Tiddler) {
	c.Items = append(c.Items, t)
}

// Len はコレクションの要素数を返す。
func (c *Tiddlers) Len() int {
	return len(c.Items)
}
