// Package wikitext はティドラー本文をHTMLに変換するマークアップレンダラーを提供する。
//
// Registryはティドラーの型からレンダラーIDを引き、IDに登録されたレンダラーに処理を委ねる。
// 型のないティドラーは既定のレンダラーで処理する。
package wikitext

import (
	"context"
	"fmt"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// Renderer IDs.
const (
	RendererMarkdown   = "markdown"
	RendererTiddlyWiki = "tiddlywiki"
	RendererRaw        = "raw"
	RendererHTML       = "html"
)

// Renderer はティドラー本文をHTMLに変換する。
type Renderer interface {
	Render(ctx context.Context, t *model.Tiddler, req *weburl.Request) (string, error)
}

// RendererFunc は関数をRendererとして扱うアダプタ。
type RendererFunc func(ctx context.Context, t *model.Tiddler, req *weburl.Request) (string, error)

// Render はf(ctx, t, req)を呼び出す。
func (f RendererFunc) Render(ctx context.Context, t *model.Tiddler, req *weburl.Request) (string, error) {
	return f(ctx, t, req)
}

// Registry は型→レンダラーIDの対応表とレンダラーの実体を保持する。
// 起動時に構築し、以降は読み取りのみ行う。
type Registry struct {
	typeMap   map[string]string
	defaultID string
	renderers map[string]Renderer
}

// NewRegistry はRegistryを生成する。
// typeMapはコンテンツタイプからレンダラーIDへの対応表、defaultIDは型のないティドラーに使うID。
func NewRegistry(typeMap map[string]string, defaultID string) *Registry {
	return &Registry{
		typeMap:   typeMap,
		defaultID: defaultID,
		renderers: make(map[string]Renderer),
	}
}

// Register はIDにレンダラーを登録する。
func (r *Registry) Register(id string, renderer Renderer) {
	r.renderers[id] = renderer
}

// RendererID はティドラーに使うレンダラーIDを返す。
func (r *Registry) RendererID(t *model.Tiddler) (string, bool) {
	if !t.HasType() {
		return r.defaultID, r.defaultID != ""
	}
	if id, ok := r.typeMap[t.Type]; ok {
		return id, true
	}
	id, ok := r.typeMap[t.MediaType()]
	return id, ok
}

// Render はティドラーに対応するレンダラーで本文を変換する。
// 対応するIDまたはレンダラーがない場合はmodel.ErrRendererNotConfiguredを返す。
func (r *Registry) Render(ctx context.Context, t *model.Tiddler, req *weburl.Request) (string, error) {
	id, ok := r.RendererID(t)
	if !ok {
		return "", fmt.Errorf("%w: type %q", model.ErrRendererNotConfigured, t.Type)
	}
	renderer, ok := r.renderers[id]
	if !ok {
		return "", fmt.Errorf("%w: renderer %q", model.ErrRendererNotConfigured, id)
	}
	return renderer.Render(ctx, t, req)
}
