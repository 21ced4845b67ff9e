package wikitext

import (
	"context"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/security"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// HTML は本文をHTMLとしてそのまま扱い、サニタイズのみ行うレンダラー。
// インポートしたフィード記事（type: text/x-feed-html）を表示するために使う。
type HTML struct {
	sanitizer security.Sanitizer
}

// NewHTML はHTMLレンダラーを生成する。
func NewHTML(sanitizer security.Sanitizer) *HTML {
	return &HTML{sanitizer: sanitizer}
}

// Render はサニタイズ済みの本文を返す。
func (h *HTML) Render(_ context.Context, t *model.Tiddler, _ *weburl.Request) (string, error) {
	return h.sanitizer.Sanitize(t.Text), nil
}
