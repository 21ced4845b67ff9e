package wikitext

import (
	"context"

	"golang.org/x/net/html"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// Raw は本文をエスケープしてpre要素で包むレンダラー。
type Raw struct{}

// Render はエスケープした本文をpre要素で包んで返す。
func (Raw) Render(_ context.Context, t *model.Tiddler, _ *weburl.Request) (string, error) {
	return "<pre>" + html.EscapeString(t.Text) + "</pre>", nil
}
