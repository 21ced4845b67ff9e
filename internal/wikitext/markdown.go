package wikitext

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/security"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// Markdown はgoldmarkでMarkdownをHTMLに変換し、サニタイズするレンダラー。
type Markdown struct {
	md        goldmark.Markdown
	sanitizer security.Sanitizer
}

// NewMarkdown はGFM拡張を有効にしたMarkdownレンダラーを生成する。
func NewMarkdown(sanitizer security.Sanitizer) *Markdown {
	return &Markdown{
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		sanitizer: sanitizer,
	}
}

// Render はティドラー本文をMarkdownとして変換する。
func (m *Markdown) Render(_ context.Context, t *model.Tiddler, _ *weburl.Request) (string, error) {
	return m.convert(t.Text)
}

func (m *Markdown) convert(source string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return m.sanitizer.Sanitize(buf.String()), nil
}
