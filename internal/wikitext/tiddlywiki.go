package wikitext

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// TiddlyWiki はTiddlyWiki記法の基本部分をMarkdownに置き換えてから変換するレンダラー。
// 対応するのは見出し（!）、箇条書き（* と #）、太字（''）、ティドラーリンク（[[ ]]）。
type TiddlyWiki struct {
	markdown *Markdown
}

// NewTiddlyWiki はTiddlyWikiレンダラーを生成する。
func NewTiddlyWiki(markdown *Markdown) *TiddlyWiki {
	return &TiddlyWiki{markdown: markdown}
}

// Render はティドラー本文をTiddlyWiki記法として変換する。
func (w *TiddlyWiki) Render(_ context.Context, t *model.Tiddler, _ *weburl.Request) (string, error) {
	return w.markdown.convert(Translate(t.Text))
}

var (
	headingLine = regexp.MustCompile(`^(!{1,6})\s*(.*)$`)
	listLine    = regexp.MustCompile(`^([*#]+)\s*(.*)$`)
	boldSpan    = regexp.MustCompile(`''(.+?)''`)
	tiddlerLink = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)
)

// Translate はTiddlyWiki記法をMarkdownに置き換える。
// リンク先はティドラーのタイトルをURLエンコードした相対URLになる。
func Translate(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		switch {
		case headingLine.MatchString(line):
			m := headingLine.FindStringSubmatch(line)
			line = strings.Repeat("#", len(m[1])) + " " + m[2]
		case listLine.MatchString(line):
			m := listLine.FindStringSubmatch(line)
			marker := "*"
			if strings.HasSuffix(m[1], "#") {
				marker = "1."
			}
			line = strings.Repeat("    ", len(m[1])-1) + marker + " " + m[2]
		}
		line = boldSpan.ReplaceAllString(line, "**$1**")
		line = tiddlerLink.ReplaceAllStringFunc(line, func(s string) string {
			m := tiddlerLink.FindStringSubmatch(s)
			label, target := m[1], m[1]
			if m[2] != "" {
				target = m[2]
			}
			return "[" + label + "](" + linkTarget(target) + ")"
		})
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// linkTarget は外部URLはそのまま、ティドラーのタイトルはパスセグメントとしてエンコードして返す。
func linkTarget(target string) string {
	if u, err := url.Parse(target); err == nil && u.Scheme != "" && u.Host != "" {
		return target
	}
	return weburl.EncodeName(target)
}
