// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupSanitizer はマークアップレンダラーが生成したHTMLから
// スクリプトやイベント属性を取り除き、フィードと一覧ページに安全に埋め込める形にする。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はHTML断片をサニタイズする。
type Sanitizer interface {
	// Sanitize は許可リストにない要素と属性を除去したHTMLを返す。
	// 空文字列の入力には空文字列を返し、同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// MarkupSanitizer はレンダリング済みティドラー本文のサニタイザ。
// bluemondayのポリシーは初期化後に変更しないため、並行して使用できる。
type MarkupSanitizer struct {
	policy *bluemonday.Policy
}

// headingID は見出しのid属性として許可する値。
var headingID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NewMarkupSanitizer はMarkupSanitizerを生成する。
// ポリシーの内容:
//   - 見出し・段落・リスト・表・引用・コードなど文書構造の要素を許可
//   - script, iframe, style, form などは許可リストに含めないことで除去
//   - a と img は相対URLを許可（エントリのxml:baseで解決される）
//   - URLスキームは http, https, mailto のみ
func NewMarkupSanitizer() *MarkupSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr", "div", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"blockquote", "pre", "code", "kbd", "samp",
		"strong", "em", "b", "i", "del", "ins", "sub", "sup",
		"table", "thead", "tbody", "tfoot", "tr",
	)
	p.AllowAttrs("id").Matching(headingID).OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|center|right)$`)).OnElements("th", "td")
	p.AllowElements("th", "td")
	p.AllowAttrs("start").Matching(bluemonday.Integer).OnElements("ol")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[A-Za-z0-9+#_-]+$`)).OnElements("code")

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireNoFollowOnFullyQualifiedLinks(true)

	return &MarkupSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズして返す。
func (s *MarkupSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}
