// Package htmllinks はティドラーのHTML表現を出力する。
//
// コレクションはティドラーへのリンク一覧として、ティドラー1件は本文を包むdiv要素として出力する。
// いずれもheadにAtomフィードへのrel="alternate"リンクを含める。
package htmllinks

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// ContentType はこのシリアライザが返すレスポンスのContent-Type。
const ContentType = "text/html; charset=UTF-8"

// atomMediaType はalternateリンクのtype属性。
const atomMediaType = "application/atom+xml"

// Describer はティドラー1件の本文をHTML断片として返す。render.Policyが実装する。
type Describer interface {
	DescribeHTML(ctx context.Context, t *model.Tiddler, req *weburl.Request) (string, error)
}

// Serializer はHTMLシリアライザ。
type Serializer struct {
	describer Describer
}

// New はSerializerを生成する。
func New(describer Describer) *Serializer {
	return &Serializer{describer: describer}
}

// ContentType はレスポンスのContent-Typeを返す。
func (s *Serializer) ContentType() string {
	return ContentType
}

// ListTiddlers はコレクションを各ティドラーへのリンクの一覧として出力する。
func (s *Serializer) ListTiddlers(_ context.Context, tiddlers *model.Tiddlers, req *weburl.Request) ([]byte, error) {
	doc, body := newDocument(tiddlers.Title, AtomLink(req))

	list := element(atom.Ul, html.Attribute{Key: "id", Val: "tiddlers"}, html.Attribute{Key: "class", Val: "listing"})
	for _, t := range tiddlers.Items {
		a := element(atom.A, html.Attribute{Key: "href", Val: weburl.TiddlerURL(req, t)})
		a.AppendChild(text(t.Title))
		li := element(atom.Li)
		li.AppendChild(a)
		list.AppendChild(li)
	}
	body.AppendChild(list)

	return render(doc)
}

// Tiddler はティドラー1件の本文をdiv要素で包んで出力する。
// div要素のxml:base属性はティドラーのコンテナ（バッグまたはレシピ）のURL。
func (s *Serializer) Tiddler(ctx context.Context, t *model.Tiddler, req *weburl.Request) ([]byte, error) {
	content, err := s.describer.DescribeHTML(ctx, t, req)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %q: %w", t.Title, err)
	}

	doc, body := newDocument(t.Title, AtomLink(req))

	div := element(atom.Div,
		html.Attribute{Key: "class", Val: "tiddler"},
		html.Attribute{Key: "xml:base", Val: weburl.ContainerURL(req, t)},
	)
	nodes, err := html.ParseFragment(strings.NewReader(content), div)
	if err != nil {
		return nil, fmt.Errorf("failed to parse body of %q: %w", t.Title, err)
	}
	for _, n := range nodes {
		div.AppendChild(n)
	}
	body.AppendChild(div)

	return render(doc)
}

// AtomLink は現在のリクエストに対応するAtomフィードのURLを返す。
// パスが ".html" または ".atom" で終わる場合は ".atom" に置き換える。
func AtomLink(req *weburl.Request) string {
	p := req.Path
	switch path.Ext(p) {
	case ".html", ".atom":
		p = strings.TrimSuffix(p, path.Ext(p))
	}
	link := weburl.ServerHostURL(req) + p + ".atom"
	if req.RawQuery != "" {
		link += "?" + req.RawQuery
	}
	return link
}

// newDocument はtitleとAtomリンクを持つHTML文書を生成し、文書とbody要素を返す。
func newDocument(title, atomLink string) (*html.Node, *html.Node) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	head := element(atom.Head)
	body := element(atom.Body)

	meta := element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"})
	head.AppendChild(meta)
	titleEl := element(atom.Title)
	titleEl.AppendChild(text(title))
	head.AppendChild(titleEl)
	head.AppendChild(element(atom.Link,
		html.Attribute{Key: "rel", Val: "alternate"},
		html.Attribute{Key: "type", Val: atomMediaType},
		html.Attribute{Key: "title", Val: "Atom"},
		html.Attribute{Key: "href", Val: atomLink},
	))

	root.AppendChild(head)
	root.AppendChild(body)
	doc.AppendChild(root)
	return doc, body
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func render(doc *html.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}
	return buf.Bytes(), nil
}
