package htmllinks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	renderpkg "github.com/hitoshi/tiddlyfeed/internal/render"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// mockDescriber はDescriberのモック実装。
type mockDescriber struct {
	describeFn func(t *model.Tiddler) (string, error)
}

func (m mockDescriber) DescribeHTML(_ context.Context, t *model.Tiddler, _ *weburl.Request) (string, error) {
	if m.describeFn != nil {
		return m.describeFn(t)
	}
	return "<p>" + t.Text + "</p>", nil
}

// alternateLinks はHTMLのheadからrel="alternate"のリンクのhrefを取り出す。
func alternateLinks(t *testing.T, body []byte) []string {
	t.Helper()
	var hrefs []string
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return hrefs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tokenizer.TagName()
		if string(name) != "link" || !hasAttr {
			continue
		}
		var rel, href string
		for {
			key, val, more := tokenizer.TagAttr()
			switch string(key) {
			case "rel":
				rel = string(val)
			case "href":
				href = string(val)
			}
			if !more {
				break
			}
		}
		if rel == "alternate" {
			hrefs = append(hrefs, href)
		}
	}
}

func newRequest(path, rawQuery string) *weburl.Request {
	return &weburl.Request{HostURL: "http://0.0.0.0:8080", Path: path, RawQuery: rawQuery}
}

func TestListTiddlers(t *testing.T) {
	s := New(mockDescriber{})
	tiddlers := &model.Tiddlers{Title: "Tiddlers in Bag fake", Items: []*model.Tiddler{
		{Title: "one", Bag: "fake"},
		{Title: "two <three>", Bag: "fake"},
	}}

	out, err := s.ListTiddlers(context.Background(), tiddlers, newRequest("/bags/fake/tiddlers", "select=tag:news"))
	if err != nil {
		t.Fatalf("ListTiddlers returned error: %v", err)
	}
	body := string(out)

	if !strings.HasPrefix(body, "<!DOCTYPE html>") {
		t.Errorf("output should start with a doctype: %s", body)
	}
	wants := []string{
		"<title>Tiddlers in Bag fake</title>",
		`<li><a href="http://0.0.0.0:8080/bags/fake/tiddlers/one">one</a></li>`,
		`<li><a href="http://0.0.0.0:8080/bags/fake/tiddlers/two%20%3Cthree%3E">two &lt;three&gt;</a></li>`,
	}
	for _, w := range wants {
		if !strings.Contains(body, w) {
			t.Errorf("output should contain %s\n%s", w, body)
		}
	}

	links := alternateLinks(t, out)
	if len(links) != 1 || links[0] != "http://0.0.0.0:8080/bags/fake/tiddlers.atom?select=tag:news" {
		t.Errorf("alternate links = %v", links)
	}
}

func TestTiddler_BaseReflectsContainer(t *testing.T) {
	tests := []struct {
		name    string
		tiddler *model.Tiddler
		want    string
		notWant string
	}{
		{
			name:    "バッグ",
			tiddler: &model.Tiddler{Title: "link thing", Bag: "fake", Text: "hello"},
			want:    `xml:base="http://0.0.0.0:8080/bags/fake/tiddlers/"`,
			notWant: "/recipes/",
		},
		{
			name:    "レシピ",
			tiddler: &model.Tiddler{Title: "link thing", Bag: "fake", Recipe: "carnage", Text: "hello"},
			want:    `xml:base="http://0.0.0.0:8080/recipes/carnage/tiddlers/"`,
			notWant: "/bags/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(mockDescriber{})
			out, err := s.Tiddler(context.Background(), tt.tiddler, newRequest("/x/link%20thing.html", ""))
			if err != nil {
				t.Fatalf("Tiddler returned error: %v", err)
			}
			body := string(out)
			if !strings.Contains(body, tt.want) {
				t.Errorf("output should contain %s\n%s", tt.want, body)
			}
			if strings.Contains(body, tt.notWant) {
				t.Errorf("output should not contain %s\n%s", tt.notWant, body)
			}
			if strings.Count(body, "xml:base=") != 1 {
				t.Errorf("exactly one xml:base expected:\n%s", body)
			}
			if !strings.Contains(body, `<div class="tiddler"`) || !strings.Contains(body, "<p>hello</p></div>") {
				t.Errorf("body should be wrapped in the tiddler div:\n%s", body)
			}
		})
	}
}

func TestTiddler_DescribeError(t *testing.T) {
	describeErr := errors.New("store down")
	s := New(mockDescriber{describeFn: func(*model.Tiddler) (string, error) { return "", describeErr }})

	_, err := s.Tiddler(context.Background(), &model.Tiddler{Title: "x", Bag: "b"}, newRequest("/bags/b/tiddlers/x", ""))
	if !errors.Is(err, describeErr) {
		t.Errorf("err = %v, want %v", err, describeErr)
	}
}

func TestAtomLink(t *testing.T) {
	tests := []struct {
		path     string
		rawQuery string
		want     string
	}{
		{"/bags/fake/tiddlers", "", "http://0.0.0.0:8080/bags/fake/tiddlers.atom"},
		{"/bags/fake/tiddlers.html", "", "http://0.0.0.0:8080/bags/fake/tiddlers.atom"},
		{"/recipes/r/tiddlers/v1.2", "", "http://0.0.0.0:8080/recipes/r/tiddlers/v1.2.atom"},
		{"/bags/fake/tiddlers", "depth=2", "http://0.0.0.0:8080/bags/fake/tiddlers.atom?depth=2"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := AtomLink(newRequest(tt.path, tt.rawQuery)); got != tt.want {
				t.Errorf("AtomLink() = %q, want %q", got, tt.want)
			}
		})
	}
}

// stubRenderer は型に関係なく固定のHTMLを返すマークアップレンダラー。
type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, t *model.Tiddler, _ *weburl.Request) (string, error) {
	return "<p>rendered</p>", nil
}

func TestTiddler_EscapesVerbatimBodies(t *testing.T) {
	policy := renderpkg.NewPolicy(renderpkg.DefaultClassifier{}, stubRenderer{}, map[string]string{}, nil, nil)
	s := New(policy)

	tests := []struct {
		name    string
		tiddler *model.Tiddler
		want    []string
		notWant []string
	}{
		{
			name: "疑似バイナリの本文は要素にならない",
			tiddler: &model.Tiddler{Title: "notes.txt", Bag: "fake", Type: "text/plain",
				Text: `</pre><img src=x onerror=alert(1)><meta http-equiv="refresh" content="0;url=http://evil">`},
			want:    []string{"<pre>&lt;/pre&gt;&lt;img src=x onerror=alert(1)&gt;&lt;meta http-equiv=&#34;refresh&#34;"},
			notWant: []string{"<img", "<meta http-equiv"},
		},
		{
			name:    "SVGも原文のまま表示される",
			tiddler: &model.Tiddler{Title: "logo", Bag: "fake", Type: "image/svg+xml", Text: `<svg onload="alert(1)"></svg>`},
			want:    []string{"<pre>&lt;svg onload=&#34;alert(1)&#34;&gt;&lt;/svg&gt;</pre>"},
			notWant: []string{"<svg"},
		},
		{
			name:    "バイナリのリンク文字列はタイトルをエスケープする",
			tiddler: &model.Tiddler{Title: "<b>report</b>", Bag: "fake", Type: "application/pdf"},
			want:    []string{"&lt;b&gt;report&lt;/b&gt;</a>"},
			notWant: []string{"<b>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.Tiddler(context.Background(), tt.tiddler, newRequest("/bags/fake/tiddlers/x.html", ""))
			if err != nil {
				t.Fatalf("Tiddler returned error: %v", err)
			}
			body := string(out)
			for _, want := range tt.want {
				if !strings.Contains(body, want) {
					t.Errorf("output should contain %q\n%s", want, body)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(body, notWant) {
					t.Errorf("output should not contain %q\n%s", notWant, body)
				}
			}
		})
	}
}
