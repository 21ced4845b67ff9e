// Package syndication はシンジケーションフィード文書のデータモデルと出力を提供する。
//
// Feedはフィード全体の属性と挿入順のエントリ列を保持し、
// Dialect（Atom 1.0 / RSS 2.0）を指定してXML文書として書き出す。
// Feedは1回のシリアライズ処理で生成・出力・破棄され、リクエスト間で共有しない。
package syndication

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/hitoshi/tiddlyfeed/internal/textenc"
	"github.com/hitoshi/tiddlyfeed/internal/xmlgen"
)

// Enclosure はエントリに添付されるメディアを表す。
type Enclosure struct {
	URL      string
	Length   string
	MimeType string
}

// FeedAttrs はフィード全体の属性。Title・Link・Description以外は任意項目で、
// 空文字列・nil・0は未設定を表す。
type FeedAttrs struct {
	Title         string
	Link          string
	Description   string
	Language      string
	AuthorName    string
	AuthorLink    string
	AuthorEmail   string
	Subtitle      string
	Categories    []string
	FeedURL       string // rel="self" のリンク
	FeedCopyright string
	FeedGUID      string
	HubURL        string // rel="hub" のリンク
	TTL           int
}

// Item はフィードの1エントリ。
type Item struct {
	Title         string
	Link          string
	Description   string
	AuthorName    string
	AuthorLink    string
	AuthorEmail   string
	PubDate       time.Time // ゼロ値は未設定
	Updated       time.Time // ゼロ値は未設定
	UniqueID      string
	Enclosure     *Enclosure
	Categories    []string
	ItemCopyright string
	ContentType   string // content要素のtype属性。空の場合は "html"
	BaseURL       string // エントリのxml:base
}

// ID はエントリの一意識別子を返す。
// UniqueIDが未設定の場合はリンクと公開日時からtag URIを生成する。
func (it *Item) ID() string {
	if it.UniqueID != "" {
		return it.UniqueID
	}
	return textenc.TagURI(it.Link, it.PubDate)
}

// Feed はフィード文書。
type Feed struct {
	attrs FeedAttrs
	items []Item
}

// NewFeed は属性を正規化してFeedを生成する。
// 文字列フィールドはNFC正規化し、リンク系フィールドはIRIToURIでエンコードする。
func NewFeed(attrs FeedAttrs) *Feed {
	a := FeedAttrs{
		Title:         textenc.Text(attrs.Title),
		Link:          textenc.IRIToURI(attrs.Link),
		Description:   textenc.Text(attrs.Description),
		Language:      textenc.Text(attrs.Language),
		AuthorName:    textenc.Text(attrs.AuthorName),
		AuthorLink:    textenc.IRIToURI(attrs.AuthorLink),
		AuthorEmail:   textenc.Text(attrs.AuthorEmail),
		Subtitle:      textenc.Text(attrs.Subtitle),
		Categories:    normalizeAll(attrs.Categories),
		FeedURL:       textenc.IRIToURI(attrs.FeedURL),
		FeedCopyright: textenc.Text(attrs.FeedCopyright),
		FeedGUID:      textenc.Text(attrs.FeedGUID),
		HubURL:        textenc.IRIToURI(attrs.HubURL),
		TTL:           attrs.TTL,
	}
	return &Feed{attrs: a}
}

// AddItem はエントリを末尾に追加する。フィールドはNewFeedと同様に正規化する。
func (f *Feed) AddItem(item Item) {
	it := Item{
		Title:         textenc.Text(item.Title),
		Link:          textenc.IRIToURI(item.Link),
		Description:   textenc.Text(item.Description),
		AuthorName:    textenc.Text(item.AuthorName),
		AuthorLink:    textenc.IRIToURI(item.AuthorLink),
		AuthorEmail:   textenc.Text(item.AuthorEmail),
		PubDate:       item.PubDate,
		Updated:       item.Updated,
		UniqueID:      textenc.Text(item.UniqueID),
		Categories:    normalizeAll(item.Categories),
		ItemCopyright: textenc.Text(item.ItemCopyright),
		ContentType:   item.ContentType,
		BaseURL:       textenc.IRIToURI(item.BaseURL),
	}
	if item.Enclosure != nil {
		it.Enclosure = &Enclosure{
			URL:      textenc.IRIToURI(item.Enclosure.URL),
			Length:   item.Enclosure.Length,
			MimeType: item.Enclosure.MimeType,
		}
	}
	f.items = append(f.items, it)
}

// Attrs は正規化済みのフィード属性を返す。
func (f *Feed) Attrs() FeedAttrs {
	return f.attrs
}

// Items は挿入順のエントリを返す。
func (f *Feed) Items() []Item {
	return f.items
}

// ID はフィードの識別子を返す。FeedGUIDが未設定の場合はLinkを使用する。
func (f *Feed) ID() string {
	if f.attrs.FeedGUID != "" {
		return f.attrs.FeedGUID
	}
	return f.attrs.Link
}

// LatestPostDate はエントリの公開日時の最大値を返す。
// 公開日時を持つエントリがない場合は現在時刻を返す。
func (f *Feed) LatestPostDate() time.Time {
	var latest time.Time
	for _, it := range f.items {
		if !it.PubDate.IsZero() && it.PubDate.After(latest) {
			latest = it.PubDate
		}
	}
	if latest.IsZero() {
		return time.Now().UTC()
	}
	return latest
}

// Dialect はフィードの方言（Atom / RSS）ごとの書き出し方法。
type Dialect interface {
	// MimeType はこの方言の出力メディアタイプを返す。
	MimeType() string
	// WriteFeed はフィード全体をgに書き出す。XML宣言の後に呼び出される。
	WriteFeed(g *xmlgen.Generator, f *Feed) error
}

// Write はフィードをUTF-8のXML文書としてwに書き出す。
func (f *Feed) Write(w io.Writer, d Dialect) error {
	g := xmlgen.New(w, textenc.DefaultEncoding)
	if err := g.StartDocument(); err != nil {
		return err
	}
	if err := d.WriteFeed(g, f); err != nil {
		return fmt.Errorf("failed to write %s feed: %w", d.MimeType(), err)
	}
	return g.EndDocument()
}

// WriteBytes はフィードをUTF-8のバイト列として返す。
func (f *Feed) WriteBytes(d Dialect) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteString はフィードを文字列として返す。
func (f *Feed) WriteString(d Dialect) (string, error) {
	b, err := f.WriteBytes(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func normalizeAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = textenc.Text(v)
	}
	return out
}
