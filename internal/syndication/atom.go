package syndication

import (
	"github.com/hitoshi/tiddlyfeed/internal/textenc"
	"github.com/hitoshi/tiddlyfeed/internal/xmlgen"
)

// Atom 1.0の名前空間とメディアタイプ。
const (
	AtomNamespace = "http://www.w3.org/2005/Atom"
	AtomMimeType  = "application/atom+xml"
)

// EntryPolicy はAtomエントリの出力方法を切り替える。
type EntryPolicy struct {
	// ContentField は本文を入れる要素名（"summary" または "content"）。
	ContentField string
	// IncludePublished はPubDateをpublished要素として出力するかどうか。
	IncludePublished bool
}

var (
	// SummaryPolicy は本文をsummary要素に入れ、publishedを出力しない。
	SummaryPolicy = EntryPolicy{ContentField: "summary"}
	// ContentPolicy は本文をcontent要素に入れ、publishedも出力する。
	ContentPolicy = EntryPolicy{ContentField: "content", IncludePublished: true}
)

// Atom1 はAtom 1.0方言。
type Atom1 struct {
	Policy EntryPolicy
}

// NewAtom1 は指定したエントリポリシーのAtom1を返す。
// ContentFieldが空の場合はsummaryを使用する。
func NewAtom1(policy EntryPolicy) Atom1 {
	if policy.ContentField == "" {
		policy.ContentField = SummaryPolicy.ContentField
	}
	return Atom1{Policy: policy}
}

// MimeType はAtomのメディアタイプを返す。
func (a Atom1) MimeType() string {
	return AtomMimeType
}

// WriteFeed はfeed要素とその子要素を仕様の順序で書き出す。
func (a Atom1) WriteFeed(g *xmlgen.Generator, f *Feed) error {
	attrs := f.Attrs()

	root := []xmlgen.Attr{{Name: "xmlns", Value: AtomNamespace}}
	if attrs.Language != "" {
		root = append(root, xmlgen.Attr{Name: "xml:lang", Value: attrs.Language})
	}
	if err := g.StartElement("feed", root...); err != nil {
		return err
	}

	if err := g.AddQuickElement("title", attrs.Title); err != nil {
		return err
	}
	if err := writeLink(g, attrs.Link, "alternate"); err != nil {
		return err
	}
	if attrs.FeedURL != "" {
		if err := writeLink(g, attrs.FeedURL, "self"); err != nil {
			return err
		}
	}
	if attrs.HubURL != "" {
		if err := writeLink(g, attrs.HubURL, "hub"); err != nil {
			return err
		}
	}
	if err := g.AddQuickElement("id", f.ID()); err != nil {
		return err
	}
	if err := g.AddQuickElement("updated", textenc.RFC3339Date(f.LatestPostDate())); err != nil {
		return err
	}
	if err := writeAuthor(g, attrs.AuthorName, attrs.AuthorEmail, attrs.AuthorLink); err != nil {
		return err
	}
	if attrs.Subtitle != "" {
		if err := g.AddQuickElement("subtitle", attrs.Subtitle); err != nil {
			return err
		}
	}
	for _, cat := range attrs.Categories {
		if err := g.AddQuickElement("category", "", xmlgen.Attr{Name: "term", Value: cat}); err != nil {
			return err
		}
	}
	if attrs.FeedCopyright != "" {
		if err := g.AddQuickElement("rights", attrs.FeedCopyright); err != nil {
			return err
		}
	}

	for i := range f.items {
		if err := a.writeEntry(g, &f.items[i]); err != nil {
			return err
		}
	}

	return g.EndElement("feed")
}

// writeEntry は1件のentry要素を書き出す。
func (a Atom1) writeEntry(g *xmlgen.Generator, it *Item) error {
	var entryAttrs []xmlgen.Attr
	if it.BaseURL != "" {
		entryAttrs = append(entryAttrs, xmlgen.Attr{Name: "xml:base", Value: it.BaseURL})
	}
	if err := g.StartElement("entry", entryAttrs...); err != nil {
		return err
	}

	if err := g.AddQuickElement("title", it.Title); err != nil {
		return err
	}
	if err := writeLink(g, it.Link, "alternate"); err != nil {
		return err
	}
	if !it.Updated.IsZero() {
		if err := g.AddQuickElement("updated", textenc.RFC3339Date(it.Updated)); err != nil {
			return err
		}
	}
	if a.Policy.IncludePublished && !it.PubDate.IsZero() {
		if err := g.AddQuickElement("published", textenc.RFC3339Date(it.PubDate)); err != nil {
			return err
		}
	}
	if err := writeAuthor(g, it.AuthorName, it.AuthorEmail, it.AuthorLink); err != nil {
		return err
	}
	if err := g.AddQuickElement("id", it.ID()); err != nil {
		return err
	}

	contentType := it.ContentType
	if contentType == "" {
		contentType = "html"
	}
	if err := g.AddQuickElement(a.Policy.ContentField, it.Description,
		xmlgen.Attr{Name: "type", Value: contentType}); err != nil {
		return err
	}

	if it.Enclosure != nil {
		if err := g.AddQuickElement("link", "",
			xmlgen.Attr{Name: "rel", Value: "enclosure"},
			xmlgen.Attr{Name: "href", Value: it.Enclosure.URL},
			xmlgen.Attr{Name: "length", Value: it.Enclosure.Length},
			xmlgen.Attr{Name: "type", Value: it.Enclosure.MimeType},
		); err != nil {
			return err
		}
	}
	for _, cat := range it.Categories {
		if err := g.AddQuickElement("category", "", xmlgen.Attr{Name: "term", Value: cat}); err != nil {
			return err
		}
	}
	if it.ItemCopyright != "" {
		if err := g.AddQuickElement("rights", it.ItemCopyright); err != nil {
			return err
		}
	}

	return g.EndElement("entry")
}

func writeLink(g *xmlgen.Generator, href, rel string) error {
	return g.AddQuickElement("link", "",
		xmlgen.Attr{Name: "href", Value: href},
		xmlgen.Attr{Name: "rel", Value: rel},
	)
}

// writeAuthor はauthor要素を書き出す。nameが空の場合は何も出力しない。
func writeAuthor(g *xmlgen.Generator, name, email, uri string) error {
	if name == "" {
		return nil
	}
	if err := g.StartElement("author"); err != nil {
		return err
	}
	if err := g.AddQuickElement("name", name); err != nil {
		return err
	}
	if email != "" {
		if err := g.AddQuickElement("email", email); err != nil {
			return err
		}
	}
	if uri != "" {
		if err := g.AddQuickElement("uri", uri); err != nil {
			return err
		}
	}
	return g.EndElement("author")
}
