package syndication

import (
	"fmt"
	"strconv"

	"github.com/hitoshi/tiddlyfeed/internal/textenc"
	"github.com/hitoshi/tiddlyfeed/internal/xmlgen"
)

// RSSMimeType はRSS 2.0のメディアタイプ。
const RSSMimeType = "application/rss+xml"

// RSS201 はRSS 2.0.1方言。日時はRFC 2822形式で出力する。
type RSS201 struct{}

// MimeType はRSSのメディアタイプを返す。
func (RSS201) MimeType() string {
	return RSSMimeType
}

// WriteFeed はrss/channel要素とitem要素を書き出す。
func (r RSS201) WriteFeed(g *xmlgen.Generator, f *Feed) error {
	attrs := f.Attrs()

	if err := g.StartElement("rss",
		xmlgen.Attr{Name: "version", Value: "2.0"},
		xmlgen.Attr{Name: "xmlns:atom", Value: AtomNamespace},
	); err != nil {
		return err
	}
	if err := g.StartElement("channel"); err != nil {
		return err
	}

	if err := g.AddQuickElement("title", attrs.Title); err != nil {
		return err
	}
	if err := g.AddQuickElement("link", attrs.Link); err != nil {
		return err
	}
	if err := g.AddQuickElement("description", attrs.Description); err != nil {
		return err
	}
	if attrs.Language != "" {
		if err := g.AddQuickElement("language", attrs.Language); err != nil {
			return err
		}
	}
	if attrs.FeedURL != "" {
		if err := g.AddQuickElement("atom:link", "",
			xmlgen.Attr{Name: "href", Value: attrs.FeedURL},
			xmlgen.Attr{Name: "rel", Value: "self"},
		); err != nil {
			return err
		}
	}
	if attrs.HubURL != "" {
		if err := g.AddQuickElement("atom:link", "",
			xmlgen.Attr{Name: "href", Value: attrs.HubURL},
			xmlgen.Attr{Name: "rel", Value: "hub"},
		); err != nil {
			return err
		}
	}
	if err := g.AddQuickElement("lastBuildDate", textenc.RFC2822Date(f.LatestPostDate())); err != nil {
		return err
	}
	if attrs.FeedCopyright != "" {
		if err := g.AddQuickElement("copyright", attrs.FeedCopyright); err != nil {
			return err
		}
	}
	if attrs.TTL > 0 {
		if err := g.AddQuickElement("ttl", strconv.Itoa(attrs.TTL)); err != nil {
			return err
		}
	}
	for _, cat := range attrs.Categories {
		if err := g.AddQuickElement("category", cat); err != nil {
			return err
		}
	}

	for i := range f.items {
		if err := r.writeItem(g, &f.items[i]); err != nil {
			return err
		}
	}

	if err := g.EndElement("channel"); err != nil {
		return err
	}
	return g.EndElement("rss")
}

func (RSS201) writeItem(g *xmlgen.Generator, it *Item) error {
	if err := g.StartElement("item"); err != nil {
		return err
	}
	if err := g.AddQuickElement("title", it.Title); err != nil {
		return err
	}
	if err := g.AddQuickElement("link", it.Link); err != nil {
		return err
	}
	if it.Description != "" {
		if err := g.AddQuickElement("description", it.Description); err != nil {
			return err
		}
	}
	switch {
	case it.AuthorEmail != "" && it.AuthorName != "":
		if err := g.AddQuickElement("author", fmt.Sprintf("%s (%s)", it.AuthorEmail, it.AuthorName)); err != nil {
			return err
		}
	case it.AuthorEmail != "":
		if err := g.AddQuickElement("author", it.AuthorEmail); err != nil {
			return err
		}
	}
	if !it.PubDate.IsZero() {
		if err := g.AddQuickElement("pubDate", textenc.RFC2822Date(it.PubDate)); err != nil {
			return err
		}
	}
	if it.UniqueID != "" {
		if err := g.AddQuickElement("guid", it.UniqueID,
			xmlgen.Attr{Name: "isPermaLink", Value: "false"}); err != nil {
			return err
		}
	}
	if it.Enclosure != nil {
		if err := g.AddQuickElement("enclosure", "",
			xmlgen.Attr{Name: "url", Value: it.Enclosure.URL},
			xmlgen.Attr{Name: "length", Value: it.Enclosure.Length},
			xmlgen.Attr{Name: "type", Value: it.Enclosure.MimeType},
		); err != nil {
			return err
		}
	}
	for _, cat := range it.Categories {
		if err := g.AddQuickElement("category", cat); err != nil {
			return err
		}
	}
	return g.EndElement("item")
}
