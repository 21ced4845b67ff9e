package importer

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// FeedKind はフィードの種類（RSS/Atom）を表す。
type FeedKind string

const (
	// FeedKindRSS はRSSフィード。
	FeedKindRSS FeedKind = "rss"
	// FeedKindAtom はAtomフィード。
	FeedKindAtom FeedKind = "atom"
)

// Candidate はHTMLから検出されたフィード候補を表す。
type Candidate struct {
	URL   string
	Kind  FeedKind
	Title string
}

// feedContentTypes はフィードとして認識するContent-Typeのリスト。
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

// xmlContentTypes はXMLとして認識するContent-Type（ボディ解析が必要）。
var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// IsDirectFeed はContent-Typeとボディからレスポンスがフィードそのものかを判定する。
func IsDirectFeed(contentType string, body []byte) bool {
	mediaType := mediaTypeOf(contentType)

	for _, feedCT := range feedContentTypes {
		if mediaType == feedCT {
			return true
		}
	}

	isXML := false
	for _, xmlCT := range xmlContentTypes {
		if mediaType == xmlCT {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}

	return isFeedXML(body)
}

// isFeedXML はXMLボディの先頭部分からRSS/Atomのルート要素を探す。
func isFeedXML(body []byte) bool {
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// isHTML はContent-TypeがHTML文書を示すかを返す。
func isHTML(contentType string) bool {
	return strings.Contains(mediaTypeOf(contentType), "html")
}

func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.TrimSpace(mediaType)
	}
	return strings.ToLower(mediaType)
}

// FeedLinks はHTMLのhead内にあるrel="alternate"のフィードリンクを列挙する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func FeedLinks(htmlBody []byte, baseURL string) []Candidate {
	var candidates []Candidate

	base, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}
			if tagName == "body" {
				return candidates
			}
			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href, title string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				case "title":
					title = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}

			var kind FeedKind
			switch linkType {
			case "application/rss+xml":
				kind = FeedKindRSS
			case "application/atom+xml":
				kind = FeedKindAtom
			default:
				continue
			}

			resolved := resolveURL(base, href)
			if resolved == "" {
				continue
			}
			candidates = append(candidates, Candidate{URL: resolved, Kind: kind, Title: title})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// SelectBest は候補から取り込むフィードを1件選ぶ。
// 優先順位: 同一ホスト > Atom > RSS > 先頭
func SelectBest(candidates []Candidate, pageURL string) *Candidate {
	if len(candidates) == 0 {
		return nil
	}

	pageHost := extractHost(pageURL)
	bestIdx := 0
	bestScore := -1

	for i, c := range candidates {
		score := 0
		if extractHost(c.URL) == pageHost {
			score += 100
		}
		if c.Kind == FeedKindAtom {
			score += 10
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	return &candidates[bestIdx]
}

// extractHost はURLからホスト名を抽出する。
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
