package textenc

import (
	"strings"
	"time"
)

// iriSafe はIRIToURIでエスケープしない記号。英数字と "_.-" も常にそのまま残る。
const iriSafe = "/#%[]=:;$&()+,!?*"

// IRIToURI はIRIをURLに含められる形にパーセントエンコードする。
// UTF-8のバイト単位で変換し、iriSafeに含まれる記号は保持する。
// 空文字列（未設定のオプションフィールド）はそのまま返す。
func IRIToURI(iri string) string {
	if iri == "" {
		return ""
	}
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(iri))
	for i := 0; i < len(iri); i++ {
		c := iri[i]
		if isUnreserved(c) || strings.IndexByte(iriSafe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9' ||
		c == '_' || c == '.' || c == '-'
}

// TagURI はリンクと日付から tag: スキームの一意な識別子を生成する。
//
//	http://example.com/bags/foo#bar, 2009-03-01
//	→ tag:example.com,2009-03-01:/bags/foo/bar
//
// 先頭の http:// を除去し、最初の "/" の直前に日付を挿入し、"#" を "/" に置き換える。
// dateがゼロ値の場合は日付を挿入しない。
func TagURI(link string, date time.Time) string {
	tag := strings.TrimPrefix(link, "http://")
	if !date.IsZero() {
		tag = strings.Replace(tag, "/", ","+date.Format("2006-01-02")+":/", 1)
	}
	tag = strings.ReplaceAll(tag, "#", "/")
	return "tag:" + tag
}
