// Package weburl はリクエストコンテキストとURL生成を提供する。
//
// ここで定義する関数はすべてRequestの値だけから結果を決める純粋関数で、
// シリアライザはグローバルな状態ではなく明示的に渡されたRequestを参照する。
package weburl

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/tiddlyfeed/internal/model"
)

// Request はシリアライズ処理に渡されるリクエストコンテキスト。
type Request struct {
	// HostURL はスキームとホスト（ポート含む）。例: "http://0.0.0.0:8080"
	HostURL string
	// Prefix はサーバーのパスプレフィックス。例: "/wiki"
	Prefix string
	// Path はリクエストパス（Prefixを含む）。
	Path string
	// RawQuery はエンコード済みのクエリ文字列。
	RawQuery string
	// Query は解析済みのクエリパラメータ。
	Query url.Values
}

// FromHTTP はHTTPリクエストとサーバー設定からRequestを生成する。
func FromHTTP(r *http.Request, hostURL, prefix string) *Request {
	return &Request{
		HostURL:  hostURL,
		Prefix:   prefix,
		Path:     r.URL.EscapedPath(),
		RawQuery: r.URL.RawQuery,
		Query:    r.URL.Query(),
	}
}

// QueryValue はクエリパラメータの最初の値を返す。
func (r *Request) QueryValue(key string) string {
	if r == nil || r.Query == nil {
		return ""
	}
	return r.Query.Get(key)
}

// ServerHostURL はスキームとホストからなるURLを返す。末尾の "/" は除去する。
func ServerHostURL(r *Request) string {
	return strings.TrimRight(r.HostURL, "/")
}

// ServerBaseURL はホストURLにサーバープレフィックスを付けたURLを返す。
func ServerBaseURL(r *Request) string {
	prefix := strings.TrimRight(r.Prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return ServerHostURL(r) + prefix
}

// CurrentURL は現在のリクエストのパスとクエリ文字列を返す。
func CurrentURL(r *Request) string {
	u := r.Path
	if r.RawQuery != "" {
		u += "?" + r.RawQuery
	}
	return u
}

// ContainerURL はティドラーが属するコンテナのティドラー一覧URLを末尾 "/" 付きで返す。
// 例: "http://0.0.0.0:8080/bags/fake/tiddlers/"
func ContainerURL(r *Request, t *model.Tiddler) string {
	kind, name := t.Container()
	return ServerBaseURL(r) + "/" + string(kind) + "/" + EncodeName(name) + "/tiddlers/"
}

// TiddlerURL はティドラーの正規URLを返す。
func TiddlerURL(r *Request, t *model.Tiddler) string {
	return ContainerURL(r, t) + EncodeName(t.Title)
}

// CollectionURL はコンテナのティドラー一覧URLを返す。
func CollectionURL(r *Request, kind model.ContainerKind, name string) string {
	return ServerBaseURL(r) + "/" + string(kind) + "/" + EncodeName(name) + "/tiddlers"
}

// EncodeName はURLパスの1セグメントとして名前をエンコードする。"/" もエスケープする。
func EncodeName(name string) string {
	return url.PathEscape(name)
}
