// Package serializer はティドラーの表現形式ごとのシリアライザを登録・選択する。
package serializer

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strconv"
	"strings"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// Serializer はコレクションまたはティドラー1件を特定の表現形式に変換する。
type Serializer interface {
	ListTiddlers(ctx context.Context, tiddlers *model.Tiddlers, req *weburl.Request) ([]byte, error)
	Tiddler(ctx context.Context, t *model.Tiddler, req *weburl.Request) ([]byte, error)
	// ContentType はレスポンスのContent-Type（charset付き）を返す。
	ContentType() string
}

// Registry はメディアタイプと拡張子からシリアライザを引く。
// 起動時に登録を済ませ、以降は読み取りのみ行う。
type Registry struct {
	byType      map[string]Serializer
	byExtension map[string]string
	fallback    string
}

// NewRegistry は既定のメディアタイプを指定してRegistryを生成する。
func NewRegistry(defaultType string) *Registry {
	return &Registry{
		byType:      make(map[string]Serializer),
		byExtension: make(map[string]string),
		fallback:    defaultType,
	}
}

// Register はメディアタイプと拡張子（先頭の "." なし）にシリアライザを登録する。
func (r *Registry) Register(mediaType, extension string, s Serializer) {
	r.byType[mediaType] = s
	if extension != "" {
		r.byExtension[extension] = mediaType
	}
}

// TypeForExtension は拡張子に対応するメディアタイプを返す。
func (r *Registry) TypeForExtension(extension string) (string, bool) {
	mt, ok := r.byExtension[strings.TrimPrefix(extension, ".")]
	return mt, ok
}

// Extensions は登録済みの拡張子を返す。
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Lookup はメディアタイプに対応するシリアライザを返す。
func (r *Registry) Lookup(mediaType string) (Serializer, error) {
	s, ok := r.byType[mediaType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNoSerializer, mediaType)
	}
	return s, nil
}

// Negotiate はAcceptヘッダーから最適なシリアライザとそのメディアタイプを選ぶ。
// Acceptが空、または "*/*" だけの場合は既定のメディアタイプを使う。
// 登録済みのメディアタイプが1つも受け入れられない場合はmodel.ErrNoSerializerを返す。
func (r *Registry) Negotiate(accept string) (Serializer, string, error) {
	if strings.TrimSpace(accept) == "" {
		s, err := r.Lookup(r.fallback)
		return s, r.fallback, err
	}

	for _, mt := range parseAccept(accept) {
		switch {
		case mt == "*/*":
			s, err := r.Lookup(r.fallback)
			return s, r.fallback, err
		case strings.HasSuffix(mt, "/*"):
			prefix := strings.TrimSuffix(mt, "*")
			if strings.HasPrefix(r.fallback, prefix) {
				s, err := r.Lookup(r.fallback)
				return s, r.fallback, err
			}
			for _, registered := range r.sortedTypes() {
				if strings.HasPrefix(registered, prefix) {
					return r.byType[registered], registered, nil
				}
			}
		default:
			if s, ok := r.byType[mt]; ok {
				return s, mt, nil
			}
		}
	}
	return nil, "", fmt.Errorf("%w: %s", model.ErrNoSerializer, accept)
}

func (r *Registry) sortedTypes() []string {
	types := make([]string, 0, len(r.byType))
	for mt := range r.byType {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

type acceptRange struct {
	mediaType string
	quality   float64
}

// parseAccept はAcceptヘッダーをq値の降順に並べたメディアタイプの列に変換する。
// q=0のものと解釈できないものは除外する。
func parseAccept(accept string) []string {
	var ranges []acceptRange
	for _, part := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if raw, ok := params["q"]; ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				q = v
			}
		}
		if q <= 0 {
			continue
		}
		ranges = append(ranges, acceptRange{mediaType: mt, quality: q})
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].quality > ranges[j].quality
	})
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = r.mediaType
	}
	return out
}
