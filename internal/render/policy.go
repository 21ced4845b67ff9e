// Package render はティドラーのコンテンツタイプに応じてフィード本文を決定する。
//
// 判定は次の順序で行い、最初に一致したものを採用する。
//  1. バイナリかつ image/* : img要素で正規URLを参照する
//  2. バイナリ（画像以外）: 正規URLへのリンク
//  3. 型が宣言され、レンダーマップに未登録の疑似バイナリ: pre要素で原文をそのまま包む
//  4. それ以外: マークアップレンダラーに委譲する（未設定の場合は固定文言）
//
// 何がバイナリ・疑似バイナリかはClassifierに委ね、この判定表には型の一覧を持たない。
package render

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// CannotRenderText はマークアップレンダラーが未設定のときに使う本文。
const CannotRenderText = "Tiddler cannot be rendered."

// Classifier はティドラーのバイナリ判定を行う。
type Classifier interface {
	// IsBinary はティドラーがバイナリ（テキストとして扱えない）かを返す。
	IsBinary(t *model.Tiddler) bool
	// IsPseudoBinary はメディアタイプがテキストだがマークアップとして解釈すべきでない型かを返す。
	IsPseudoBinary(mediaType string) bool
}

// MarkupRenderer はティドラーの本文をHTMLに変換する外部レンダラー。
// 型に対応するレンダラーがない場合はmodel.ErrRendererNotConfiguredを返す。
type MarkupRenderer interface {
	Render(ctx context.Context, t *model.Tiddler, req *weburl.Request) (string, error)
}

// FallbackRecorder はフォールバック発生を記録する。metrics.Collectorが実装する。
type FallbackRecorder interface {
	RecordRenderFallback(reason string)
}

// Policy はティドラー1件の本文を決定する。
type Policy struct {
	classifier Classifier
	renderer   MarkupRenderer
	renderMap  map[string]string
	recorder   FallbackRecorder
	logger     *slog.Logger
}

// NewPolicy はPolicyを生成する。
// renderMapはコンテンツタイプからレンダラーIDへの対応表で、ホスト設定から渡される。
// recorderはnilでもよい。
func NewPolicy(classifier Classifier, renderer MarkupRenderer, renderMap map[string]string, recorder FallbackRecorder, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		classifier: classifier,
		renderer:   renderer,
		renderMap:  renderMap,
		recorder:   recorder,
		logger:     logger,
	}
}

// Describe はティドラーのフィード本文を返す。
// レンダラーが型に対応していない場合はCannotRenderTextを返し、エラーにはしない。
// それ以外のレンダラーのエラーは呼び出し元に返す。
func (p *Policy) Describe(ctx context.Context, t *model.Tiddler, req *weburl.Request) (string, error) {
	if p.classifier.IsBinary(t) {
		link := html.EscapeString(weburl.TiddlerURL(req, t))
		if strings.HasPrefix(t.MediaType(), "image/") {
			return fmt.Sprintf("\n<img src=\"%s\" />\n", link), nil
		}
		return fmt.Sprintf("\n<a href=\"%s\">%s</a>\n", link, html.EscapeString(t.Title)), nil
	}

	if p.verbatim(t) {
		return Preformatted(t.Text), nil
	}

	body, err := p.renderer.Render(ctx, t, req)
	if err != nil {
		if errors.Is(err, model.ErrRendererNotConfigured) {
			p.logger.Warn("markup renderer not configured",
				slog.String("title", t.Title),
				slog.String("type", t.Type),
			)
			if p.recorder != nil {
				p.recorder.RecordRenderFallback("renderer_missing")
			}
			return CannotRenderText, nil
		}
		return "", fmt.Errorf("failed to render %q: %w", t.Title, err)
	}
	return body, nil
}

// DescribeHTML はDescribeと同じ判定で、HTML文書に直接埋め込める本文を返す。
// Describeのpre要素の中身はAtomのcontent要素ごとXMLエスケープされる前提なので、
// HTMLへ埋め込む場合はここで原文をエスケープする。
func (p *Policy) DescribeHTML(ctx context.Context, t *model.Tiddler, req *weburl.Request) (string, error) {
	if !p.classifier.IsBinary(t) && p.verbatim(t) {
		return Preformatted(html.EscapeString(t.Text)), nil
	}
	return p.Describe(ctx, t, req)
}

// verbatim はレンダラーを通さず原文をpre要素で包む型かを返す。
func (p *Policy) verbatim(t *model.Tiddler) bool {
	return t.HasType() && !p.registered(t) && p.classifier.IsPseudoBinary(t.MediaType())
}

// registered はティドラーの型がレンダーマップに登録されているかを返す。
func (p *Policy) registered(t *model.Tiddler) bool {
	if _, ok := p.renderMap[t.Type]; ok {
		return true
	}
	_, ok := p.renderMap[t.MediaType()]
	return ok
}

// Preformatted は本文をpre要素で包む。
// 本文はHTMLとしてエスケープしない。XML出力時にpre要素ごとエスケープされる。
func Preformatted(text string) string {
	return "<pre>" + text + "</pre>"
}
