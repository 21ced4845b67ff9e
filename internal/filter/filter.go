// Package filter はティドラーコレクションに適用するフィルタエンジンの境界を定義する。
// フィルタ式の言語そのものは外部のエンジンが提供する。
package filter

import (
	"context"
	"iter"
	"log/slog"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// Chain は解析済みのフィルタ式。内容はエンジンごとに異なる。
type Chain any

// Engine はフィルタ式の解析と適用を行う。
type Engine interface {
	// Parse はフィルタ式を解析する。
	Parse(expr string, req *weburl.Request) (Chain, error)
	// Apply は解析済みのフィルタをティドラーの列に遅延適用する。
	Apply(chain Chain, tiddlers iter.Seq[*model.Tiddler]) iter.Seq[*model.Tiddler]
}

// Apply はexprをengineで解析しtiddlersに適用した結果を返す。
// engineがnil、exprが空、または解析に失敗した場合はtiddlersをそのまま返す。
func Apply(ctx context.Context, engine Engine, expr string, req *weburl.Request, tiddlers iter.Seq[*model.Tiddler], logger *slog.Logger) iter.Seq[*model.Tiddler] {
	if engine == nil || expr == "" {
		return tiddlers
	}
	chain, err := engine.Parse(expr, req)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "failed to parse default filter, using unfiltered collection",
			slog.String("filter", expr),
			slog.String("error", err.Error()),
		)
		return tiddlers
	}
	return engine.Apply(chain, tiddlers)
}

// All はtiddlersを順に返すイテレータを返す。
func All(tiddlers []*model.Tiddler) iter.Seq[*model.Tiddler] {
	return func(yield func(*model.Tiddler) bool) {
		for _, t := range tiddlers {
			if !yield(t) {
				return
			}
		}
	}
}
