// Package revision はティドラーのリビジョン履歴を隣接ペアごとに比較し、
// 差分を本文とするフィードエントリを生成する。
package revision

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/render"
)

// 固定の本文。
const (
	BinaryContentText   = "Binary Content"
	DiffUnavailableText = "unable to diff without a diff engine"
)

// DefaultDepth はdepthパラメータが整数として解釈できないときの深さ。
const DefaultDepth = 1

// Store はリビジョン比較に必要なストア操作。
type Store interface {
	// Get は参照が指すティドラー（リビジョン指定可）を取得する。
	Get(ctx context.Context, ref model.TiddlerRef) (*model.Tiddler, error)
	// ListRevisions はリビジョンIDを新しい順に返す。
	ListRevisions(ctx context.Context, ref model.TiddlerRef) ([]int, error)
}

// Differ は2つのリビジョンの差分を整形する。
type Differ interface {
	Compare(older, newer *model.Tiddler) (string, error)
}

// BinaryClassifier はティドラーがバイナリかを判定する。
type BinaryClassifier interface {
	IsBinary(t *model.Tiddler) bool
}

// Entry は比較結果の1エントリ。SourceはエントリのID・作者・日時の元になるティドラー。
type Entry struct {
	Source *model.Tiddler
	Title  string
	Body   string
}

// Comparer はリビジョン比較を行う。
type Comparer struct {
	store      Store
	differ     Differ
	classifier BinaryClassifier
	recorder   render.FallbackRecorder
	logger     *slog.Logger
}

// NewComparer はComparerを生成する。
// differがnilの場合は差分エンジンが導入されていないものとして扱う。
// 導入有無は起動時に1回だけ決まり、呼び出しごとには確認しない。
func NewComparer(store Store, differ Differ, classifier BinaryClassifier, recorder render.FallbackRecorder, logger *slog.Logger) *Comparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparer{
		store:      store,
		differ:     differ,
		classifier: classifier,
		recorder:   recorder,
		logger:     logger,
	}
}

// HasDiffer は差分エンジンが利用可能かを返す。
func (c *Comparer) HasDiffer() bool {
	return c.differ != nil
}

// ParseDepth はdepthパラメータを整数に変換する。解釈できない場合はDefaultDepthを返す。
func ParseDepth(raw string) int {
	depth, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultDepth
	}
	return depth
}

// Entries はheadのリビジョン履歴をdepthから0まで降順に辿り、
// 隣接するリビジョンのペアごとに1エントリを返す。
//
// depth d では d 番目（current）と d+1 番目（older）を比較する。
// d+1 が履歴の範囲外の場合はエラーにせずその段を飛ばす。
// 差分エンジンがない場合はプレースホルダーのエントリを1件だけ返して終了する。
// ストアの読み取り失敗はそのまま返す。
func (c *Comparer) Entries(ctx context.Context, head *model.Tiddler, rawDepth string) ([]Entry, error) {
	if c.differ == nil {
		c.logger.Warn("diff engine unavailable", slog.String("title", head.Title))
		if c.recorder != nil {
			c.recorder.RecordRenderFallback("diff_unavailable")
		}
		return []Entry{{Source: head, Title: head.Title, Body: DiffUnavailableText}}, nil
	}

	depth := ParseDepth(rawDepth)
	ref := head.Ref()

	revisionIDs, err := c.store.ListRevisions(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of %q: %w", head.Title, err)
	}

	// 比較できるペアは len(revisionIDs)-1 組まで。それより深い段は飛ばす。
	depth = min(depth, len(revisionIDs)-2)

	var entries []Entry
	for d := depth; d >= 0; d-- {
		older, err := c.store.Get(ctx, ref.WithRevision(revisionIDs[d+1]))
		if err != nil {
			return nil, fmt.Errorf("failed to load revision %d of %q: %w", revisionIDs[d+1], head.Title, err)
		}
		current, err := c.store.Get(ctx, ref.WithRevision(revisionIDs[d]))
		if err != nil {
			return nil, fmt.Errorf("failed to load revision %d of %q: %w", revisionIDs[d], head.Title, err)
		}

		if c.classifier.IsBinary(head) {
			entries = append(entries, Entry{Source: current, Title: head.Title, Body: BinaryContentText})
			continue
		}

		diff, err := c.differ.Compare(older, current)
		if err != nil {
			return nil, fmt.Errorf("failed to compare revisions of %q: %w", head.Title, err)
		}
		entries = append(entries, Entry{
			Source: current,
			Title:  fmt.Sprintf("%s comparing version %d to %d", head.Title, older.Revision, current.Revision),
			Body:   render.Preformatted(diff),
		})
	}

	return entries, nil
}
