// Package atomfeed はティドラーのコレクションまたは1件をAtom 1.0フィードに変換する。
//
// コレクションはホスト設定の既定フィルタを通してから出力する。
// リクエストにdepthパラメータがある場合は各ティドラーの本文の代わりにリビジョン間の差分を出力する。
package atomfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/tiddlyfeed/internal/filter"
	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/revision"
	"github.com/hitoshi/tiddlyfeed/internal/syndication"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// ContentType はこのシリアライザが返すレスポンスのContent-Type。
const ContentType = "application/atom+xml; charset=UTF-8"

// DefaultLanguage はフィードのxml:lang既定値。
const DefaultLanguage = "en"

// formatLabel はメトリクスの形式ラベル。
const formatLabel = "atom"

// rssFormatLabel はRSS方言で出力する場合のメトリクスの形式ラベル。
const rssFormatLabel = "rss"

// DepthParam はリビジョン比較を要求するクエリパラメータ名。
const DepthParam = "depth"

// ErrUnsupportedSubject はSerializeに未対応の値が渡されたことを示す。
var ErrUnsupportedSubject = errors.New("atomfeed: unsupported subject")

// Describer はティドラー1件のフィード本文を決定する。render.Policyが実装する。
type Describer interface {
	Describe(ctx context.Context, t *model.Tiddler, req *weburl.Request) (string, error)
}

// RevisionLister はリビジョン比較エントリを生成する。revision.Comparerが実装する。
type RevisionLister interface {
	Entries(ctx context.Context, head *model.Tiddler, rawDepth string) ([]revision.Entry, error)
}

// MetricsRecorder はシリアライズ結果を記録する。metrics.Collectorが実装する。
type MetricsRecorder interface {
	RecordSerialization(format string, entries int, duration time.Duration)
	RecordSerializationFailure(format string)
}

// Options はホスト設定から渡されるフィードの出力設定。
type Options struct {
	// DefaultFilter はコレクションに適用する既定のフィルタ式。空の場合は適用しない。
	DefaultFilter string
	// AuthorURIMap は作者URIの書式。"%s" が作者名に置き換えられ、サーバーベースURLの後に付く。
	AuthorURIMap string
	// HubURL はフィードのrel="hub"リンク。空の場合は出力しない。
	HubURL string
	// Language はフィードのxml:lang。空の場合はDefaultLanguage。
	Language string
	// Dialect は出力する方言。nilの場合はAtom 1.0（published付き）。
	Dialect syndication.Dialect
}

// Serializer はAtomフィードのシリアライザ。
// 状態を持たず、複数のリクエストから並行して呼び出せる。
type Serializer struct {
	describer Describer
	revisions RevisionLister
	filter    filter.Engine
	opts      Options
	metrics   MetricsRecorder
	logger    *slog.Logger
	now       func() time.Time
	dialect   syndication.Dialect
	label     string
}

// New はSerializerを生成する。engineとmetricsはnilでもよい。
func New(describer Describer, revisions RevisionLister, engine filter.Engine, opts Options, metrics MetricsRecorder, logger *slog.Logger) *Serializer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	dialect, label := opts.Dialect, formatLabel
	if dialect == nil {
		dialect = syndication.NewAtom1(syndication.ContentPolicy)
	} else if dialect.MimeType() == syndication.RSSMimeType {
		label = rssFormatLabel
	}
	return &Serializer{
		describer: describer,
		revisions: revisions,
		filter:    engine,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		dialect:   dialect,
		label:     label,
	}
}

// ContentType はレスポンスのContent-Typeを返す。
func (s *Serializer) ContentType() string {
	if s.label == formatLabel {
		return ContentType
	}
	return s.dialect.MimeType() + "; charset=UTF-8"
}

// Serialize はコレクション（*model.Tiddlers）またはティドラー1件（*model.Tiddler）を
// Atom文書に変換し、Content-Typeとともに返す。
func (s *Serializer) Serialize(ctx context.Context, subject any, req *weburl.Request) ([]byte, string, error) {
	var (
		out []byte
		err error
	)
	switch v := subject.(type) {
	case *model.Tiddlers:
		out, err = s.ListTiddlers(ctx, v, req)
	case *model.Tiddler:
		out, err = s.Tiddler(ctx, v, req)
	default:
		return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedSubject, subject)
	}
	if err != nil {
		return nil, "", err
	}
	return out, s.ContentType(), nil
}

// ListTiddlers はコレクションをAtomフィードに変換する。
// 既定フィルタ適用後のティドラーの作者が1人だけの場合、その作者をフィード全体の作者とする。
// ストアの読み取りやレンダラーのエラーが発生した場合は文書全体を失敗させる。
func (s *Serializer) ListTiddlers(ctx context.Context, tiddlers *model.Tiddlers, req *weburl.Request) ([]byte, error) {
	start := time.Now()

	filtered := &model.Tiddlers{
		Title:       tiddlers.Title,
		IsSearch:    tiddlers.IsSearch,
		IsRevisions: tiddlers.IsRevisions,
	}
	authors := make(map[string]struct{})
	for t := range filter.Apply(ctx, s.filter, s.opts.DefaultFilter, req, filter.All(tiddlers.Items), s.logger) {
		filtered.Add(t)
		authors[t.Modifier] = struct{}{}
	}

	var authorName, authorLink string
	if len(authors) == 1 {
		for name := range authors {
			authorName = name
		}
		authorLink = s.authorLink(req, authorName)
	}

	link := weburl.ServerHostURL(req) + weburl.CurrentURL(req)
	feed := syndication.NewFeed(syndication.FeedAttrs{
		Title:       filtered.Title,
		Link:        link,
		Description: filtered.Title,
		Language:    s.opts.Language,
		AuthorName:  authorName,
		AuthorLink:  authorLink,
		FeedURL:     link,
		HubURL:      s.opts.HubURL,
	})

	for _, t := range filtered.Items {
		if err := s.addTiddler(ctx, feed, t, req); err != nil {
			s.recordFailure()
			return nil, err
		}
	}

	return s.write(feed, start)
}

// Tiddler はティドラー1件をエントリ1件（depth指定時は比較エントリ）のAtomフィードに変換する。
func (s *Serializer) Tiddler(ctx context.Context, t *model.Tiddler, req *weburl.Request) ([]byte, error) {
	start := time.Now()

	feed := syndication.NewFeed(syndication.FeedAttrs{
		Title:       t.Title,
		Link:        weburl.TiddlerURL(req, t),
		Description: "tiddler " + t.Title,
		Language:    s.opts.Language,
		FeedURL:     weburl.ServerHostURL(req) + weburl.CurrentURL(req),
		HubURL:      s.opts.HubURL,
	})

	if err := s.addTiddler(ctx, feed, t, req); err != nil {
		s.recordFailure()
		return nil, err
	}

	return s.write(feed, start)
}

func (s *Serializer) write(feed *syndication.Feed, start time.Time) ([]byte, error) {
	out, err := feed.WriteBytes(s.dialect)
	if err != nil {
		s.recordFailure()
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordSerialization(s.label, len(feed.Items()), time.Since(start))
	}
	return out, nil
}

func (s *Serializer) recordFailure() {
	if s.metrics != nil {
		s.metrics.RecordSerializationFailure(s.label)
	}
}

// addTiddler はティドラーをフィードに追加する。
// depthパラメータがあればリビジョン比較エントリ、なければ本文を決定して1件追加する。
func (s *Serializer) addTiddler(ctx context.Context, feed *syndication.Feed, t *model.Tiddler, req *weburl.Request) error {
	link := weburl.TiddlerURL(req, t)

	if depth := req.QueryValue(DepthParam); depth != "" && s.revisions != nil {
		entries, err := s.revisions.Entries(ctx, t, depth)
		if err != nil {
			return err
		}
		for _, e := range entries {
			s.addItem(ctx, feed, e.Source, link, e.Title, e.Body, req)
		}
		return nil
	}

	body, err := s.describer.Describe(ctx, t, req)
	if err != nil {
		return fmt.Errorf("failed to describe %q: %w", t.Title, err)
	}
	s.addItem(ctx, feed, t, link, t.Title, body, req)
	return nil
}

func (s *Serializer) addItem(ctx context.Context, feed *syndication.Feed, t *model.Tiddler, link, title, body string, req *weburl.Request) {
	s.logger.DebugContext(ctx, "adding entry", slog.String("title", title))
	feed.AddItem(syndication.Item{
		Title:       title,
		Link:        link,
		Description: body,
		AuthorName:  t.Modifier,
		AuthorLink:  s.authorLink(req, t.Modifier),
		PubDate:     s.parseTime(ctx, t.Created),
		Updated:     s.parseTime(ctx, t.Modified),
		UniqueID:    TiddlerID(t),
		Categories:  t.Tags,
		BaseURL:     weburl.ContainerURL(req, t),
	})
}

// authorLink は作者名から作者URIを生成する。書式未設定または作者名が空の場合は空文字列を返す。
func (s *Serializer) authorLink(req *weburl.Request, name string) string {
	if s.opts.AuthorURIMap == "" || name == "" {
		return ""
	}
	return weburl.ServerBaseURL(req) + strings.ReplaceAll(s.opts.AuthorURIMap, "%s", name)
}

// parseTime はティドラーの日時文字列をUTCの時刻に変換する。
// 解釈できない場合は現在時刻を使う。
func (s *Serializer) parseTime(ctx context.Context, value string) time.Time {
	parsed, err := time.ParseInLocation(model.TimestampLayout, value, time.UTC)
	if err != nil {
		if value != "" {
			s.logger.WarnContext(ctx, "invalid tiddler timestamp, using current time",
				slog.String("value", value),
			)
		}
		return s.now().UTC()
	}
	return parsed
}

// TiddlerID はエントリのIDを "タイトル/コンテナ名/リビジョン" の形式で返す。
func TiddlerID(t *model.Tiddler) string {
	_, container := t.Container()
	return fmt.Sprintf("%s/%s/%d", t.Title, container, t.Revision)
}
