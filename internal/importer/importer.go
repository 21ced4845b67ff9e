// Package importer はリモートのRSS/Atomフィードを取得し、記事をティドラーとしてバッグに取り込む。
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/tiddlyfeed/internal/model"
)

// ImportedType は取り込んだティドラーに設定するコンテンツタイプ。
// サニタイズ済みの記事本文で、利用者が書いたtext/htmlとは区別する。
const ImportedType = "text/x-feed-html"

// Failure reasons recorded in metrics.
const (
	reasonBlocked = "blocked"
	reasonFetch   = "fetch"
	reasonStatus  = "status"
	reasonNotFeed = "not_feed"
	reasonParse   = "parse"
	reasonStore   = "store"
)

// Store は取り込み先ストアのインターフェース。repository.TiddlerStoreが満たす。
type Store interface {
	Get(ctx context.Context, ref model.TiddlerRef) (*model.Tiddler, error)
	Put(ctx context.Context, t *model.Tiddler) error
}

// URLValidator はインポート元URLの検証インターフェース。security.ImportGuardが満たす。
type URLValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Sanitizer は取り込む本文のサニタイザ。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// MetricsRecorder は取り込み結果を記録する。
type MetricsRecorder interface {
	RecordTiddlersImported(count int)
	RecordImportFailure(reason string)
}

// Result は1回の取り込みの結果。
type Result struct {
	FeedURL   string // 実際に取り込んだフィードのURL
	Imported  int    // 新しいリビジョンとして保存した件数
	Unchanged int    // 最新リビジョンと同じ内容のため保存しなかった件数
	Skipped   int    // タイトルが得られなかった件数
}

// Importer はフィードの取得・解析・保存を行う。
type Importer struct {
	store       Store
	guard       URLValidator
	sanitizer   Sanitizer
	metrics     MetricsRecorder
	logger      *slog.Logger
	parser      *gofeed.Parser
	timeout     time.Duration
	maxBodySize int64
}

// New はImporterを生成する。metricsはnilでもよい。
func New(
	store Store,
	guard URLValidator,
	sanitizer Sanitizer,
	metrics MetricsRecorder,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Importer {
	return &Importer{
		store:       store,
		guard:       guard,
		sanitizer:   sanitizer,
		metrics:     metrics,
		logger:      logger,
		parser:      gofeed.NewParser(),
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Import はfeedURLのフィードを取得してbagに取り込む。
// feedURLがHTMLページの場合はhead内のフィードリンクを1回だけ辿る。
func (im *Importer) Import(ctx context.Context, bag, feedURL string) (*Result, error) {
	if bag == "" {
		return nil, model.NewInvalidImportURLError("取り込み先のバッグが指定されていません")
	}

	body, contentType, err := im.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	if !IsDirectFeed(contentType, body) && isHTML(contentType) {
		best := SelectBest(FeedLinks(body, feedURL), feedURL)
		if best == nil {
			im.recordFailure(reasonNotFeed)
			return nil, model.NewImportFailedError(fmt.Sprintf("フィードが見つかりません: %s", feedURL))
		}
		im.logger.Info("フィードリンクを検出しました",
			slog.String("page_url", feedURL),
			slog.String("feed_url", best.URL),
			slog.String("kind", string(best.Kind)),
		)
		feedURL = best.URL
		if body, _, err = im.fetch(ctx, feedURL); err != nil {
			return nil, err
		}
	}

	parsed, err := im.parser.Parse(bytes.NewReader(body))
	if err != nil {
		im.recordFailure(reasonParse)
		return nil, model.NewImportFailedError(fmt.Sprintf("フィードの解析に失敗しました: %v", err))
	}

	result := &Result{FeedURL: feedURL}
	for _, item := range parsed.Items {
		tiddler := ToTiddler(bag, item, im.sanitizer)
		if tiddler == nil {
			result.Skipped++
			continue
		}

		changed, err := im.changed(ctx, tiddler)
		if err != nil {
			im.recordFailure(reasonStore)
			return result, fmt.Errorf("failed to read %q: %w", tiddler.Title, err)
		}
		if !changed {
			result.Unchanged++
			continue
		}

		if err := im.store.Put(ctx, tiddler); err != nil {
			im.recordFailure(reasonStore)
			return result, fmt.Errorf("failed to store %q: %w", tiddler.Title, err)
		}
		result.Imported++
	}

	if im.metrics != nil {
		im.metrics.RecordTiddlersImported(result.Imported)
	}
	im.logger.Info("フィードを取り込みました",
		slog.String("bag", bag),
		slog.String("feed_url", feedURL),
		slog.String("feed_title", parsed.Title),
		slog.Int("imported", result.Imported),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// fetch はSSRF検証の後にURLを取得し、ボディとContent-Typeを返す。
func (im *Importer) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := im.guard.ValidateURL(rawURL); err != nil {
		im.recordFailure(reasonBlocked)
		im.logger.Warn("インポート元URLを拒否しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, "", model.NewInvalidImportURLError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		im.recordFailure(reasonBlocked)
		return nil, "", model.NewInvalidImportURLError(err.Error())
	}
	req.Header.Set("User-Agent", "tiddlyfeed/1.0 importer")
	req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/xml, text/xml, text/html;q=0.8, */*;q=0.5")

	resp, err := im.guard.NewSafeClient(im.timeout).Do(req)
	if err != nil {
		im.recordFailure(reasonFetch)
		return nil, "", model.NewImportFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		im.recordFailure(reasonStatus)
		return nil, "", model.NewImportFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.maxBodySize))
	if err != nil {
		im.recordFailure(reasonFetch)
		return nil, "", model.NewImportFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// changed は最新リビジョンと比べて本文・タグ・更新者のいずれかが変わったかを返す。
func (im *Importer) changed(ctx context.Context, t *model.Tiddler) (bool, error) {
	head, err := im.store.Get(ctx, model.TiddlerRef{Title: t.Title, Bag: t.Bag})
	if errors.Is(err, model.ErrTiddlerNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return head.Text != t.Text || head.Modifier != t.Modifier || !slices.Equal(head.Tags, t.Tags), nil
}

func (im *Importer) recordFailure(reason string) {
	if im.metrics != nil {
		im.metrics.RecordImportFailure(reason)
	}
}

// ToTiddler はフィード記事をティドラーに変換する。タイトルが得られない場合はnilを返す。
// 本文はcontent、なければdescriptionを使う。
func ToTiddler(bag string, item *gofeed.Item, sanitizer Sanitizer) *model.Tiddler {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = strings.TrimSpace(item.Link)
	}
	if title == "" {
		title = strings.TrimSpace(item.GUID)
	}
	if title == "" {
		return nil
	}

	text := item.Content
	if text == "" {
		text = item.Description
	}
	if sanitizer != nil {
		text = sanitizer.Sanitize(text)
	}

	t := &model.Tiddler{
		Title:    title,
		Bag:      bag,
		Text:     text,
		Type:     ImportedType,
		Modifier: authorName(item),
		Tags:     slices.Clone(item.Categories),
	}

	switch {
	case item.PublishedParsed != nil:
		t.Created = model.FormatTimestamp(*item.PublishedParsed)
	case item.UpdatedParsed != nil:
		t.Created = model.FormatTimestamp(*item.UpdatedParsed)
	}
	switch {
	case item.UpdatedParsed != nil:
		t.Modified = model.FormatTimestamp(*item.UpdatedParsed)
	default:
		t.Modified = t.Created
	}

	return t
}

func authorName(item *gofeed.Item) string {
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}
