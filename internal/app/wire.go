package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tiddlyfeed/internal/atomfeed"
	"github.com/hitoshi/tiddlyfeed/internal/config"
	"github.com/hitoshi/tiddlyfeed/internal/database"
	"github.com/hitoshi/tiddlyfeed/internal/differ"
	"github.com/hitoshi/tiddlyfeed/internal/filter"
	"github.com/hitoshi/tiddlyfeed/internal/handler"
	"github.com/hitoshi/tiddlyfeed/internal/htmllinks"
	"github.com/hitoshi/tiddlyfeed/internal/metrics"
	"github.com/hitoshi/tiddlyfeed/internal/middleware"
	"github.com/hitoshi/tiddlyfeed/internal/render"
	"github.com/hitoshi/tiddlyfeed/internal/repository"
	"github.com/hitoshi/tiddlyfeed/internal/revision"
	"github.com/hitoshi/tiddlyfeed/internal/security"
	"github.com/hitoshi/tiddlyfeed/internal/serializer"
	"github.com/hitoshi/tiddlyfeed/internal/syndication"
	"github.com/hitoshi/tiddlyfeed/internal/wikitext"
)

// Store はオープン済みのティドラーストア。
// DBはDATABASE_URL未設定（インメモリ）の場合nil。
type Store struct {
	repository.TiddlerStore
	DB *sql.DB
}

// Close はDB接続を閉じる。
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// HealthChecker はヘルスチェックに使う疎通確認先を返す。
func (s *Store) HealthChecker() handler.HealthChecker {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

// OpenStore は設定に応じてPostgreSQLまたはインメモリのストアを開く。
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set, using in-memory store")
		return &Store{TiddlerStore: repository.NewMemoryTiddlerRepo()}, nil
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return &Store{TiddlerStore: repository.NewPostgresTiddlerRepo(db), DB: db}, nil
}

// NewRenderers はレンダラーIDごとの実装を登録したwikitext.Registryを返す。
func NewRenderers(cfg *config.Config, sanitizer security.Sanitizer) *wikitext.Registry {
	markdown := wikitext.NewMarkdown(sanitizer)

	renderers := wikitext.NewRegistry(cfg.TypeRenderMap, cfg.DefaultRenderer)
	renderers.Register(wikitext.RendererMarkdown, markdown)
	renderers.Register(wikitext.RendererTiddlyWiki, wikitext.NewTiddlyWiki(markdown))
	renderers.Register(wikitext.RendererHTML, wikitext.NewHTML(sanitizer))
	renderers.Register(wikitext.RendererRaw, wikitext.Raw{})
	return renderers
}

// NewSerializers は表現形式ごとのシリアライザを登録したRegistryを返す。
// 既定の表現形式はHTML。RSS_ENABLEDの場合はRSS 2.0も登録する。
func NewSerializers(cfg *config.Config, store revision.Store, collector metrics.MetricsCollector, logger *slog.Logger) *serializer.Registry {
	classifier := render.DefaultClassifier{}
	policy := render.NewPolicy(classifier, NewRenderers(cfg, security.NewMarkupSanitizer()), cfg.TypeRenderMap, collector, logger)

	var diff revision.Differ
	if cfg.DiffEnabled {
		diff = differ.NewUnified(differ.DefaultContext)
	}
	comparer := revision.NewComparer(store, diff, classifier, collector, logger)

	opts := atomfeed.Options{
		DefaultFilter: cfg.AtomDefaultFilter,
		AuthorURIMap:  cfg.AtomAuthorURIMap,
		HubURL:        cfg.AtomHub,
		Language:      cfg.FeedLanguage,
	}

	registry := serializer.NewRegistry("text/html")
	registry.Register(syndication.AtomMimeType, "atom", atomfeed.New(policy, comparer, filter.QueryEngine{}, opts, collector, logger))
	registry.Register("text/html", "html", htmllinks.New(policy))

	if cfg.RSSEnabled {
		opts.Dialect = syndication.RSS201{}
		registry.Register(syndication.RSSMimeType, "rss", atomfeed.New(policy, comparer, filter.QueryEngine{}, opts, collector, logger))
	}

	return registry
}

// NewHandler はストアとメトリクスレジストリから全ルートを持つHTTPハンドラーを構築する。
// 返すRateLimiterはサーバー停止時にStopすること。
func NewHandler(cfg *config.Config, store *Store, reg *prometheus.Registry, logger *slog.Logger) (http.Handler, *middleware.RateLimiter) {
	collector := metrics.NewCollector(reg)
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		StatusRecorder:    collector,

		Store:       store,
		Serializers: NewSerializers(cfg, store, collector, logger),
		HostURL:     cfg.ServerHostURL,
		Prefix:      cfg.ServerPrefix,

		HealthChecker:  store.HealthChecker(),
		MetricsHandler: metrics.Handler(reg),
	})
	return router, limiter
}
