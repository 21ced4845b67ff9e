package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/tiddlyfeed/internal/middleware"
	"github.com/hitoshi/tiddlyfeed/internal/serializer"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	// ティドラー
	Store       TiddlerReader
	Serializers *serializer.Registry
	HostURL     string
	Prefix      string

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Metrics → Recovery → SecurityHeaders → CORS → GetHead → RateLimit
//
// /health と /metrics はRateLimitの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(chimw.GetHead)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	tiddlers := NewTiddlerHandler(deps.Store, deps.Serializers, TiddlerHandlerConfig{
		HostURL: deps.HostURL,
		Prefix:  deps.Prefix,
	}, logger)

	routes := chi.NewRouter()
	if deps.RateLimiter != nil {
		routes.Use(deps.RateLimiter.Middleware())
	}

	routes.Route("/bags/{bag}", func(r chi.Router) {
		r.Get("/tiddlers", tiddlers.ListBagTiddlers)
		r.Get("/tiddlers.{ext}", tiddlers.ListBagTiddlers)

		r.Route("/tiddlers/{title}", func(r chi.Router) {
			r.Get("/", tiddlers.GetTiddler)
			r.Get("/revisions", tiddlers.ListRevisions)
			r.Get("/revisions.{ext}", tiddlers.ListRevisions)
			r.Get("/revisions/{revision}", tiddlers.GetRevision)
		})
	})

	routes.Route("/recipes/{recipe}", func(r chi.Router) {
		r.Get("/tiddlers", tiddlers.ListRecipeTiddlers)
		r.Get("/tiddlers.{ext}", tiddlers.ListRecipeTiddlers)

		r.Route("/tiddlers/{title}", func(r chi.Router) {
			r.Get("/", tiddlers.GetTiddler)
			r.Get("/revisions", tiddlers.ListRevisions)
			r.Get("/revisions.{ext}", tiddlers.ListRevisions)
			r.Get("/revisions/{revision}", tiddlers.GetRevision)
		})
	})

	if deps.Prefix != "" {
		r.Mount(deps.Prefix, routes)
	} else {
		r.Mount("/", routes)
	}

	return r
}
