package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database（空の場合はインメモリストア）
	DatabaseURL string

	// Server
	ServerPort    string
	ServerHostURL string // scheme://host[:port]
	ServerPrefix  string // 例: "/wiki"

	// Logging
	LogLevel slog.Level

	// Atom
	FeedLanguage      string
	AtomDefaultFilter string
	AtomAuthorURIMap  string // "%s"をユーザー名に置換する
	AtomHub           string

	// Wikitext
	TypeRenderMap   map[string]string
	DefaultRenderer string

	// Features
	DiffEnabled bool
	RSSEnabled  bool

	// Fetch（importサブコマンド）
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Rate Limit（req/min）
	RateLimitGeneral int

	// CORS
	CORSAllowedOrigin string
}

// DefaultTypeRenderMap はWIKITEXT_TYPE_RENDER_MAP未設定時の対応表。
const DefaultTypeRenderMap = "text/x-markdown=markdown,text/x-tiddlywiki=tiddlywiki,text/x-feed-html=html"

// Load は環境変数からConfigを読み込む。
// 値の形式が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var invalid []string

	cfg.ServerHostURL = strings.TrimRight(getEnvString("SERVER_HOST_URL", "http://0.0.0.0:8080"), "/")
	if u, err := url.Parse(cfg.ServerHostURL); err != nil || u.Scheme == "" || u.Host == "" {
		invalid = append(invalid, "SERVER_HOST_URL")
	}

	cfg.ServerPrefix = normalizePrefix(os.Getenv("SERVER_PREFIX"))

	level, err := ParseLogLevel(getEnvString("LOG_LEVEL", "info"))
	if err != nil {
		invalid = append(invalid, "LOG_LEVEL")
	}
	cfg.LogLevel = level

	renderMap, err := ParseTypeRenderMap(getEnvString("WIKITEXT_TYPE_RENDER_MAP", DefaultTypeRenderMap))
	if err != nil {
		invalid = append(invalid, "WIKITEXT_TYPE_RENDER_MAP")
	}
	cfg.TypeRenderMap = renderMap

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.FeedLanguage = getEnvString("FEED_LANGUAGE", "en")
	cfg.AtomDefaultFilter = os.Getenv("ATOM_DEFAULT_FILTER")
	cfg.AtomAuthorURIMap = os.Getenv("ATOM_AUTHOR_URI_MAP")
	cfg.AtomHub = os.Getenv("ATOM_HUB")
	cfg.DefaultRenderer = getEnvString("WIKITEXT_DEFAULT_RENDERER", "tiddlywiki")
	cfg.DiffEnabled = getEnvBool("DIFF_ENABLED", true)
	cfg.RSSEnabled = getEnvBool("RSS_ENABLED", false)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 300)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	return cfg, nil
}

// ParseTypeRenderMap は"type=renderer,type=renderer"形式の対応表を解析する。
// キーのメディアタイプは小文字に正規化する。
func ParseTypeRenderMap(raw string) (map[string]string, error) {
	m := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		mediaType, renderer, ok := strings.Cut(pair, "=")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
		renderer = strings.TrimSpace(renderer)
		if !ok || mediaType == "" || renderer == "" {
			return nil, fmt.Errorf("invalid render map entry %q", pair)
		}
		m[mediaType] = renderer
	}
	return m, nil
}

// ParseLogLevel はログレベル名をslog.Levelに変換する。
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// normalizePrefix は先頭に"/"を補い末尾の"/"を除く。
func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
