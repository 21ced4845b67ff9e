package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tiddlyfeed/internal/middleware"
	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/serializer"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// TiddlerReader はハンドラーが必要とするストアの読み取り操作。
// repository.TiddlerStoreが実装する。
type TiddlerReader interface {
	Get(ctx context.Context, ref model.TiddlerRef) (*model.Tiddler, error)
	ListRevisions(ctx context.Context, ref model.TiddlerRef) ([]int, error)
	ListBagTiddlers(ctx context.Context, bag string) ([]*model.Tiddler, error)
	ListRecipeTiddlers(ctx context.Context, recipe string) ([]*model.Tiddler, error)
}

// TiddlerHandlerConfig はURL生成に使うホスト設定。
type TiddlerHandlerConfig struct {
	// HostURL はスキームとホスト。空の場合はリクエストのHostヘッダーから組み立てる。
	HostURL string
	// Prefix はサーバーのパスプレフィックス。
	Prefix string
}

// TiddlerHandler はバッグ・レシピ・ティドラーの表現を返すHTTPハンドラー。
type TiddlerHandler struct {
	store       TiddlerReader
	serializers *serializer.Registry
	config      TiddlerHandlerConfig
	logger      *slog.Logger
}

// NewTiddlerHandler はTiddlerHandlerを生成する。
func NewTiddlerHandler(store TiddlerReader, serializers *serializer.Registry, config TiddlerHandlerConfig, logger *slog.Logger) *TiddlerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TiddlerHandler{
		store:       store,
		serializers: serializers,
		config:      config,
		logger:      logger,
	}
}

// ListBagTiddlers はバッグ内のティドラー一覧を返す。
// GET /bags/{bag}/tiddlers[.{ext}]
func (h *TiddlerHandler) ListBagTiddlers(w http.ResponseWriter, r *http.Request) {
	bag := pathParam(r, "bag")

	items, err := h.store.ListBagTiddlers(r.Context(), bag)
	if err != nil {
		h.handleError(w, r, bag, err)
		return
	}

	h.writeCollection(w, r, &model.Tiddlers{
		Title: "Tiddlers in Bag " + bag,
		Items: items,
	})
}

// ListRecipeTiddlers はレシピを解決したティドラー一覧を返す。
// GET /recipes/{recipe}/tiddlers[.{ext}]
func (h *TiddlerHandler) ListRecipeTiddlers(w http.ResponseWriter, r *http.Request) {
	recipe := pathParam(r, "recipe")

	items, err := h.store.ListRecipeTiddlers(r.Context(), recipe)
	if err != nil {
		h.handleError(w, r, recipe, err)
		return
	}

	h.writeCollection(w, r, &model.Tiddlers{
		Title: "Tiddlers in Recipe " + recipe,
		Items: items,
	})
}

// GetTiddler はティドラー1件を返す。
// GET /bags/{bag}/tiddlers/{title} または /recipes/{recipe}/tiddlers/{title}
// タイトル末尾の拡張子が登録済みの表現形式に一致する場合はその形式で返す。
func (h *TiddlerHandler) GetTiddler(w http.ResponseWriter, r *http.Request) {
	title, mediaType := h.splitExtension(pathParam(r, "title"))
	ref := containerRef(r, title)

	t, err := h.store.Get(r.Context(), ref)
	if err != nil {
		h.handleError(w, r, title, err)
		return
	}

	h.writeTiddler(w, r, t, mediaType)
}

// ListRevisions はティドラーの全リビジョンを新しい順のコレクションとして返す。
// GET /bags/{bag}/tiddlers/{title}/revisions[.{ext}]
func (h *TiddlerHandler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	title := pathParam(r, "title")
	ref := containerRef(r, title)

	ids, err := h.store.ListRevisions(r.Context(), ref)
	if err != nil {
		h.handleError(w, r, title, err)
		return
	}

	revisions := &model.Tiddlers{
		Title:       "Revisions of Tiddler " + title,
		IsRevisions: true,
	}
	for _, id := range ids {
		t, err := h.store.Get(r.Context(), ref.WithRevision(id))
		if err != nil {
			h.handleError(w, r, title, err)
			return
		}
		revisions.Add(t)
	}

	h.writeCollection(w, r, revisions)
}

// GetRevision はティドラーの特定リビジョンを返す。
// GET /bags/{bag}/tiddlers/{title}/revisions/{revision}
func (h *TiddlerHandler) GetRevision(w http.ResponseWriter, r *http.Request) {
	title := pathParam(r, "title")
	raw, mediaType := h.splitExtension(pathParam(r, "revision"))

	revision, err := strconv.Atoi(raw)
	if err != nil || revision < 1 {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewTiddlerNotFoundError(title))
		return
	}

	t, err := h.store.Get(r.Context(), containerRef(r, title).WithRevision(revision))
	if err != nil {
		h.handleError(w, r, title, err)
		return
	}

	h.writeTiddler(w, r, t, mediaType)
}

func (h *TiddlerHandler) writeCollection(w http.ResponseWriter, r *http.Request, tiddlers *model.Tiddlers) {
	s, ok := h.choose(w, r, h.extensionType(r))
	if !ok {
		return
	}

	out, err := s.ListTiddlers(r.Context(), tiddlers, h.request(r))
	if err != nil {
		h.handleError(w, r, tiddlers.Title, err)
		return
	}
	writeBody(w, s.ContentType(), out)
}

func (h *TiddlerHandler) writeTiddler(w http.ResponseWriter, r *http.Request, t *model.Tiddler, mediaType string) {
	s, ok := h.choose(w, r, mediaType)
	if !ok {
		return
	}

	out, err := s.Tiddler(r.Context(), t, h.request(r))
	if err != nil {
		h.handleError(w, r, t.Title, err)
		return
	}
	writeBody(w, s.ContentType(), out)
}

// choose はURLの拡張子またはAcceptヘッダーからシリアライザを選ぶ。
// 選べない場合は406を書き込んでfalseを返す。
func (h *TiddlerHandler) choose(w http.ResponseWriter, r *http.Request, mediaType string) (serializer.Serializer, bool) {
	if mediaType != "" {
		s, err := h.serializers.Lookup(mediaType)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusNotAcceptable, model.NewUnsupportedMediaTypeError(mediaType))
			return nil, false
		}
		return s, true
	}

	w.Header().Add("Vary", "Accept")
	accept := r.Header.Get("Accept")
	s, _, err := h.serializers.Negotiate(accept)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotAcceptable, model.NewUnsupportedMediaTypeError(accept))
		return nil, false
	}
	return s, true
}

// extensionType はコレクションURLの {ext} パラメータに対応するメディアタイプを返す。
// 未登録の拡張子は "." 付きのまま返し、Lookupで406になるようにする。
func (h *TiddlerHandler) extensionType(r *http.Request) string {
	ext := chi.URLParam(r, "ext")
	if ext == "" {
		return ""
	}
	if mt, ok := h.serializers.TypeForExtension(ext); ok {
		return mt
	}
	return "." + ext
}

// splitExtension は名前の末尾が登録済みの拡張子なら、それを除いた名前とメディアタイプを返す。
func (h *TiddlerHandler) splitExtension(name string) (string, string) {
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return name, ""
	}
	if mt, ok := h.serializers.TypeForExtension(ext); ok {
		return strings.TrimSuffix(name, ext), mt
	}
	return name, ""
}

// request はシリアライザに渡すリクエストコンテキストを生成する。
func (h *TiddlerHandler) request(r *http.Request) *weburl.Request {
	host := h.config.HostURL
	if host == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		host = scheme + "://" + r.Host
	}
	return weburl.FromHTTP(r, host, h.config.Prefix)
}

// handleError はストアやシリアライザのエラーをHTTPレスポンスに変換する。
func (h *TiddlerHandler) handleError(w http.ResponseWriter, r *http.Request, name string, err error) {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
	case errors.Is(err, model.ErrTiddlerNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewTiddlerNotFoundError(name))
	case errors.Is(err, model.ErrRecipeNotFound):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewRecipeNotFoundError(name))
	case errors.Is(err, model.ErrNoSerializer):
		middleware.WriteErrorResponse(w, http.StatusNotAcceptable, model.NewUnsupportedMediaTypeError(name))
	default:
		h.logger.ErrorContext(r.Context(), "failed to serialize",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeTiddlerNotFound, model.ErrCodeRecipeNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnsupportedMediaType:
		return http.StatusNotAcceptable
	case model.ErrCodeInvalidImportURL:
		return http.StatusBadRequest
	case model.ErrCodeImportFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// containerRef はURLのbagまたはrecipeパラメータからティドラー参照を組み立てる。
func containerRef(r *http.Request, title string) model.TiddlerRef {
	if recipe := pathParam(r, "recipe"); recipe != "" {
		return model.TiddlerRef{Title: title, Recipe: recipe}
	}
	return model.TiddlerRef{Title: title, Bag: pathParam(r, "bag")}
}

// pathParam はchiのURLパラメータをデコードして返す。
// chiはRawPathでルーティングするため、"%2F" を含む名前はエスケープされたまま渡される。
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
