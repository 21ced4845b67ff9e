// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ストアおよびレンダリング層が返すセンチネルエラー。
var (
	// ErrTiddlerNotFound は指定されたティドラーまたはリビジョンが存在しないことを示す。
	ErrTiddlerNotFound = errors.New("tiddler not found")
	// ErrRecipeNotFound は指定されたレシピが存在しないことを示す。
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrRendererNotConfigured はティドラーの型に対応するマークアップレンダラーが設定されていないことを示す。
	ErrRendererNotConfigured = errors.New("markup renderer not configured")
	// ErrNoSerializer は要求されたメディアタイプのシリアライザが登録されていないことを示す。
	ErrNoSerializer = errors.New("no serializer for media type")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, store, render, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeTiddlerNotFound      = "TIDDLER_NOT_FOUND"
	ErrCodeRecipeNotFound       = "RECIPE_NOT_FOUND"
	ErrCodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeInvalidImportURL     = "INVALID_IMPORT_URL"
	ErrCodeImportFailed         = "IMPORT_FAILED"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewTiddlerNotFoundError はティドラー未検出エラーを生成する。
func NewTiddlerNotFoundError(title string) *APIError {
	return &APIError{
		Code:     ErrCodeTiddlerNotFound,
		Message:  fmt.Sprintf("指定されたティドラーが見つかりません: %s", title),
		Category: "store",
		Action:   "ティドラーのタイトルとバッグ名を確認してください。",
	}
}

// NewRecipeNotFoundError はレシピ未検出エラーを生成する。
func NewRecipeNotFoundError(recipe string) *APIError {
	return &APIError{
		Code:     ErrCodeRecipeNotFound,
		Message:  fmt.Sprintf("指定されたレシピが見つかりません: %s", recipe),
		Category: "store",
		Action:   "レシピ名を確認してください。",
	}
}

// NewUnsupportedMediaTypeError は対応していない表現形式が要求された場合のエラーを生成する。
func NewUnsupportedMediaTypeError(mediaType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMediaType,
		Message:  fmt.Sprintf("対応していない形式です: %s", mediaType),
		Category: "validation",
		Action:   "拡張子 .atom または .html を指定するか、Acceptヘッダーを確認してください。",
	}
}

// NewInvalidImportURLError はインポート元URLが無効な場合のエラーを生成する。
func NewInvalidImportURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImportURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewImportFailedError はフィードの取得・解析に失敗した場合のエラーを生成する。
func NewImportFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("フィードのインポートに失敗しました: %s", reason),
		Category: "store",
		Action:   "URLが有効なRSS/Atomフィードか確認してください。",
	}
}
