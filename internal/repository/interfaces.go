// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/tiddlyfeed/internal/model"
)

// TiddlerStore はティドラーとレシピの永続化インターフェース。
// 取得系はrevision.Storeを満たし、フィード生成から読み取り専用で使われる。
type TiddlerStore interface {
	// Get は参照が指すティドラーを取得する。Revisionが0の場合は最新リビジョンを返す。
	// 見つからない場合はmodel.ErrTiddlerNotFoundを返す。
	Get(ctx context.Context, ref model.TiddlerRef) (*model.Tiddler, error)

	// ListRevisions はリビジョン番号を新しい順に返す。
	ListRevisions(ctx context.Context, ref model.TiddlerRef) ([]int, error)

	// ListBagTiddlers はバッグ内の各ティドラーの最新リビジョンをタイトル順に返す。
	ListBagTiddlers(ctx context.Context, bag string) ([]*model.Tiddler, error)

	// ListRecipeTiddlers はレシピを解決した各ティドラーの最新リビジョンをタイトル順に返す。
	// 同じタイトルが複数のバッグにある場合はレシピ内で後ろのバッグが優先される。
	ListRecipeTiddlers(ctx context.Context, recipe string) ([]*model.Tiddler, error)

	// Put はティドラーを新しいリビジョンとして保存し、採番したRevisionとCreatedをtに反映する。
	Put(ctx context.Context, t *model.Tiddler) error

	// PutRecipe はレシピのバッグ構成を作成または更新する。
	PutRecipe(ctx context.Context, name string, bags []string) error
}

// ErrBagRequired はバッグ未指定のティドラーを保存しようとしたことを示す。
var ErrBagRequired = errors.New("tiddler must belong to a bag")
