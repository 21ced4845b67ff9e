package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/tiddlyfeed/internal/model"
)

// PostgresTiddlerRepo はPostgreSQLを使用したティドラーリポジトリ。
// 各リビジョンをtiddler_revisionsの1行として保持する。
type PostgresTiddlerRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresTiddlerRepo はPostgresTiddlerRepoを生成する。
func NewPostgresTiddlerRepo(db *sql.DB) *PostgresTiddlerRepo {
	return &PostgresTiddlerRepo{db: db, now: time.Now}
}

const tiddlerColumns = `title, bag, revision, text, type, created, modified, modifier, tags`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTiddler(s rowScanner) (*model.Tiddler, error) {
	t := &model.Tiddler{}
	err := s.Scan(
		&t.Title, &t.Bag, &t.Revision, &t.Text, &t.Type,
		&t.Created, &t.Modified, &t.Modifier, pq.Array(&t.Tags),
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get は参照が指すティドラーを取得する。
func (r *PostgresTiddlerRepo) Get(ctx context.Context, ref model.TiddlerRef) (*model.Tiddler, error) {
	bag, err := r.resolveBag(ctx, ref)
	if err != nil {
		return nil, err
	}

	t, err := scanTiddler(r.db.QueryRowContext(ctx,
		`SELECT `+tiddlerColumns+`
		 FROM tiddler_revisions
		 WHERE bag = $1 AND title = $2 AND ($3 = 0 OR revision = $3)
		 ORDER BY revision DESC
		 LIMIT 1`,
		bag, ref.Title, ref.Revision,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s revision %d: %w", ref.Title, ref.Revision, model.ErrTiddlerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ティドラーの取得に失敗しました: %w", err)
	}

	if ref.Recipe != "" {
		t.Bag = ""
		t.Recipe = ref.Recipe
	}
	return t, nil
}

// ListRevisions はリビジョン番号を新しい順に返す。
func (r *PostgresTiddlerRepo) ListRevisions(ctx context.Context, ref model.TiddlerRef) ([]int, error) {
	bag, err := r.resolveBag(ctx, ref)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT revision FROM tiddler_revisions
		 WHERE bag = $1 AND title = $2
		 ORDER BY revision DESC`,
		bag, ref.Title,
	)
	if err != nil {
		return nil, fmt.Errorf("リビジョン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("リビジョンのスキャンに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リビジョン一覧の走査に失敗しました: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s in bag %s: %w", ref.Title, bag, model.ErrTiddlerNotFound)
	}
	return ids, nil
}

// ListBagTiddlers はバッグ内の各ティドラーの最新リビジョンをタイトル順に返す。
func (r *PostgresTiddlerRepo) ListBagTiddlers(ctx context.Context, bag string) ([]*model.Tiddler, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT ON (title) `+tiddlerColumns+`
		 FROM tiddler_revisions
		 WHERE bag = $1
		 ORDER BY title, revision DESC`,
		bag,
	)
	if err != nil {
		return nil, fmt.Errorf("バッグのティドラー一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectTiddlers(rows, "")
}

// ListRecipeTiddlers はレシピを解決した各ティドラーの最新リビジョンをタイトル順に返す。
// レシピ内の位置が後ろのバッグほど優先される。
func (r *PostgresTiddlerRepo) ListRecipeTiddlers(ctx context.Context, recipe string) ([]*model.Tiddler, error) {
	bags, err := r.recipeBags(ctx, recipe)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT ON (t.title) t.title, t.bag, t.revision, t.text, t.type,
		        t.created, t.modified, t.modifier, t.tags
		 FROM tiddler_revisions t
		 JOIN unnest($1::text[]) WITH ORDINALITY AS b(bag, pos) ON b.bag = t.bag
		 ORDER BY t.title, b.pos DESC, t.revision DESC`,
		pq.Array(bags),
	)
	if err != nil {
		return nil, fmt.Errorf("レシピのティドラー一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectTiddlers(rows, recipe)
}

// Put はティドラーを新しいリビジョンとして保存する。
// 採番と初回Createdの引き継ぎは同一トランザクション内で行う。
func (r *PostgresTiddlerRepo) Put(ctx context.Context, t *model.Tiddler) error {
	if t.Bag == "" {
		return ErrBagRequired
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest int
	var firstCreated sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(revision), 0),
		        (array_agg(created ORDER BY revision))[1]
		 FROM tiddler_revisions
		 WHERE bag = $1 AND title = $2`,
		t.Bag, t.Title,
	).Scan(&latest, &firstCreated)
	if err != nil {
		return fmt.Errorf("最新リビジョンの取得に失敗しました: %w", err)
	}

	now := model.FormatTimestamp(r.now())
	if firstCreated.Valid {
		t.Created = firstCreated.String
	} else if t.Created == "" {
		t.Created = now
	}
	if t.Modified == "" {
		t.Modified = now
	}
	t.Revision = latest + 1
	t.Recipe = ""

	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tiddler_revisions (bag, title, revision, text, type, created, modified, modifier, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.Bag, t.Title, t.Revision, t.Text, t.Type, t.Created, t.Modified, t.Modifier, pq.Array(tags),
	)
	if err != nil {
		return fmt.Errorf("ティドラーの保存に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PutRecipe はレシピのバッグ構成を作成または更新する。
func (r *PostgresTiddlerRepo) PutRecipe(ctx context.Context, name string, bags []string) error {
	if bags == nil {
		bags = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recipes (name, bags)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET bags = EXCLUDED.bags, updated_at = now()`,
		name, pq.Array(bags),
	)
	if err != nil {
		return fmt.Errorf("レシピの保存に失敗しました: %w", err)
	}
	return nil
}

// recipeBags はレシピのバッグ構成を取得する。
func (r *PostgresTiddlerRepo) recipeBags(ctx context.Context, recipe string) ([]string, error) {
	var bags []string
	err := r.db.QueryRowContext(ctx,
		`SELECT bags FROM recipes WHERE name = $1`, recipe,
	).Scan(pq.Array(&bags))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", recipe, model.ErrRecipeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("レシピの取得に失敗しました: %w", err)
	}
	return bags, nil
}

// resolveBag は参照が実際に指すバッグ名を返す。
// レシピ参照の場合はタイトルを持つバッグのうちレシピ内で最も後ろのものを選ぶ。
func (r *PostgresTiddlerRepo) resolveBag(ctx context.Context, ref model.TiddlerRef) (string, error) {
	if ref.Recipe == "" {
		return ref.Bag, nil
	}

	bags, err := r.recipeBags(ctx, ref.Recipe)
	if err != nil {
		return "", err
	}

	var bag string
	err = r.db.QueryRowContext(ctx,
		`SELECT b.bag
		 FROM unnest($1::text[]) WITH ORDINALITY AS b(bag, pos)
		 WHERE EXISTS (
		     SELECT 1 FROM tiddler_revisions t WHERE t.bag = b.bag AND t.title = $2
		 )
		 ORDER BY b.pos DESC
		 LIMIT 1`,
		pq.Array(bags), ref.Title,
	).Scan(&bag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s in recipe %s: %w", ref.Title, ref.Recipe, model.ErrTiddlerNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("レシピの解決に失敗しました: %w", err)
	}
	return bag, nil
}

// collectTiddlers は行を走査してティドラー一覧を構築する。recipeが空でなければコンテナをレシピに置き換える。
func collectTiddlers(rows *sql.Rows, recipe string) ([]*model.Tiddler, error) {
	var result []*model.Tiddler
	for rows.Next() {
		t, err := scanTiddler(rows)
		if err != nil {
			return nil, fmt.Errorf("ティドラーのスキャンに失敗しました: %w", err)
		}
		if recipe != "" {
			t.Bag = ""
			t.Recipe = recipe
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ティドラー一覧の走査に失敗しました: %w", err)
	}
	return result, nil
}
