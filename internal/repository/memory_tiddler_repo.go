package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/tiddlyfeed/internal/model"
)

// MemoryTiddlerRepo はプロセス内メモリにティドラーを保持するリポジトリ。
// DATABASE_URL未設定時とテストで使用する。
type MemoryTiddlerRepo struct {
	mu      sync.RWMutex
	bags    map[string]map[string][]model.Tiddler // bag -> title -> 古い順のリビジョン
	recipes map[string][]string
	now     func() time.Time
}

// NewMemoryTiddlerRepo は空のMemoryTiddlerRepoを生成する。
func NewMemoryTiddlerRepo() *MemoryTiddlerRepo {
	return &MemoryTiddlerRepo{
		bags:    make(map[string]map[string][]model.Tiddler),
		recipes: make(map[string][]string),
		now:     time.Now,
	}
}

// Get は参照が指すティドラーを取得する。
func (r *MemoryTiddlerRepo) Get(ctx context.Context, ref model.TiddlerRef) (*model.Tiddler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	revs, err := r.resolve(ref)
	if err != nil {
		return nil, err
	}

	if ref.Revision == 0 {
		return r.withContainer(revs[len(revs)-1], ref), nil
	}
	for _, t := range revs {
		if t.Revision == ref.Revision {
			return r.withContainer(t, ref), nil
		}
	}
	return nil, fmt.Errorf("%s revision %d: %w", ref.Title, ref.Revision, model.ErrTiddlerNotFound)
}

// ListRevisions はリビジョン番号を新しい順に返す。
func (r *MemoryTiddlerRepo) ListRevisions(ctx context.Context, ref model.TiddlerRef) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	revs, err := r.resolve(ref)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(revs))
	for i := len(revs) - 1; i >= 0; i-- {
		ids = append(ids, revs[i].Revision)
	}
	return ids, nil
}

// ListBagTiddlers はバッグ内の各ティドラーの最新リビジョンをタイトル順に返す。
func (r *MemoryTiddlerRepo) ListBagTiddlers(ctx context.Context, bag string) ([]*model.Tiddler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	titles := r.bags[bag]
	result := make([]*model.Tiddler, 0, len(titles))
	for _, revs := range titles {
		head := revs[len(revs)-1]
		result = append(result, copyTiddler(head))
	}
	sortByTitle(result)
	return result, nil
}

// ListRecipeTiddlers はレシピを解決した各ティドラーの最新リビジョンをタイトル順に返す。
func (r *MemoryTiddlerRepo) ListRecipeTiddlers(ctx context.Context, recipe string) ([]*model.Tiddler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bags, ok := r.recipes[recipe]
	if !ok {
		return nil, fmt.Errorf("%s: %w", recipe, model.ErrRecipeNotFound)
	}

	winners := make(map[string]model.Tiddler)
	for _, bag := range bags {
		for title, revs := range r.bags[bag] {
			winners[title] = revs[len(revs)-1]
		}
	}

	result := make([]*model.Tiddler, 0, len(winners))
	for _, t := range winners {
		c := copyTiddler(t)
		c.Bag = ""
		c.Recipe = recipe
		result = append(result, c)
	}
	sortByTitle(result)
	return result, nil
}

// Put はティドラーを新しいリビジョンとして保存する。
func (r *MemoryTiddlerRepo) Put(ctx context.Context, t *model.Tiddler) error {
	if t.Bag == "" {
		return ErrBagRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	titles, ok := r.bags[t.Bag]
	if !ok {
		titles = make(map[string][]model.Tiddler)
		r.bags[t.Bag] = titles
	}

	now := model.FormatTimestamp(r.now())
	revs := titles[t.Title]
	if len(revs) > 0 {
		t.Created = revs[0].Created
	} else if t.Created == "" {
		t.Created = now
	}
	if t.Modified == "" {
		t.Modified = now
	}
	t.Revision = len(revs) + 1
	t.Recipe = ""

	titles[t.Title] = append(revs, *copyTiddler(*t))
	return nil
}

// PutRecipe はレシピのバッグ構成を作成または更新する。
func (r *MemoryTiddlerRepo) PutRecipe(ctx context.Context, name string, bags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recipes[name] = slices.Clone(bags)
	return nil
}

// resolve は参照が指すバッグのリビジョン列を返す。呼び出し側でロックを保持すること。
func (r *MemoryTiddlerRepo) resolve(ref model.TiddlerRef) ([]model.Tiddler, error) {
	if ref.Recipe == "" {
		revs := r.bags[ref.Bag][ref.Title]
		if len(revs) == 0 {
			return nil, fmt.Errorf("%s in bag %s: %w", ref.Title, ref.Bag, model.ErrTiddlerNotFound)
		}
		return revs, nil
	}

	bags, ok := r.recipes[ref.Recipe]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref.Recipe, model.ErrRecipeNotFound)
	}
	for i := len(bags) - 1; i >= 0; i-- {
		if revs := r.bags[bags[i]][ref.Title]; len(revs) > 0 {
			return revs, nil
		}
	}
	return nil, fmt.Errorf("%s in recipe %s: %w", ref.Title, ref.Recipe, model.ErrTiddlerNotFound)
}

// withContainer は保存値のコピーに参照側のコンテナを反映する。
func (r *MemoryTiddlerRepo) withContainer(t model.Tiddler, ref model.TiddlerRef) *model.Tiddler {
	c := copyTiddler(t)
	if ref.Recipe != "" {
		c.Bag = ""
		c.Recipe = ref.Recipe
	}
	return c
}

func copyTiddler(t model.Tiddler) *model.Tiddler {
	t.Tags = slices.Clone(t.Tags)
	return &t
}

func sortByTitle(tiddlers []*model.Tiddler) {
	sort.Slice(tiddlers, func(i, j int) bool {
		return tiddlers[i].Title < tiddlers[j].Title
	})
}
