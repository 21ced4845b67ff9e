package repository

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/hitoshi/tiddlyfeed/internal/model"
)

// runTiddlerStoreContract はTiddlerStore実装が満たすべき振る舞いを検証する。
// newStore は呼び出しごとに空のストアを返すこと。
func runTiddlerStoreContract(t *testing.T, newStore func(t *testing.T) TiddlerStore) {
	ctx := context.Background()

	t.Run("Putはリビジョンを採番し初回Createdを引き継ぐ", func(t *testing.T) {
		store := newStore(t)

		first := &model.Tiddler{Title: "one", Bag: "fake", Text: "v1", Created: "20230101000000", Modified: "20230101000000"}
		if err := store.Put(ctx, first); err != nil {
			t.Fatalf("Put: %v", err)
		}
		second := &model.Tiddler{Title: "one", Bag: "fake", Text: "v2", Created: "20240101000000", Modified: "20240101000000"}
		if err := store.Put(ctx, second); err != nil {
			t.Fatalf("Put: %v", err)
		}

		if first.Revision != 1 || second.Revision != 2 {
			t.Errorf("revisions = %d, %d, want 1, 2", first.Revision, second.Revision)
		}
		if second.Created != "20230101000000" {
			t.Errorf("second.Created = %q, want first revision's created", second.Created)
		}

		head, err := store.Get(ctx, model.TiddlerRef{Title: "one", Bag: "fake"})
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if head.Text != "v2" || head.Revision != 2 || head.Created != "20230101000000" {
			t.Errorf("head = %+v", head)
		}
	})

	t.Run("未指定のタイムスタンプは保存時刻で補われる", func(t *testing.T) {
		store := newStore(t)

		tiddler := &model.Tiddler{Title: "stamp", Bag: "fake"}
		if err := store.Put(ctx, tiddler); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if len(tiddler.Created) != len(model.TimestampLayout) || len(tiddler.Modified) != len(model.TimestampLayout) {
			t.Errorf("timestamps = %q, %q", tiddler.Created, tiddler.Modified)
		}
	})

	t.Run("バッグ未指定のPutはエラー", func(t *testing.T) {
		store := newStore(t)
		err := store.Put(ctx, &model.Tiddler{Title: "orphan"})
		if !errors.Is(err, ErrBagRequired) {
			t.Errorf("err = %v, want ErrBagRequired", err)
		}
	})

	t.Run("リビジョン指定の取得と一覧", func(t *testing.T) {
		store := newStore(t)
		for _, text := range []string{"a", "b", "c"} {
			if err := store.Put(ctx, &model.Tiddler{Title: "rev", Bag: "fake", Text: text, Tags: []string{"x"}}); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}

		got, err := store.Get(ctx, model.TiddlerRef{Title: "rev", Bag: "fake", Revision: 2})
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Text != "b" || !slices.Equal(got.Tags, []string{"x"}) {
			t.Errorf("revision 2 = %+v", got)
		}

		ids, err := store.ListRevisions(ctx, model.TiddlerRef{Title: "rev", Bag: "fake"})
		if err != nil {
			t.Fatalf("ListRevisions: %v", err)
		}
		if !slices.Equal(ids, []int{3, 2, 1}) {
			t.Errorf("ListRevisions = %v, want [3 2 1]", ids)
		}
	})

	t.Run("存在しないティドラーはErrTiddlerNotFound", func(t *testing.T) {
		store := newStore(t)
		if err := store.Put(ctx, &model.Tiddler{Title: "one", Bag: "fake"}); err != nil {
			t.Fatalf("Put: %v", err)
		}

		refs := []model.TiddlerRef{
			{Title: "missing", Bag: "fake"},
			{Title: "one", Bag: "other"},
			{Title: "one", Bag: "fake", Revision: 9},
		}
		for _, ref := range refs {
			if _, err := store.Get(ctx, ref); !errors.Is(err, model.ErrTiddlerNotFound) {
				t.Errorf("Get(%+v) err = %v, want ErrTiddlerNotFound", ref, err)
			}
		}
		if _, err := store.ListRevisions(ctx, model.TiddlerRef{Title: "missing", Bag: "fake"}); !errors.Is(err, model.ErrTiddlerNotFound) {
			t.Errorf("ListRevisions err = %v, want ErrTiddlerNotFound", err)
		}
	})

	t.Run("バッグ一覧は最新リビジョンをタイトル順に返す", func(t *testing.T) {
		store := newStore(t)
		puts := []model.Tiddler{
			{Title: "zeta", Bag: "fake", Text: "z"},
			{Title: "alpha", Bag: "fake", Text: "a1"},
			{Title: "alpha", Bag: "fake", Text: "a2"},
			{Title: "elsewhere", Bag: "other"},
		}
		for i := range puts {
			if err := store.Put(ctx, &puts[i]); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}

		got, err := store.ListBagTiddlers(ctx, "fake")
		if err != nil {
			t.Fatalf("ListBagTiddlers: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].Title != "alpha" || got[0].Text != "a2" || got[0].Revision != 2 {
			t.Errorf("got[0] = %+v", got[0])
		}
		if got[1].Title != "zeta" || got[1].Bag != "fake" {
			t.Errorf("got[1] = %+v", got[1])
		}

		empty, err := store.ListBagTiddlers(ctx, "nothing")
		if err != nil {
			t.Fatalf("ListBagTiddlers(empty): %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("len = %d, want 0", len(empty))
		}
	})

	t.Run("レシピは後ろのバッグを優先して解決する", func(t *testing.T) {
		store := newStore(t)
		puts := []model.Tiddler{
			{Title: "shared", Bag: "system", Text: "from system"},
			{Title: "shared", Bag: "common", Text: "from common"},
			{Title: "only-system", Bag: "system", Text: "sys"},
			{Title: "hidden", Bag: "unlisted"},
		}
		for i := range puts {
			if err := store.Put(ctx, &puts[i]); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
		if err := store.PutRecipe(ctx, "default", []string{"system", "common"}); err != nil {
			t.Fatalf("PutRecipe: %v", err)
		}

		got, err := store.ListRecipeTiddlers(ctx, "default")
		if err != nil {
			t.Fatalf("ListRecipeTiddlers: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].Title != "only-system" || got[1].Title != "shared" || got[1].Text != "from common" {
			t.Errorf("got = %+v, %+v", got[0], got[1])
		}
		for _, tiddler := range got {
			if tiddler.Recipe != "default" || tiddler.Bag != "" {
				t.Errorf("%s container = bag %q recipe %q", tiddler.Title, tiddler.Bag, tiddler.Recipe)
			}
		}

		one, err := store.Get(ctx, model.TiddlerRef{Title: "shared", Recipe: "default"})
		if err != nil {
			t.Fatalf("Get via recipe: %v", err)
		}
		if one.Text != "from common" || one.Recipe != "default" || one.Bag != "" {
			t.Errorf("Get via recipe = %+v", one)
		}

		if err := store.PutRecipe(ctx, "default", []string{"common", "system"}); err != nil {
			t.Fatalf("PutRecipe(update): %v", err)
		}
		one, err = store.Get(ctx, model.TiddlerRef{Title: "shared", Recipe: "default"})
		if err != nil {
			t.Fatalf("Get via updated recipe: %v", err)
		}
		if one.Text != "from system" {
			t.Errorf("after reorder Text = %q, want %q", one.Text, "from system")
		}

		if _, err := store.Get(ctx, model.TiddlerRef{Title: "hidden", Recipe: "default"}); !errors.Is(err, model.ErrTiddlerNotFound) {
			t.Errorf("hidden err = %v, want ErrTiddlerNotFound", err)
		}
	})

	t.Run("存在しないレシピはErrRecipeNotFound", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.ListRecipeTiddlers(ctx, "nope"); !errors.Is(err, model.ErrRecipeNotFound) {
			t.Errorf("ListRecipeTiddlers err = %v, want ErrRecipeNotFound", err)
		}
		if _, err := store.Get(ctx, model.TiddlerRef{Title: "x", Recipe: "nope"}); !errors.Is(err, model.ErrRecipeNotFound) {
			t.Errorf("Get err = %v, want ErrRecipeNotFound", err)
		}
	})

	t.Run("取得結果の変更はストアに影響しない", func(t *testing.T) {
		store := newStore(t)
		if err := store.Put(ctx, &model.Tiddler{Title: "tags", Bag: "fake", Tags: []string{"a"}}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, _ := store.Get(ctx, model.TiddlerRef{Title: "tags", Bag: "fake"})
		got.Tags[0] = "mutated"
		got.Text = "mutated"

		again, err := store.Get(ctx, model.TiddlerRef{Title: "tags", Bag: "fake"})
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if again.Tags[0] != "a" || again.Text != "" {
			t.Errorf("store was mutated: %+v", again)
		}
	})
}
