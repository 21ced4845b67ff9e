package filter

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/hitoshi/tiddlyfeed/internal/model"
)

func queryFixture() []*model.Tiddler {
	return []*model.Tiddler{
		{Title: "alpha", Bag: "common", Modifier: "cdent", Modified: "20230103000000", Tags: []string{"news"}},
		{Title: "beta", Bag: "common", Modifier: "fnd", Modified: "20230101000000", Tags: []string{"draft"}},
		{Title: "gamma", Bag: "system", Modifier: "cdent", Modified: "20230102000000", Tags: []string{"news", "go"}},
		{Title: "delta", Bag: "common", Modifier: "cdent", Modified: "20230104000000"},
	}
}

func TestQueryEngine(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []string
	}{
		{name: "タグで選択", expr: "select=tag:news", want: []string{"alpha", "gamma"}},
		{name: "タグの除外", expr: "select=tag:!draft", want: []string{"alpha", "gamma", "delta"}},
		{name: "作者で選択", expr: "select=modifier:fnd", want: []string{"beta"}},
		{name: "更新日時の降順", expr: "sort=-modified", want: []string{"delta", "alpha", "gamma", "beta"}},
		{name: "タイトル昇順", expr: "sort=title", want: []string{"alpha", "beta", "delta", "gamma"}},
		{name: "件数制限", expr: "sort=-modified&limit=2", want: []string{"delta", "alpha"}},
		{name: "オフセット付き", expr: "sort=title;limit=1,2", want: []string{"beta", "delta"}},
		{name: "順に適用", expr: "select=bag:common&sort=-modified&limit=2", want: []string{"delta", "alpha"}},
		{name: "limit=0", expr: "limit=0", want: nil},
	}

	engine := QueryEngine{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := engine.Parse(tt.expr, nil)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.expr, err)
			}
			got := titles(engine.Apply(chain, All(queryFixture())))
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryEngine_ParseErrors(t *testing.T) {
	tests := []string{
		"",
		"select",
		"select=",
		"select=colour:red",
		"sort=tag",
		"sort=bogus",
		"limit=abc",
		"limit=-1",
		"unknown=1",
	}

	for _, expr := range tests {
		if _, err := (QueryEngine{}).Parse(expr, nil); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidFilter", expr, err)
		}
	}
}

func TestQueryEngine_WithApply(t *testing.T) {
	got := titles(Apply(context.Background(), QueryEngine{}, "select=tag:go", nil, All(queryFixture()), nil))
	if !slices.Equal(got, []string{"gamma"}) {
		t.Errorf("got %v, want [gamma]", got)
	}

	// 不正な式はフィルタなしで全件を返す
	got = titles(Apply(context.Background(), QueryEngine{}, "select=colour:red", nil, All(queryFixture()), nil))
	if len(got) != 4 {
		t.Errorf("invalid expression should pass through, got %v", got)
	}
}
