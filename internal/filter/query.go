package filter

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// ErrInvalidFilter はフィルタ式を解釈できないことを示す。
var ErrInvalidFilter = errors.New("invalid filter")

// QueryEngine はクエリ文字列形式のフィルタ式を扱う組み込みエンジン。
//
//	select=tag:news&sort=-modified&limit=10
//
// ステップは "&" または ";" で区切り、書かれた順に適用する。
//   - select=<field>:<value>  フィールドが値に一致するものを残す。値の先頭が "!" なら除外する。
//   - sort=<field>            フィールドの昇順。先頭が "-" なら降順。
//   - limit=<n> / limit=<offset>,<n>
//
// fieldはtitle, tag, bag, recipe, modifier, type, created, modifiedのいずれか。
type QueryEngine struct{}

type step func(iter.Seq[*model.Tiddler]) iter.Seq[*model.Tiddler]

type queryChain []step

// Parse はフィルタ式を解析する。
func (QueryEngine) Parse(expr string, _ *weburl.Request) (Chain, error) {
	var chain queryChain
	for _, part := range strings.FieldsFunc(expr, func(r rune) bool { return r == '&' || r == ';' }) {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || value == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, part)
		}
		var (
			s   step
			err error
		)
		switch key {
		case "select":
			s, err = parseSelect(value)
		case "sort":
			s, err = parseSort(value)
		case "limit":
			s, err = parseLimit(value)
		default:
			err = fmt.Errorf("%w: unknown step %q", ErrInvalidFilter, key)
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, s)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidFilter)
	}
	return chain, nil
}

// Apply は解析済みのステップを順に適用する。
func (QueryEngine) Apply(chain Chain, tiddlers iter.Seq[*model.Tiddler]) iter.Seq[*model.Tiddler] {
	steps, ok := chain.(queryChain)
	if !ok {
		return tiddlers
	}
	for _, s := range steps {
		tiddlers = s(tiddlers)
	}
	return tiddlers
}

// fieldValues はティドラーのフィールド値を返す。tagは複数値になる。
func fieldValues(t *model.Tiddler, field string) []string {
	switch field {
	case "title":
		return []string{t.Title}
	case "tag":
		return t.Tags
	case "bag":
		return []string{t.Bag}
	case "recipe":
		return []string{t.Recipe}
	case "modifier":
		return []string{t.Modifier}
	case "type":
		return []string{t.Type}
	case "created":
		return []string{t.Created}
	case "modified":
		return []string{t.Modified}
	}
	return nil
}

func knownField(field string) bool {
	return fieldValues(&model.Tiddler{Tags: []string{""}}, field) != nil
}

func parseSelect(value string) (step, error) {
	field, want, ok := strings.Cut(value, ":")
	if !ok || !knownField(field) {
		return nil, fmt.Errorf("%w: select %q", ErrInvalidFilter, value)
	}
	negate := strings.HasPrefix(want, "!")
	want = strings.TrimPrefix(want, "!")

	return func(seq iter.Seq[*model.Tiddler]) iter.Seq[*model.Tiddler] {
		return func(yield func(*model.Tiddler) bool) {
			for t := range seq {
				if slices.Contains(fieldValues(t, field), want) == negate {
					continue
				}
				if !yield(t) {
					return
				}
			}
		}
	}, nil
}

func parseSort(value string) (step, error) {
	desc := strings.HasPrefix(value, "-")
	field := strings.TrimPrefix(value, "-")
	if field == "tag" || !knownField(field) {
		return nil, fmt.Errorf("%w: sort %q", ErrInvalidFilter, value)
	}

	return func(seq iter.Seq[*model.Tiddler]) iter.Seq[*model.Tiddler] {
		return func(yield func(*model.Tiddler) bool) {
			sorted := slices.Collect(seq)
			slices.SortStableFunc(sorted, func(a, b *model.Tiddler) int {
				c := strings.Compare(fieldValues(a, field)[0], fieldValues(b, field)[0])
				if desc {
					return -c
				}
				return c
			})
			for _, t := range sorted {
				if !yield(t) {
					return
				}
			}
		}
	}, nil
}

func parseLimit(value string) (step, error) {
	offset, count := 0, 0
	var err error
	if first, second, ok := strings.Cut(value, ","); ok {
		offset, err = strconv.Atoi(strings.TrimSpace(first))
		if err == nil {
			count, err = strconv.Atoi(strings.TrimSpace(second))
		}
	} else {
		count, err = strconv.Atoi(strings.TrimSpace(value))
	}
	if err != nil || offset < 0 || count < 0 {
		return nil, fmt.Errorf("%w: limit %q", ErrInvalidFilter, value)
	}

	return func(seq iter.Seq[*model.Tiddler]) iter.Seq[*model.Tiddler] {
		return func(yield func(*model.Tiddler) bool) {
			i := 0
			for t := range seq {
				if i >= offset+count {
					return
				}
				if i >= offset && !yield(t) {
					return
				}
				i++
			}
		}
	}, nil
}
