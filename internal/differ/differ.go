// Package differ は2つのリビジョンの本文の差分をunified diff形式で生成する。
package differ

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/hitoshi/tiddlyfeed/internal/model"
)

// DefaultContext は差分の前後に含める行数。
const DefaultContext = 3

// Unified はunified diffを生成するDiffer。
type Unified struct {
	context int
}

// NewUnified はUnifiedを生成する。contextLinesが負の場合はDefaultContextを使う。
func NewUnified(contextLines int) *Unified {
	if contextLines < 0 {
		contextLines = DefaultContext
	}
	return &Unified{context: contextLines}
}

// Compare はolderからnewerへの差分を返す。本文が同一の場合は空文字列を返す。
func (u *Unified) Compare(older, newer *model.Tiddler) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(ensureNewline(older.Text)),
		B:        difflib.SplitLines(ensureNewline(newer.Text)),
		FromFile: label(older),
		ToFile:   label(newer),
		Context:  u.context,
	}
	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to diff %q: %w", newer.Title, err)
	}
	return out, nil
}

func label(t *model.Tiddler) string {
	return fmt.Sprintf("%s revision %d", t.Title, t.Revision)
}

// ensureNewline は最終行が改行で終わるようにする。
// 末尾の改行の有無だけが異なる行を差分として扱わないため。
func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
