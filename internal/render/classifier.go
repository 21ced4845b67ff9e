package render

import (
	"strings"

	"github.com/hitoshi/tiddlyfeed/internal/model"
)

// textualApplicationTypes はapplication/*のうちテキストとして扱う型。
var textualApplicationTypes = []string{
	"application/json",
	"application/javascript",
}

// DefaultClassifier は型のプレフィックスと接尾辞による標準の判定。
//   - 疑似バイナリ: text/*、*+xml、application/json、application/javascript
//   - バイナリ: 型が宣言されていて疑似バイナリでないもの
type DefaultClassifier struct{}

// IsBinary はティドラーがバイナリかを返す。
func (DefaultClassifier) IsBinary(t *model.Tiddler) bool {
	return t.HasType() && !DefaultClassifier{}.IsPseudoBinary(t.MediaType())
}

// IsPseudoBinary はメディアタイプが疑似バイナリかを返す。
func (DefaultClassifier) IsPseudoBinary(mediaType string) bool {
	mt := strings.ToLower(mediaType)
	if strings.HasPrefix(mt, "text/") || strings.HasSuffix(mt, "+xml") {
		return true
	}
	for _, textual := range textualApplicationTypes {
		if mt == textual {
			return true
		}
	}
	return false
}
