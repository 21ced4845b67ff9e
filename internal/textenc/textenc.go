// Package textenc はフィード生成で使用する文字列・URI・日付の変換ユーティリティを提供する。
//
// 文字列はUnicode正規化（NFC）した上で扱い、名前付きエンコーディングとの
// 相互変換にはgolang.org/x/textを使用する。
package textenc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"
)

// DefaultEncoding はフィード出力で使用するエンコーディング名。
const DefaultEncoding = "utf-8"

// ToText は任意の値を正規化済みの文字列に変換する。
// stringsOnlyがtrueで、値がnil・整数・浮動小数点数・時刻のいずれかの場合は
// 変換せずにそのまま返す。呼び出し側は日時などの非文字列フィールドを
// 保持したまま文字列フィールドだけを正規化するためにこれを利用する。
// []byteはencodingで指定されたエンコーディングとしてデコードする。
func ToText(v any, enc string, stringsOnly bool) (any, error) {
	if stringsOnly && isProtectedType(v) {
		return v, nil
	}

	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return norm.NFC.String(val), nil
	case []byte:
		s, err := decode(val, enc)
		if err != nil {
			return nil, err
		}
		return norm.NFC.String(s), nil
	case time.Time:
		return RFC3339Date(val), nil
	case fmt.Stringer:
		return norm.NFC.String(val.String()), nil
	case error:
		return norm.NFC.String(val.Error()), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return norm.NFC.String(fmt.Sprint(val)), nil
	}
}

// Text は文字列をNFC正規化して返す。
// ToTextの文字列専用の短縮形。
func Text(s string) string {
	v, _ := ToText(s, DefaultEncoding, true)
	return v.(string)
}

// ToBytes は値を指定エンコーディングのバイト列に変換する。
// []byteは既にそのエンコーディングであるとみなし、二重にエンコードしない。
func ToBytes(v any, enc string) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return encode(val, enc)
	default:
		s, err := ToText(val, enc, false)
		if err != nil {
			return nil, err
		}
		return encode(s.(string), enc)
	}
}

// isProtectedType はstringsOnly指定時に変換対象外とする型かを判定する。
func isProtectedType(v any) bool {
	switch v.(type) {
	case nil,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time, *time.Time:
		return true
	}
	return false
}

// lookupEncoding は名前からエンコーディングを解決する。
func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}
	e, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return e, nil
}

func isUTF8(name string) bool {
	n := strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	return n == "" || n == "utf-8" || n == "utf8"
}

func decode(b []byte, enc string) (string, error) {
	if isUTF8(enc) {
		return string(b), nil
	}
	e, err := lookupEncoding(enc)
	if err != nil {
		return "", err
	}
	out, err := e.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("failed to decode from %s: %w", enc, err)
	}
	return string(out), nil
}

func encode(s string, enc string) ([]byte, error) {
	if isUTF8(enc) {
		return []byte(s), nil
	}
	e, err := lookupEncoding(enc)
	if err != nil {
		return nil, err
	}
	out, err := e.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode to %s: %w", enc, err)
	}
	return out, nil
}
