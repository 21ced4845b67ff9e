// Package xmlgen はストリーミング形式のXML出力を提供する。
//
// encoding/xmlのEncoderをラップし、要素の開始・文字データ・終了を順に書き出す。
// 文字データと属性値は常にEncoderによってエスケープされる。
// HTMLを含む文字列も構造としてではなく不透明なテキストとして扱う。
package xmlgen

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Attr は出力順序を保持する属性。
type Attr struct {
	Name  string
	Value string
}

// Generator はXML文書を順に書き出すジェネレータ。
// 1つの文書の生成にのみ使用し、ゴルーチン間で共有しない。
type Generator struct {
	enc      *xml.Encoder
	encoding string
}

// New はwに書き出すGeneratorを生成する。
// encodingはXML宣言に記載するエンコーディング名。
func New(w io.Writer, encoding string) *Generator {
	if encoding == "" {
		encoding = "utf-8"
	}
	return &Generator{
		enc:      xml.NewEncoder(w),
		encoding: encoding,
	}
}

// StartDocument はXML宣言を書き出す。文書の最初に1回だけ呼び出す。
func (g *Generator) StartDocument() error {
	decl := fmt.Sprintf(`version="1.0" encoding="%s"`, g.encoding)
	if err := g.enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(decl)}); err != nil {
		return fmt.Errorf("failed to write xml declaration: %w", err)
	}
	return g.enc.EncodeToken(xml.CharData("\n"))
}

// StartElement は開始タグを書き出す。属性は渡された順序で出力される。
func (g *Generator) StartElement(name string, attrs ...Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	for _, a := range attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := g.enc.EncodeToken(start); err != nil {
		return fmt.Errorf("failed to start element %s: %w", name, err)
	}
	return nil
}

// Characters はエスケープした文字データを書き出す。
func (g *Generator) Characters(text string) error {
	if text == "" {
		return nil
	}
	if err := g.enc.EncodeToken(xml.CharData(text)); err != nil {
		return fmt.Errorf("failed to write characters: %w", err)
	}
	return nil
}

// EndElement は終了タグを書き出す。
func (g *Generator) EndElement(name string) error {
	if err := g.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}}); err != nil {
		return fmt.Errorf("failed to end element %s: %w", name, err)
	}
	return nil
}

// AddQuickElement は開始タグ・文字データ・終了タグを1回の呼び出しで書き出す。
// contentsが空の場合は文字データを書き出さない。
func (g *Generator) AddQuickElement(name, contents string, attrs ...Attr) error {
	if err := g.StartElement(name, attrs...); err != nil {
		return err
	}
	if err := g.Characters(contents); err != nil {
		return err
	}
	return g.EndElement(name)
}

// EndDocument はバッファされた出力をフラッシュし、未閉じの要素がないことを確認する。
func (g *Generator) EndDocument() error {
	if err := g.enc.Close(); err != nil {
		return fmt.Errorf("failed to finish document: %w", err)
	}
	return nil
}
