package serializer

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/hitoshi/tiddlyfeed/internal/model"
	"github.com/hitoshi/tiddlyfeed/internal/weburl"
)

// stubSerializer は名前を返すだけのSerializer。
type stubSerializer struct {
	name string
}

func (s stubSerializer) ListTiddlers(context.Context, *model.Tiddlers, *weburl.Request) ([]byte, error) {
	return []byte(s.name), nil
}

func (s stubSerializer) Tiddler(context.Context, *model.Tiddler, *weburl.Request) ([]byte, error) {
	return []byte(s.name), nil
}

func (s stubSerializer) ContentType() string { return s.name }

func newTestRegistry() *Registry {
	r := NewRegistry("text/html")
	r.Register("application/atom+xml", "atom", stubSerializer{name: "atom"})
	r.Register("text/html", "html", stubSerializer{name: "html"})
	return r
}

func TestRegistry_Negotiate(t *testing.T) {
	tests := []struct {
		name     string
		accept   string
		wantType string
		wantErr  bool
	}{
		{name: "Acceptなしは既定", accept: "", wantType: "text/html"},
		{name: "ワイルドカードは既定", accept: "*/*", wantType: "text/html"},
		{name: "Atomを明示", accept: "application/atom+xml", wantType: "application/atom+xml"},
		{name: "q値の高いものを優先", accept: "text/html;q=0.5, application/atom+xml", wantType: "application/atom+xml"},
		{name: "未登録の型は次の候補へ", accept: "application/json, application/atom+xml;q=0.8", wantType: "application/atom+xml"},
		{name: "サブタイプのワイルドカード", accept: "application/*", wantType: "application/atom+xml"},
		{name: "q=0は除外", accept: "application/atom+xml;q=0", wantErr: true},
		{name: "受け入れ可能な型がない", accept: "image/png", wantErr: true},
	}

	r := newTestRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mt, err := r.Negotiate(tt.accept)
			if tt.wantErr {
				if !errors.Is(err, model.ErrNoSerializer) {
					t.Errorf("err = %v, want ErrNoSerializer", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Negotiate returned error: %v", err)
			}
			if mt != tt.wantType {
				t.Errorf("media type = %q, want %q", mt, tt.wantType)
			}
			if s == nil {
				t.Error("serializer should not be nil")
			}
		})
	}
}

func TestRegistry_Extensions(t *testing.T) {
	r := newTestRegistry()

	mt, ok := r.TypeForExtension(".atom")
	if !ok || mt != "application/atom+xml" {
		t.Errorf("TypeForExtension(.atom) = %q, %v", mt, ok)
	}
	if _, ok := r.TypeForExtension("rss"); ok {
		t.Error("unregistered extension should not resolve")
	}
	if got := r.Extensions(); !slices.Equal(got, []string{"atom", "html"}) {
		t.Errorf("Extensions() = %v", got)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := newTestRegistry()

	s, err := r.Lookup("application/atom+xml")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if s.ContentType() != "atom" {
		t.Errorf("ContentType() = %q, want atom", s.ContentType())
	}

	if _, err := r.Lookup("application/rss+xml"); !errors.Is(err, model.ErrNoSerializer) {
		t.Errorf("err = %v, want ErrNoSerializer", err)
	}
}
