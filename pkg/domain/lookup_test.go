package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseLookup(t *testing.T) {
	cases := []struct {
		token string
		ok    bool
		byID  bool
		id    int64
		key   VariantKey
	}{
		{token: "42", ok: true, byID: true, id: 42},
		{token: "b37-1-883516-G-A", ok: true, key: VariantKey{Chrom: "1", Pos: "883516", Ref: "G", Var: "A"}},
		{token: "b37-X-100-AT-A", ok: true, key: VariantKey{Chrom: "X", Pos: "100", Ref: "AT", Var: "A"}},
		{token: "b37-1"},
		{token: "b38-1-883516-G-A"},
		{token: "b37-1-883516-G-A-extra"},
		{token: "b37--883516-G-A"},
		{token: ""},
		{token: "-12"},
		{token: "99999999999999999999999"},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			got, ok := ParseLookup(tc.token)
			if ok != tc.ok {
				t.Fatalf("ParseLookup(%q) ok=%v, want %v", tc.token, ok, tc.ok)
			}
			if !ok {
				return
			}
			if got.ByID != tc.byID || got.ID != tc.id || got.Key != tc.key {
				t.Fatalf("ParseLookup(%q) = %+v", tc.token, got)
			}
		})
	}
}

func TestParseLookupListSkipsMalformed(t *testing.T) {
	got := ParseLookupList([]string{"7", "b37-1-883516-G-A", "b37-1"})
	if len(got) != 2 {
		t.Fatalf("expected 2 lookups, got %d", len(got))
	}
}

func TestCompositeKeyRoundTrip(t *testing.T) {
	v := Variant{Base: Base{ID: 3}, Tags: Tags{
		TagChromB37:     "1",
		TagPosB37:       "883516",
		TagRefAlleleB37: "G",
		TagVarAlleleB37: "A",
	}}
	if v.B37ID() != "b37-1-883516-G-A" {
		t.Fatalf("unexpected b37 id %q", v.B37ID())
	}
	l, ok := ParseLookup(v.B37ID())
	if !ok || !l.Matches(v) {
		t.Fatalf("expected derived id to look the variant up")
	}
	if !MatchesAny([]Lookup{{ByID: true, ID: 9}, l}, v) {
		t.Fatalf("expected OR filter to match")
	}
	if (Variant{Tags: Tags{TagChromB37: "1"}}).B37ID() != "" {
		t.Fatalf("expected empty b37 id for incomplete tags")
	}
}

func TestTagsMergeAndSetAll(t *testing.T) {
	tags := Tags{"type": "variant-class", "note": "old"}
	tags.Merge(Tags{"note": "x"})
	if !tags.Equal(Tags{"type": "variant-class", "note": "x"}) {
		t.Fatalf("merge lost keys: %v", tags)
	}
	tags.SetAll(Tags{"only": "this"})
	if !tags.Equal(Tags{"only": "this"}) {
		t.Fatalf("set all did not replace: %v", tags)
	}
	var empty Tags
	empty.Merge(Tags{"a": "b"})
	if empty["a"] != "b" {
		t.Fatalf("merge into nil bag failed")
	}
	if got := (Tags{"b": "1", "a": "2"}).Keys(); got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected key order %v", got)
	}
}

func TestDecodeTags(t *testing.T) {
	tags, err := DecodeTags(json.RawMessage(`{"type":"causes","note":""}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := tags.Get("note"); !ok || v != "" {
		t.Fatalf("empty string is a present value, got %q %v", v, ok)
	}
	for _, raw := range []string{`null`, ``, `[]`, `{"type":null}`, `{"n":1}`, `{"n":{"a":"b"}}`} {
		if _, err := DecodeTags(json.RawMessage(raw)); !errors.Is(err, ErrInvalidTags) {
			t.Fatalf("DecodeTags(%s): expected invalid tags, got %v", raw, err)
		}
	}
}

func TestActorScopes(t *testing.T) {
	a := Actor{ID: 1, Username: "ann", Scopes: []string{"commit-edit"}}
	if !a.HasScope(ScopeCommitEdit) || a.HasScope(ScopeEmail) {
		t.Fatalf("unexpected scope evaluation")
	}
	if a.Anonymous() || !(Actor{}).Anonymous() {
		t.Fatalf("unexpected anonymous evaluation")
	}
	if a.Author() != (Author{ID: 1, Username: "ann"}) {
		t.Fatalf("unexpected author %+v", a.Author())
	}
}
