package jsontree_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/lattice-substrate/json-conform/jsontree"
)

func mustParse(t *testing.T, in string) *jsontree.Value {
	t.Helper()
	v, err := jsontree.Parse([]byte(in))
	if err != nil {
		t.Fatalf("parse %q: %v", in, err)
	}
	return v
}

func mustParseErr(t *testing.T, in []byte) *jsontree.ParseError {
	t.Helper()
	_, err := jsontree.Parse(in)
	if err == nil {
		t.Fatalf("expected error for %q", in)
	}
	var pe *jsontree.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *jsontree.ParseError, got %T: %v", err, err)
	}
	return pe
}

func TestParseScalars(t *testing.T) {
	cases := []struct {
		in   string
		kind jsontree.Kind
	}{
		{`null`, jsontree.KindNull},
		{`true`, jsontree.KindBool},
		{`false`, jsontree.KindBool},
		{`-12.5e+3`, jsontree.KindNumber},
		{`"x"`, jsontree.KindString},
		{` [ ] `, jsontree.KindArray},
		{"\t{}\n", jsontree.KindObject},
	}
	for _, tc := range cases {
		if got := mustParse(t, tc.in).Kind; got != tc.kind {
			t.Fatalf("%q: kind %s, want %s", tc.in, got, tc.kind)
		}
	}
}

func TestParseKeepsNumberLiteral(t *testing.T) {
	v := mustParse(t, `[1.0, 12345678901234567890, -0, 1E400]`)
	want := []string{"1.0", "12345678901234567890", "-0", "1E400"}
	for i, w := range want {
		if v.Elems[i].Num != w {
			t.Fatalf("elem %d literal %q, want %q", i, v.Elems[i].Num, w)
		}
	}
}

func TestParseObjectMembersInDocumentOrder(t *testing.T) {
	v := mustParse(t, `{"b":[1,2,3],"a":1}`)
	if len(v.Members) != 2 || v.Members[0].Key != "b" || v.Members[1].Key != "a" {
		t.Fatalf("unexpected members: %+v", v.Members)
	}
	if len(v.Members[0].Value.Elems) != 3 {
		t.Fatalf("unexpected array: %+v", v.Members[0].Value)
	}
}

func TestParseDecodesEscapes(t *testing.T) {
	v := mustParse(t, `"a\/b\né😀"`)
	if v.Str != "a/b\né\U0001F600" {
		t.Fatalf("got %q", v.Str)
	}
}

func TestParseToleratesBOM(t *testing.T) {
	v, err := jsontree.Parse([]byte("\xEF\xBB\xBF{\"a\":1}"))
	if err != nil {
		t.Fatalf("parse with BOM: %v", err)
	}
	if v.Kind != jsontree.KindObject {
		t.Fatalf("kind %s", v.Kind)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		msg  string
	}{
		{"truncated object", []byte(`{"a":`), "unexpected end of input"},
		{"leading zero", []byte(`01`), "leading zero"},
		{"trailing comma object", []byte(`{"a":1,}`), "expected string key"},
		{"trailing comma array", []byte(`[1,]`), "invalid number character"},
		{"control character", []byte{'"', 0x01, '"'}, "control character"},
		{"invalid utf8", []byte{'"', 0xff, '"'}, "invalid UTF-8"},
		{"duplicate key", []byte(`{"a":1,"a":2}`), "duplicate object key"},
		{"duplicate key after unescape", []byte(`{"a":1,"\u0061":2}`), "duplicate object key"},
		{"lone high surrogate", []byte(`"\uD800"`), "lone high surrogate"},
		{"lone low surrogate", []byte(`"\uDC00"`), "lone low surrogate"},
		{"invalid literal", []byte(`tru`), "invalid literal"},
		{"trailing content", []byte(`{} {}`), "trailing content"},
		{"bad escape", []byte(`"\x"`), "invalid escape"},
		{"empty", []byte(``), "unexpected end of input"},
		{"missing exponent digits", []byte(`1e`), "expected digit in exponent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pe := mustParseErr(t, tc.in)
			if !strings.Contains(pe.Msg, tc.msg) {
				t.Fatalf("message %q does not contain %q", pe.Msg, tc.msg)
			}
		})
	}
}

func TestParseDepthLimit(t *testing.T) {
	in := strings.Repeat("[", 5) + strings.Repeat("]", 5)
	if _, err := jsontree.ParseWithOptions([]byte(in), &jsontree.Options{MaxDepth: 4}); err == nil {
		t.Fatal("expected depth error")
	}
	if _, err := jsontree.ParseWithOptions([]byte(in), &jsontree.Options{MaxDepth: 5}); err != nil {
		t.Fatalf("depth 5 rejected: %v", err)
	}
}

func TestParseInputSizeLimit(t *testing.T) {
	_, err := jsontree.ParseWithOptions([]byte(`"abcdef"`), &jsontree.Options{MaxInputSize: 4})
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Fatalf("expected size error, got %v", err)
	}
}
