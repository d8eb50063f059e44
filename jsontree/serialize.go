package jsontree

import (
	"fmt"
	"sort"
	"unicode/utf16"
)

// NumberFormatter rewrites a number literal on output.
type NumberFormatter func(lit string) string

// Serialize produces the canonical byte form of a value tree: no
// insignificant whitespace, object members sorted by UTF-16 code units,
// RFC 8785 string escaping, and number literals as written.
//
// The output is deterministic: a given tree always yields identical bytes.
func Serialize(v *Value) ([]byte, error) {
	return SerializeWith(v, nil)
}

// Canonical parses data and returns its canonical serialization.
func Canonical(data []byte) ([]byte, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Serialize(v)
}

// SerializeWith is like Serialize but passes every number literal through
// numfmt when it is non-nil.
func SerializeWith(v *Value, numfmt NumberFormatter) ([]byte, error) {
	s := serializer{numfmt: numfmt}
	return s.value(nil, v)
}

type serializer struct {
	numfmt NumberFormatter
}

func (s serializer) value(buf []byte, v *Value) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return append(buf, "null"...), nil
	case KindBool:
		return append(buf, v.Str...), nil // "true" or "false"
	case KindNumber:
		if v.Num == "" {
			return nil, fmt.Errorf("jsontree: empty number literal")
		}
		if s.numfmt != nil {
			return append(buf, s.numfmt(v.Num)...), nil
		}
		return append(buf, v.Num...), nil
	case KindString:
		return appendString(buf, v.Str), nil
	case KindArray:
		return s.array(buf, v)
	case KindObject:
		return s.object(buf, v)
	default:
		return nil, fmt.Errorf("jsontree: unknown value kind %d", v.Kind)
	}
}

// appendString applies RFC 8785 §3.2.2.2 escaping: quote, backslash and the
// short control escapes; other controls as lowercase \u00xx; everything else
// raw UTF-8.
func appendString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '"':
			buf = append(buf, '\\', '"')
		case b == '\\':
			buf = append(buf, '\\', '\\')
		case b == '\b':
			buf = append(buf, '\\', 'b')
		case b == '\t':
			buf = append(buf, '\\', 't')
		case b == '\n':
			buf = append(buf, '\\', 'n')
		case b == '\f':
			buf = append(buf, '\\', 'f')
		case b == '\r':
			buf = append(buf, '\\', 'r')
		case b < 0x20:
			buf = append(buf, '\\', 'u', '0', '0', hexDigit(b>>4), hexDigit(b&0x0F))
		default:
			buf = append(buf, b)
		}
	}
	return append(buf, '"')
}

func hexDigit(b byte) byte {
	if b < 10 {
		return '0' + b
	}
	return 'a' + (b - 10)
}

func (s serializer) array(buf []byte, v *Value) ([]byte, error) {
	buf = append(buf, '[')
	for i := range v.Elems {
		if i > 0 {
			buf = append(buf, ',')
		}
		var err error
		buf, err = s.value(buf, &v.Elems[i])
		if err != nil {
			return nil, err
		}
	}
	return append(buf, ']'), nil
}

func (s serializer) object(buf []byte, v *Value) ([]byte, error) {
	sorted := make([]Member, len(v.Members))
	copy(sorted, v.Members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareUTF16(sorted[i].Key, sorted[j].Key) < 0
	})

	buf = append(buf, '{')
	for i := range sorted {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendString(buf, sorted[i].Key)
		buf = append(buf, ':')
		var err error
		buf, err = s.value(buf, &sorted[i].Value)
		if err != nil {
			return nil, err
		}
	}
	return append(buf, '}'), nil
}

// compareUTF16 compares two strings by their UTF-16 code-unit arrays. It
// differs from byte order only for supplementary-plane characters.
func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	n := min(len(ua), len(ub))
	for i := 0; i < n; i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	}
	return 0
}
