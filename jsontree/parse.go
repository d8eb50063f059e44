// Package jsontree parses JSON text into a comparison-ready value tree and
// compares trees structurally.
//
// The parser follows RFC 8259 strictly: it rejects trailing commas, leading
// zeros, unescaped control characters, invalid UTF-8, lone surrogates and
// duplicate object member names. Number literals are kept verbatim so that
// the comparator can apply the tool's numeric model instead of a lossy
// float64 conversion at parse time.
package jsontree

import (
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// Limits for denial-of-service protection.
const (
	// DefaultMaxDepth is the maximum nesting depth for objects and arrays.
	DefaultMaxDepth = 1000

	// DefaultMaxInputSize is the maximum input size in bytes (64 MiB).
	DefaultMaxInputSize = 64 * 1024 * 1024
)

// Value represents a parsed JSON value.
type Value struct {
	Kind    Kind
	Str     string   // For KindString: the decoded string; for KindBool: "true" or "false"
	Num     string   // For KindNumber: the literal as written
	Members []Member // For KindObject: members in document order
	Elems   []Value  // For KindArray: ordered elements
}

// Kind identifies the type of a JSON value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{"null", "bool", "number", "string", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Member is a key-value pair in a JSON object.
type Member struct {
	Key   string
	Value Value
}

// ParseError is returned when the input is not valid JSON.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsontree: at byte %d: %s", e.Offset, e.Msg)
}

// Options controls parser behavior.
type Options struct {
	MaxDepth     int // 0 means DefaultMaxDepth
	MaxInputSize int // 0 means DefaultMaxInputSize
}

func (o *Options) maxDepth() int {
	if o != nil && o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

func (o *Options) maxInputSize() int {
	if o != nil && o.MaxInputSize > 0 {
		return o.MaxInputSize
	}
	return DefaultMaxInputSize
}

type parser struct {
	data     []byte
	pos      int
	depth    int
	maxDepth int
}

// Parse parses a complete JSON text. It returns the value tree or a
// *ParseError.
func Parse(data []byte) (*Value, error) {
	return ParseWithOptions(data, nil)
}

// ParseWithOptions is like Parse but accepts configuration options.
func ParseWithOptions(data []byte, opts *Options) (*Value, error) {
	maxInput := opts.maxInputSize()
	if len(data) > maxInput {
		return nil, &ParseError{
			Offset: 0,
			Msg:    fmt.Sprintf("input size %d exceeds maximum %d", len(data), maxInput),
		}
	}

	p := &parser{data: data, maxDepth: opts.maxDepth()}

	// A leading UTF-8 byte order mark is tolerated; generated fixtures
	// sometimes carry one.
	if len(p.data) >= 3 && p.data[0] == 0xEF && p.data[1] == 0xBB && p.data[2] == 0xBF {
		p.pos = 3
	}

	p.skipWhitespace()
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.pos != len(p.data) {
		return nil, p.errorf("trailing content after JSON value")
	}
	return v, nil
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.data) {
		return 0, false
	}
	return p.data[p.pos], true
}

func (p *parser) next() (byte, bool) {
	if p.pos >= len(p.data) {
		return 0, false
	}
	b := p.data[p.pos]
	p.pos++
	return b, true
}

func (p *parser) expect(b byte) error {
	c, ok := p.next()
	if !ok {
		return p.errorf("unexpected end of input, expected %q", string(b))
	}
	if c != b {
		return p.errorf("expected %q, got %q", string(b), string(c))
	}
	return nil
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) pushDepth() error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.errorf("nesting depth %d exceeds maximum %d", p.depth, p.maxDepth)
	}
	return nil
}

func (p *parser) popDepth() {
	p.depth--
}

func (p *parser) parseValue() (*Value, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.errorf("unexpected end of input")
	}

	switch c {
	case '{':
		return p.parseObject()
	case '[':
		return p.parseArray()
	case '"':
		return p.parseString()
	case 't', 'f':
		return p.parseBool()
	case 'n':
		return p.parseNull()
	default:
		return p.parseNumber()
	}
}

func (p *parser) parseObject() (*Value, error) {
	if err := p.pushDepth(); err != nil {
		return nil, err
	}
	defer p.popDepth()

	if err := p.expect('{'); err != nil {
		return nil, err
	}
	p.skipWhitespace()

	v := &Value{Kind: KindObject}
	seen := make(map[string]int) // key -> byte offset of first occurrence

	c, ok := p.peek()
	if !ok {
		return nil, p.errorf("unexpected end of input in object")
	}
	if c == '}' {
		p.pos++
		return v, nil
	}

	for {
		p.skipWhitespace()

		keyStart := p.pos
		if c, ok := p.peek(); !ok || c != '"' {
			return nil, p.errorf("expected string key in object")
		}
		keyVal, err := p.parseString()
		if err != nil {
			return nil, err
		}
		key := keyVal.Str

		if firstOff, exists := seen[key]; exists {
			return nil, &ParseError{
				Offset: keyStart,
				Msg:    fmt.Sprintf("duplicate object key %q (first at byte %d)", key, firstOff),
			}
		}
		seen[key] = keyStart

		p.skipWhitespace()
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		p.skipWhitespace()

		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}

		v.Members = append(v.Members, Member{Key: key, Value: *val})

		p.skipWhitespace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errorf("unexpected end of input in object")
		}
		if c == '}' {
			p.pos++
			return v, nil
		}
		if c == ',' {
			p.pos++
			continue
		}
		return nil, p.errorf("expected ',' or '}' in object, got %q", string(c))
	}
}

func (p *parser) parseArray() (*Value, error) {
	if err := p.pushDepth(); err != nil {
		return nil, err
	}
	defer p.popDepth()

	if err := p.expect('['); err != nil {
		return nil, err
	}
	p.skipWhitespace()

	v := &Value{Kind: KindArray}

	c, ok := p.peek()
	if !ok {
		return nil, p.errorf("unexpected end of input in array")
	}
	if c == ']' {
		p.pos++
		return v, nil
	}

	for {
		p.skipWhitespace()
		elem, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		v.Elems = append(v.Elems, *elem)

		p.skipWhitespace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errorf("unexpected end of input in array")
		}
		if c == ']' {
			p.pos++
			return v, nil
		}
		if c == ',' {
			p.pos++
			continue
		}
		return nil, p.errorf("expected ',' or ']' in array, got %q", string(c))
	}
}

// parseString parses a JSON string and decodes all escapes. Surrogate pairs
// are decoded to supplementary-plane scalars; lone surrogates are rejected.
func (p *parser) parseString() (*Value, error) {
	if err := p.expect('"'); err != nil {
		return nil, err
	}

	var buf []byte
	for {
		if p.pos >= len(p.data) {
			return nil, p.errorf("unterminated string")
		}
		b := p.data[p.pos]

		if b == '"' {
			p.pos++
			return &Value{Kind: KindString, Str: string(buf)}, nil
		}

		if b == '\\' {
			p.pos++
			r, err := p.parseEscape()
			if err != nil {
				return nil, err
			}
			buf = utf8.AppendRune(buf, r)
			continue
		}

		if b < 0x20 {
			return nil, p.errorf("unescaped control character 0x%02X in string", b)
		}

		r, size := utf8.DecodeRune(p.data[p.pos:])
		if r == utf8.RuneError && size <= 1 {
			return nil, p.errorf("invalid UTF-8 byte 0x%02X in string", b)
		}
		buf = append(buf, p.data[p.pos:p.pos+size]...)
		p.pos += size
	}
}

// parseEscape handles the character after '\'.
func (p *parser) parseEscape() (rune, error) {
	if p.pos >= len(p.data) {
		return 0, p.errorf("unterminated escape sequence")
	}
	b := p.data[p.pos]
	p.pos++

	switch b {
	case '"':
		return '"', nil
	case '\\':
		return '\\', nil
	case '/':
		return '/', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'u':
		return p.parseUnicodeEscape()
	default:
		return 0, p.errorf("invalid escape character %q", string(b))
	}
}

// parseUnicodeEscape parses \uXXXX (and \uXXXX\uXXXX for surrogate pairs).
func (p *parser) parseUnicodeEscape() (rune, error) {
	r1, err := p.readHex4()
	if err != nil {
		return 0, err
	}

	if utf16.IsSurrogate(r1) {
		if r1 >= 0xDC00 {
			return 0, p.errorf("lone low surrogate U+%04X", r1)
		}
		if p.pos+1 >= len(p.data) || p.data[p.pos] != '\\' || p.data[p.pos+1] != 'u' {
			return 0, p.errorf("lone high surrogate U+%04X (no following \\u)", r1)
		}
		p.pos += 2
		r2, err := p.readHex4()
		if err != nil {
			return 0, err
		}
		if r2 < 0xDC00 || r2 > 0xDFFF {
			return 0, p.errorf("high surrogate U+%04X followed by non-low-surrogate U+%04X", r1, r2)
		}
		decoded := utf16.DecodeRune(r1, r2)
		if decoded == unicode.ReplacementChar {
			return 0, p.errorf("invalid surrogate pair U+%04X U+%04X", r1, r2)
		}
		return decoded, nil
	}

	return r1, nil
}

// readHex4 reads exactly 4 hex digits and returns the rune value.
func (p *parser) readHex4() (rune, error) {
	if p.pos+4 > len(p.data) {
		return 0, p.errorf("incomplete \\u escape")
	}
	hex := string(p.data[p.pos : p.pos+4])
	val, err := strconv.ParseUint(hex, 16, 16)
	if err != nil {
		return 0, p.errorf("invalid hex in \\u escape: %q", hex)
	}
	p.pos += 4
	return rune(val), nil
}

func (p *parser) parseNumber() (*Value, error) {
	start := p.pos

	if p.pos < len(p.data) && p.data[p.pos] == '-' {
		p.pos++
	}

	if p.pos >= len(p.data) {
		return nil, p.errorf("unexpected end of input in number")
	}

	if p.data[p.pos] == '0' {
		p.pos++
		if p.pos < len(p.data) && isDigit(p.data[p.pos]) {
			return nil, p.errorf("leading zero in number")
		}
	} else if p.data[p.pos] >= '1' && p.data[p.pos] <= '9' {
		p.skipDigits()
	} else {
		return nil, p.errorf("invalid number character %q", string(p.data[p.pos]))
	}

	if p.pos < len(p.data) && p.data[p.pos] == '.' {
		p.pos++
		if p.pos >= len(p.data) || !isDigit(p.data[p.pos]) {
			return nil, p.errorf("expected digit after decimal point")
		}
		p.skipDigits()
	}

	if p.pos < len(p.data) && (p.data[p.pos] == 'e' || p.data[p.pos] == 'E') {
		p.pos++
		if p.pos < len(p.data) && (p.data[p.pos] == '+' || p.data[p.pos] == '-') {
			p.pos++
		}
		if p.pos >= len(p.data) || !isDigit(p.data[p.pos]) {
			return nil, p.errorf("expected digit in exponent")
		}
		p.skipDigits()
	}

	return &Value{Kind: KindNumber, Num: string(p.data[start:p.pos])}, nil
}

func (p *parser) skipDigits() {
	for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
		p.pos++
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (p *parser) parseBool() (*Value, error) {
	if p.pos+4 <= len(p.data) && string(p.data[p.pos:p.pos+4]) == "true" {
		p.pos += 4
		return &Value{Kind: KindBool, Str: "true"}, nil
	}
	if p.pos+5 <= len(p.data) && string(p.data[p.pos:p.pos+5]) == "false" {
		p.pos += 5
		return &Value{Kind: KindBool, Str: "false"}, nil
	}
	return nil, p.errorf("invalid literal")
}

func (p *parser) parseNull() (*Value, error) {
	if p.pos+4 <= len(p.data) && string(p.data[p.pos:p.pos+4]) == "null" {
		p.pos += 4
		return &Value{Kind: KindNull}, nil
	}
	return nil, p.errorf("invalid literal")
}
