package jsontree

import (
	"math"
	"strconv"
	"strings"
)

// DefaultSignificantDigits matches qajson4c, which prints doubles with
// "%1.10g".
const DefaultSignificantDigits = 10

// NumberModel pins how two number literals are judged equal.
//
// An integer literal that fits int64 or uint64 is an exact integer; any
// other literal is an IEEE 754 double. Two exact integers compare exactly.
// Otherwise both sides are converted to double and, if SignificantDigits is
// positive, compared after rounding to that many significant digits. A zero
// SignificantDigits compares the doubles exactly.
type NumberModel struct {
	SignificantDigits int
}

// ToolNumberModel is the numeric model of the qajson4c tool.
var ToolNumberModel = NumberModel{SignificantDigits: DefaultSignificantDigits}

// ExactNumberModel compares doubles with no rounding.
var ExactNumberModel = NumberModel{}

type numberClass int

const (
	classInt numberClass = iota
	classUint
	classFloat
)

type number struct {
	class numberClass
	i     int64
	u     uint64
	f     float64
}

// decodeNumber classifies a literal that already passed the grammar check.
func decodeNumber(lit string) number {
	if !strings.ContainsAny(lit, ".eE") {
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return number{class: classInt, i: i, f: float64(i)}
		}
		if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
			return number{class: classUint, u: u, f: float64(u)}
		}
	}
	// Out-of-range literals yield ±Inf or 0 with ErrRange; the value is
	// still what a double-based reader would hold.
	f, _ := strconv.ParseFloat(lit, 64)
	return number{class: classFloat, f: f}
}

// IsInteger reports whether lit is an exact integer under the model.
func IsInteger(lit string) bool {
	return decodeNumber(lit).class != classFloat
}

// Equal reports whether two number literals denote the same value.
func (m NumberModel) Equal(a, b string) bool {
	if a == b {
		return true
	}
	na, nb := decodeNumber(a), decodeNumber(b)
	if na.class != classFloat && nb.class != classFloat {
		return na.class == nb.class && na.i == nb.i && na.u == nb.u
	}
	if na.f == nb.f {
		return true
	}
	if math.IsNaN(na.f) || math.IsNaN(nb.f) || math.IsInf(na.f, 0) || math.IsInf(nb.f, 0) {
		return false
	}
	if m.SignificantDigits <= 0 {
		return false
	}
	return m.round(na.f) == m.round(nb.f)
}

func (m NumberModel) round(f float64) string {
	return strconv.FormatFloat(f, 'g', m.SignificantDigits, 64)
}

// FormatDouble renders f the way the tool does ("%.Ng"). strconv strips
// trailing fraction zeros for 'g' exactly like C's printf.
func (m NumberModel) FormatDouble(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "null" // qajson4c prints non-finite doubles as null
	}
	if m.SignificantDigits <= 0 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return m.round(f)
}

// FormatLiteral renders a number literal the way the tool prints it: exact
// integers in plain decimal, everything else through FormatDouble.
func (m NumberModel) FormatLiteral(lit string) string {
	n := decodeNumber(lit)
	switch n.class {
	case classInt:
		return strconv.FormatInt(n.i, 10)
	case classUint:
		return strconv.FormatUint(n.u, 10)
	default:
		return m.FormatDouble(n.f)
	}
}
