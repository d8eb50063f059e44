package jsontree

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/lattice-substrate/json-conform/conferr"
)

// Outcome is the result of comparing two value trees. On mismatch, Path
// names the first differing node ("$", "$.a", "$.b[2]", `$["a b"]`).
type Outcome struct {
	Equal  bool
	Path   string
	Reason string
}

// String formats the outcome for diagnostics.
func (o Outcome) String() string {
	if o.Equal {
		return "equal"
	}
	return fmt.Sprintf("differ at %s: %s", o.Path, o.Reason)
}

// Comparator performs deep structural equality under a numeric model.
type Comparator struct {
	Numbers NumberModel
}

// NewComparator returns a comparator using the tool's numeric model.
func NewComparator() *Comparator {
	return &Comparator{Numbers: ToolNumberModel}
}

// Compare compares want (the reference) against got (the tool output).
func (c *Comparator) Compare(want, got *Value) Outcome {
	return c.compare("$", want, got)
}

// CompareBytes parses both documents and compares them. A parse failure of
// the reference is a FIXTURE_UNREADABLE error, a parse failure of the output
// is an OUTPUT_INVALID error.
func (c *Comparator) CompareBytes(want, got []byte) (Outcome, error) {
	wv, err := Parse(want)
	if err != nil {
		return Outcome{}, conferr.Wrap(conferr.FixtureUnreadable, "", "parse reference", err)
	}
	gv, err := Parse(got)
	if err != nil {
		return Outcome{}, conferr.Wrap(conferr.OutputInvalid, "", "parse tool output", err)
	}
	return c.Compare(wv, gv), nil
}

// CompareFiles reads and compares the reference file against the output
// file, attaching the offending path to any error.
func (c *Comparator) CompareFiles(referencePath, outputPath string) (Outcome, error) {
	want, err := os.ReadFile(referencePath)
	if err != nil {
		return Outcome{}, conferr.Wrap(conferr.FixtureUnreadable, referencePath, "read reference", err)
	}
	got, err := os.ReadFile(outputPath)
	if err != nil {
		return Outcome{}, conferr.Wrap(conferr.OutputMissing, outputPath, "read tool output", err)
	}
	out, err := c.CompareBytes(want, got)
	if err != nil {
		var ce *conferr.Error
		if errors.As(err, &ce) {
			if ce.Class == conferr.FixtureUnreadable {
				ce.Path = referencePath
			} else {
				ce.Path = outputPath
			}
		}
		return Outcome{}, err
	}
	return out, nil
}

func (c *Comparator) compare(path string, want, got *Value) Outcome {
	if want.Kind != got.Kind {
		return mismatch(path, "kind %s != %s", want.Kind, got.Kind)
	}

	switch want.Kind {
	case KindNull:
		return Outcome{Equal: true}
	case KindBool, KindString:
		if want.Str != got.Str {
			return mismatch(path, "%s %s != %s", want.Kind, strconv.Quote(want.Str), strconv.Quote(got.Str))
		}
		return Outcome{Equal: true}
	case KindNumber:
		if !c.Numbers.Equal(want.Num, got.Num) {
			return mismatch(path, "number %s != %s", want.Num, got.Num)
		}
		return Outcome{Equal: true}
	case KindArray:
		return c.compareArray(path, want, got)
	case KindObject:
		return c.compareObject(path, want, got)
	default:
		return mismatch(path, "unknown kind %d", want.Kind)
	}
}

func (c *Comparator) compareArray(path string, want, got *Value) Outcome {
	n := min(len(want.Elems), len(got.Elems))
	for i := 0; i < n; i++ {
		if out := c.compare(fmt.Sprintf("%s[%d]", path, i), &want.Elems[i], &got.Elems[i]); !out.Equal {
			return out
		}
	}
	switch {
	case len(want.Elems) > n:
		return mismatch(fmt.Sprintf("%s[%d]", path, n), "element missing from output (array length %d != %d)", len(want.Elems), len(got.Elems))
	case len(got.Elems) > n:
		return mismatch(fmt.Sprintf("%s[%d]", path, n), "unexpected element in output (array length %d != %d)", len(want.Elems), len(got.Elems))
	}
	return Outcome{Equal: true}
}

func (c *Comparator) compareObject(path string, want, got *Value) Outcome {
	wm := memberIndex(want)
	gm := memberIndex(got)

	keys := make([]string, 0, len(wm)+len(gm))
	for k := range wm {
		keys = append(keys, k)
	}
	for k := range gm {
		if _, ok := wm[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		kp := memberPath(path, k)
		wv, inWant := wm[k]
		gv, inGot := gm[k]
		switch {
		case !inGot:
			return mismatch(kp, "member missing from output")
		case !inWant:
			return mismatch(kp, "unexpected member in output")
		}
		if out := c.compare(kp, wv, gv); !out.Equal {
			return out
		}
	}
	return Outcome{Equal: true}
}

func memberIndex(v *Value) map[string]*Value {
	m := make(map[string]*Value, len(v.Members))
	for i := range v.Members {
		m[v.Members[i].Key] = &v.Members[i].Value
	}
	return m
}

func memberPath(parent, key string) string {
	if isIdentifier(key) {
		return parent + "." + key
	}
	return parent + "[" + strconv.Quote(key) + "]"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func mismatch(path, format string, args ...any) Outcome {
	return Outcome{Path: path, Reason: fmt.Sprintf(format, args...)}
}
