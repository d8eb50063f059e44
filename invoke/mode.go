// Package invoke runs the tool under test for one fixture and mode and
// classifies how the run ended.
package invoke

import (
	"fmt"
	"strings"

	"github.com/lattice-substrate/json-conform/conferr"
)

// Mode selects the argument template used for an invocation.
type Mode string

const (
	Default       Mode = "default"
	InSitu        Mode = "insitu"
	Dynamic       Mode = "dynamic"
	DynamicInSitu Mode = "dynamic-insitu"
	Crash         Mode = "crash"
)

// SuccessModes lists the modes applied to the success corpus, in plan order.
var SuccessModes = []Mode{Default, InSitu, Dynamic, DynamicInSitu}

// InPlace reports whether the tool may rewrite its input file in this mode.
func (m Mode) InPlace() bool {
	return m == InSitu || m == DynamicInSitu
}

// WritesOutput reports whether the mode produces an output artifact.
func (m Mode) WritesOutput() bool {
	return m != Crash
}

func (m Mode) valid() bool {
	switch m {
	case Default, InSitu, Dynamic, DynamicInSitu, Crash:
		return true
	}
	return false
}

// ParseMode parses a mode name. Underscores and case are tolerated so that
// "DYNAMIC_INSITU" and "dynamic-insitu" are the same mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if m == "dynamicinsitu" {
		m = DynamicInSitu
	}
	if !m.valid() {
		return "", conferr.Newf(conferr.ConfigInvalid, "", "unknown mode %q", s)
	}
	return m, nil
}

// ParseSuccessModes parses a list of success-corpus modes, dropping
// duplicates while keeping the first occurrence order. Crash is rejected
// because it applies only to the crash corpus.
func ParseSuccessModes(names []string) ([]Mode, error) {
	seen := make(map[Mode]bool, len(names))
	out := make([]Mode, 0, len(names))
	for _, name := range names {
		m, err := ParseMode(name)
		if err != nil {
			return nil, err
		}
		if m == Crash {
			return nil, conferr.New(conferr.ConfigInvalid, "", "crash mode cannot be enabled for the success corpus")
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out, nil
}

// FlagStyle selects long or short option spelling.
type FlagStyle string

const (
	LongFlags  FlagStyle = "long"
	ShortFlags FlagStyle = "short"
)

// ParseFlagStyle parses "long" or "short"; the empty string means long.
func ParseFlagStyle(s string) (FlagStyle, error) {
	switch FlagStyle(strings.ToLower(strings.TrimSpace(s))) {
	case "", LongFlags:
		return LongFlags, nil
	case ShortFlags:
		return ShortFlags, nil
	}
	return "", conferr.Newf(conferr.ConfigInvalid, "", "unknown flag style %q (want long or short)", s)
}

type flagSet struct {
	file, output, dynamic string
}

var flagSets = map[FlagStyle]flagSet{
	LongFlags:  {file: "--file", output: "--output", dynamic: "--dynamic"},
	ShortFlags: {file: "-f", output: "-o", dynamic: "-d"},
}

// inSituFlag has no long spelling in the tool's option table.
const inSituFlag = "-i"

// Args builds the argument vector, without the program name, for mode.
// output is ignored for Crash.
func Args(mode Mode, style FlagStyle, input, output string) ([]string, error) {
	fs, ok := flagSets[style]
	if !ok {
		return nil, fmt.Errorf("unknown flag style %q", style)
	}
	switch mode {
	case Default:
		return []string{fs.file, input, fs.output, output}, nil
	case InSitu:
		return []string{fs.file, input, fs.output, output, inSituFlag, "1"}, nil
	case Dynamic:
		return []string{fs.file, input, fs.output, output, fs.dynamic, "1"}, nil
	case DynamicInSitu:
		return []string{fs.file, input, fs.output, output, fs.dynamic, "1", inSituFlag, "1"}, nil
	case Crash:
		return []string{fs.file, input, fs.dynamic, "1"}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}
