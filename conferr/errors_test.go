package conferr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lattice-substrate/json-conform/conferr"
)

func TestErrorFormat(t *testing.T) {
	e := conferr.New(conferr.ComparisonMismatch, "$.b[2]", "number 3 != 4")
	if e.Error() != "conferr: COMPARISON_MISMATCH at $.b[2]: number 3 != 4" {
		t.Fatalf("unexpected error string: %s", e.Error())
	}
}

func TestErrorFormatNoPath(t *testing.T) {
	e := conferr.New(conferr.BinaryNotFound, "", "no candidate passed the probe")
	if e.Error() != "conferr: BINARY_NOT_FOUND: no candidate passed the probe" {
		t.Fatalf("unexpected error string: %s", e.Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	e := conferr.Wrap(conferr.InternalIO, "/tmp/x", "write failed", cause)
	if !errors.Is(e, cause) {
		t.Fatal("Unwrap did not return cause")
	}
	if got := e.Error(); got != "conferr: INTERNAL_IO at /tmp/x: write failed: underlying" {
		t.Fatalf("unexpected wrapped error string: %s", got)
	}
}

func TestClassOf(t *testing.T) {
	inner := conferr.Newf(conferr.ToolTimedOut, "", "exceeded %s", "30s")
	wrapped := fmt.Errorf("case x: %w", inner)
	if got := conferr.ClassOf(wrapped); got != conferr.ToolTimedOut {
		t.Fatalf("class = %s, want TOOL_TIMED_OUT", got)
	}
	if got := conferr.ClassOf(errors.New("plain")); got != conferr.InternalIO {
		t.Fatalf("class = %s, want INTERNAL_IO fallback", got)
	}
}

func TestIsCaseFailure(t *testing.T) {
	if conferr.ModeUnsupported.IsCaseFailure() {
		t.Fatal("MODE_UNSUPPORTED must not count as a failure")
	}
	for _, c := range []conferr.FailureClass{
		conferr.BinaryNotFound, conferr.ToolCrashed, conferr.ComparisonMismatch, conferr.Canceled,
	} {
		if !c.IsCaseFailure() {
			t.Fatalf("%s must count as a failure", c)
		}
	}
}
