package suite

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lattice-substrate/json-conform/conferr"
)

// Status is the verdict of one case.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// CaseResult is the recorded outcome of one case.
type CaseResult struct {
	ID            string               `json:"id"`
	Corpus        string               `json:"corpus"`
	Fixture       string               `json:"fixture"`
	Mode          string               `json:"mode"`
	Status        Status               `json:"status"`
	Class         conferr.FailureClass `json:"class,omitempty"`
	Message       string               `json:"message,omitempty"`
	DiffPath      string               `json:"diff_path,omitempty"`
	FixtureBLAKE3 string               `json:"fixture_blake3,omitempty"`
	Duration      time.Duration        `json:"-"`
	DurationMS    int64                `json:"duration_ms"`
}

func (r *CaseResult) fail(err error) {
	r.Status = StatusFail
	r.Class = conferr.ClassOf(err)
	r.Message = describe(err)
}

func (r *CaseResult) skip(class conferr.FailureClass, msg string) {
	r.Status = StatusSkip
	r.Class = class
	r.Message = msg
}

func describe(err error) string {
	var ce *conferr.Error
	if !errors.As(err, &ce) {
		return err.Error()
	}
	msg := ce.Message
	if ce.Cause != nil {
		msg += ": " + ce.Cause.Error()
	}
	return msg
}

// Counts tallies case verdicts.
type Counts struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Report is the outcome of a run, results in plan order.
type Report struct {
	RunID   string       `json:"run_id"`
	Tool    string       `json:"tool"`
	Counts  Counts       `json:"counts"`
	Results []CaseResult `json:"results"`
}

// Tally recomputes Counts from Results.
func (r *Report) Tally() {
	c := Counts{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Status {
		case StatusPass:
			c.Passed++
		case StatusFail:
			c.Failed++
		case StatusSkip:
			c.Skipped++
		}
	}
	r.Counts = c
}

// OK reports whether no case failed.
func (r *Report) OK() bool {
	return r.Counts.Failed == 0
}

// Failures returns the failed results.
func (r *Report) Failures() []CaseResult {
	var out []CaseResult
	for _, res := range r.Results {
		if res.Status == StatusFail {
			out = append(out, res)
		}
	}
	return out
}

// WriteText writes a line per failed or skipped case (every case when
// verbose) followed by the summary line.
func (r *Report) WriteText(w io.Writer, verbose bool) error {
	for _, res := range r.Results {
		var err error
		switch {
		case res.Status == StatusFail:
			_, err = fmt.Fprintf(w, "FAIL %s [%s] %s\n", res.ID, res.Class, res.Message)
		case res.Status == StatusSkip:
			_, err = fmt.Fprintf(w, "SKIP %s [%s] %s\n", res.ID, res.Class, res.Message)
		case verbose:
			_, err = fmt.Fprintf(w, "PASS %s\n", res.ID)
		}
		if err != nil {
			return err
		}
	}
	verdict := "PASS"
	if !r.OK() {
		verdict = "FAIL"
	}
	_, err := fmt.Fprintf(w, "%s: %d passed, %d failed, %d skipped, %d total\n",
		verdict, r.Counts.Passed, r.Counts.Failed, r.Counts.Skipped, r.Counts.Total)
	return err
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
