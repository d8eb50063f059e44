package suite

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/lattice-substrate/json-conform/conferr"
	"github.com/lattice-substrate/json-conform/invoke"
	"github.com/lattice-substrate/json-conform/jsontree"
)

// ToolResolver yields the path of the tool under test.
type ToolResolver interface {
	Path(ctx context.Context) (string, error)
}

// StaticTool is a ToolResolver for an already known path.
type StaticTool string

// Path returns the path unchanged.
func (s StaticTool) Path(context.Context) (string, error) {
	return string(s), nil
}

// Driver runs a planned case list against the tool.
type Driver struct {
	Resolver   ToolResolver
	Runner     *invoke.Runner
	Comparator *jsontree.Comparator
	Workers    int
	ProbeModes bool
	// TempDir is the parent of the run directory; empty means os.TempDir.
	TempDir string
	// NewRunID defaults to a random UUID.
	NewRunID func() string
	Logger   *slog.Logger
}

// NewDriver wires a Driver from cfg.
func NewDriver(cfg Config, resolver ToolResolver, logger *slog.Logger) *Driver {
	runner := invoke.NewRunner(logger)
	runner.Style = cfg.Style()
	if cfg.Timeout > 0 {
		runner.Timeout = cfg.Timeout
	}
	if len(cfg.HandledExit) != 0 {
		runner.HandledExit = append([]int(nil), cfg.HandledExit...)
	}
	return &Driver{
		Resolver:   resolver,
		Runner:     runner,
		Comparator: &jsontree.Comparator{Numbers: cfg.NumberModel()},
		Workers:    cfg.WorkerCount(),
		ProbeModes: cfg.ProbeModes,
		Logger:     logger,
	}
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

func (d *Driver) runID() string {
	if d.NewRunID != nil {
		return d.NewRunID()
	}
	return uuid.New().String()
}

// Run executes cases and returns results in plan order. A failing case
// never stops the others. The returned error is reserved for failures of
// the run itself (run directory, mode probing); case failures only appear
// in the report.
func (d *Driver) Run(ctx context.Context, cases []Case) (*Report, error) {
	log := d.logger()
	report := &Report{RunID: d.runID(), Results: make([]CaseResult, len(cases))}

	tool, err := d.Resolver.Path(ctx)
	if err != nil {
		log.Error("tool not available; failing all cases", "error", err)
		for i, c := range cases {
			report.Results[i] = newResult(c)
			report.Results[i].fail(err)
		}
		report.Tally()
		return report, nil
	}
	report.Tool = tool

	parent := d.TempDir
	if parent == "" {
		parent = os.TempDir()
	}
	runDir := filepath.Join(parent, "json-conform-"+report.RunID)
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return nil, conferr.Wrap(conferr.InternalIO, runDir, "create run directory", err)
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			log.Warn("remove run directory", "path", runDir, "error", err)
		}
	}()

	var compat invoke.Compatibility
	if d.ProbeModes {
		compat, err = d.Runner.ProbeModes(ctx, tool, plannedModes(cases), runDir)
		if err != nil {
			return nil, err
		}
	}

	log.Info("starting run", "run_id", report.RunID, "tool", tool, "cases", len(cases), "workers", d.workers(len(cases)))
	d.dispatch(ctx, cases, func(i int) {
		report.Results[i] = d.runCase(ctx, tool, runDir, compat, cases[i])
	}, func(i int) {
		report.Results[i] = newResult(cases[i])
		report.Results[i].fail(conferr.New(conferr.Canceled, cases[i].Fixture.Path, "run canceled before case started"))
	})
	report.Tally()
	log.Info("run finished", "passed", report.Counts.Passed, "failed", report.Counts.Failed, "skipped", report.Counts.Skipped)
	return report, nil
}

func (d *Driver) workers(n int) int {
	w := d.Workers
	if w <= 0 {
		w = 1
	}
	if w > MaxWorkers {
		w = MaxWorkers
	}
	if n > 0 && w > n {
		w = n
	}
	return w
}

// dispatch feeds case indices to a bounded pool. Each worker checks the
// context before starting a case so cancellation stops new work without
// interrupting recording.
func (d *Driver) dispatch(ctx context.Context, cases []Case, run, cancel func(i int)) {
	jobs := make(chan int, len(cases))
	for i := range cases {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < d.workers(len(cases)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					cancel(i)
					continue
				}
				run(i)
			}
		}()
	}
	wg.Wait()
}

func plannedModes(cases []Case) []invoke.Mode {
	seen := map[invoke.Mode]bool{}
	var out []invoke.Mode
	for _, m := range invoke.SuccessModes {
		for _, c := range cases {
			if c.Mode == m && !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func newResult(c Case) CaseResult {
	return CaseResult{
		ID:      c.ID,
		Corpus:  string(c.Fixture.Corpus),
		Fixture: c.Fixture.Rel,
		Mode:    string(c.Mode),
	}
}

func (d *Driver) runCase(ctx context.Context, tool, runDir string, compat invoke.Compatibility, c Case) (res CaseResult) {
	start := time.Now()
	res = newResult(c)
	defer func() {
		res.Duration = time.Since(start)
		res.DurationMS = res.Duration.Milliseconds()
		d.logger().Debug("case finished", "id", c.ID, "status", string(res.Status), "class", string(res.Class))
	}()

	data, err := os.ReadFile(c.Fixture.Path)
	if err != nil {
		res.fail(conferr.Wrap(conferr.FixtureUnreadable, c.Fixture.Path, "read fixture", err))
		return res
	}
	sum := blake3.Sum256(data)
	res.FixtureBLAKE3 = hex.EncodeToString(sum[:])

	if c.Mode != invoke.Crash {
		if ok, reason := compat.Supports(c.Mode); !ok {
			res.skip(conferr.ModeUnsupported, reason)
			return res
		}
	}

	caseDir := filepath.Join(runDir, c.ArtifactDir())
	if err := os.Mkdir(caseDir, 0o700); err != nil {
		res.fail(conferr.Wrap(conferr.InternalIO, caseDir, "create case directory", err))
		return res
	}
	defer func() {
		if err := os.RemoveAll(caseDir); err != nil {
			d.logger().Warn("remove case directory", "path", caseDir, "error", err)
		}
	}()

	switch {
	case c.Determinism:
		err = d.checkDeterminism(ctx, tool, caseDir, c)
	case c.Mode == invoke.Crash:
		_, err = d.Runner.Invoke(ctx, invoke.Request{Tool: tool, Fixture: c.Fixture.Path, Mode: c.Mode, CaseDir: caseDir})
	default:
		var outcome jsontree.Outcome
		outcome, err = d.roundTrip(ctx, tool, caseDir, c)
		if err == nil && !outcome.Equal {
			res.DiffPath = outcome.Path
			err = conferr.New(conferr.ComparisonMismatch, c.Fixture.Path, outcome.String())
		}
	}
	if err != nil {
		res.fail(err)
		return res
	}
	res.Status = StatusPass
	return res
}

func (d *Driver) roundTrip(ctx context.Context, tool, caseDir string, c Case) (jsontree.Outcome, error) {
	inv, err := d.Runner.Invoke(ctx, invoke.Request{Tool: tool, Fixture: c.Fixture.Path, Mode: c.Mode, CaseDir: caseDir})
	if err != nil {
		return jsontree.Outcome{}, err
	}
	return d.Comparator.CompareFiles(c.Fixture.Path, inv.Output)
}

func (d *Driver) checkDeterminism(ctx context.Context, tool, caseDir string, c Case) error {
	var outputs [2][]byte
	for i := range outputs {
		dir := filepath.Join(caseDir, fmt.Sprintf("run-%d", i+1))
		if err := os.Mkdir(dir, 0o700); err != nil {
			return conferr.Wrap(conferr.InternalIO, dir, "create run directory", err)
		}
		inv, err := d.Runner.Invoke(ctx, invoke.Request{Tool: tool, Fixture: c.Fixture.Path, Mode: c.Mode, CaseDir: dir})
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(inv.Output)
		if err != nil {
			return conferr.Wrap(conferr.OutputMissing, inv.Output, "read tool output", err)
		}
		canon, err := jsontree.Canonical(raw)
		if err != nil {
			var pe *jsontree.ParseError
			if errors.As(err, &pe) {
				return conferr.Wrap(conferr.OutputInvalid, inv.Output, "parse tool output", err)
			}
			return conferr.Wrap(conferr.InternalIO, inv.Output, "canonicalize tool output", err)
		}
		outputs[i] = canon
	}
	if string(outputs[0]) != string(outputs[1]) {
		return conferr.Newf(conferr.NotDeterministic, c.Fixture.Path,
			"two runs produced different output (%d and %d canonical bytes)", len(outputs[0]), len(outputs[1]))
	}
	return nil
}
