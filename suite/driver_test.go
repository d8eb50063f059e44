package suite_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-substrate/json-conform/conferr"
	"github.com/lattice-substrate/json-conform/executil"
	"github.com/lattice-substrate/json-conform/fixture"
	"github.com/lattice-substrate/json-conform/invoke"
	"github.com/lattice-substrate/json-conform/jsontree"
	"github.com/lattice-substrate/json-conform/suite"
)

// toolFunc emulates the tool in-process: it receives the parsed file and
// output arguments and returns what the process would have.
type toolFunc func(in, out string, argv []string) (executil.Result, error)

func (f toolFunc) Run(_ context.Context, argv []string, _ executil.Options) (executil.Result, error) {
	var in, out string
	for i := 1; i+1 < len(argv); i++ {
		switch argv[i] {
		case "--file", "-f":
			in = argv[i+1]
		case "--output", "-o":
			out = argv[i+1]
		}
	}
	return f(in, out, argv)
}

// echoTool writes its input to its output unchanged.
func echoTool(in, out string, _ []string) (executil.Result, error) {
	if out == "" {
		return executil.Result{}, nil
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return executil.Result{}, err
	}
	return executil.Result{}, os.WriteFile(out, data, 0o600)
}

func newCorpus(t *testing.T, files map[string]string) *fixture.Corpora {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	c, err := fixture.LoadAll(root, "")
	require.NoError(t, err)
	return c
}

func newDriver(t *testing.T, tool executil.CommandRunner) (*suite.Driver, string) {
	t.Helper()
	tmp := t.TempDir()
	return &suite.Driver{
		Resolver:   suite.StaticTool("/fake/simple-test"),
		Runner:     &invoke.Runner{Exec: tool},
		Comparator: jsontree.NewComparator(),
		Workers:    2,
		TempDir:    tmp,
		NewRunID:   func() string { return "run-1" },
	}, tmp
}

func byID(r *suite.Report) map[string]suite.CaseResult {
	out := make(map[string]suite.CaseResult, len(r.Results))
	for _, res := range r.Results {
		out[res.ID] = res
	}
	return out
}

func TestDriverRoundTripPasses(t *testing.T) {
	c := newCorpus(t, map[string]string{
		"data/ref-example-1.json":   `{"a":1,"b":[1,2,3]}`,
		"crash-data/truncated.json": `{"a":`,
	})
	d, tmp := newDriver(t, toolFunc(echoTool))
	cases := suite.Plan(c, invoke.SuccessModes, true)

	report, err := d.Run(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "/fake/simple-test", report.Tool)
	assert.Equal(t, suite.Counts{Total: 6, Passed: 6}, report.Counts)
	assert.True(t, report.OK())
	for i, res := range report.Results {
		assert.Equal(t, cases[i].ID, res.ID, "results keep plan order")
		assert.Len(t, res.FixtureBLAKE3, 64)
	}

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "run directory must be removed")
}

func TestDriverNormalizedOutputStillEqual(t *testing.T) {
	c := newCorpus(t, map[string]string{"data/n.json": `{"x": 1.0, "y": [ 1e2 ]}`})
	d, _ := newDriver(t, toolFunc(func(_, out string, _ []string) (executil.Result, error) {
		return executil.Result{}, os.WriteFile(out, []byte(`{"y":[100],"x":1}`), 0o600)
	}))
	report, err := d.Run(context.Background(), suite.Plan(c, []invoke.Mode{invoke.Default}, false))
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report.Results)
}

func TestDriverClassifiesFailures(t *testing.T) {
	c := newCorpus(t, map[string]string{
		"data/mismatch.json":    `{"a":1,"b":[1,2,3]}`,
		"data/garbage.json":     `[1]`,
		"data/silent.json":      `[2]`,
		"data/exit.json":        `[3]`,
		"crash-data/abort.json": `[`,
	})
	d, _ := newDriver(t, toolFunc(func(in, out string, argv []string) (executil.Result, error) {
		name := filepath.Base(in)
		switch {
		case strings.HasPrefix(name, "abort"):
			return executil.Result{ExitCode: -1, Signaled: true, State: "signal: aborted"}, nil
		case strings.HasPrefix(name, "mismatch"):
			return executil.Result{}, os.WriteFile(out, []byte(`{"a":1,"b":[1,2,4]}`), 0o600)
		case strings.HasPrefix(name, "garbage"):
			return executil.Result{}, os.WriteFile(out, []byte(`[1,`), 0o600)
		case strings.HasPrefix(name, "silent"):
			return executil.Result{}, nil
		case strings.HasPrefix(name, "exit"):
			return executil.Result{ExitCode: 2}, nil
		}
		return echoTool(in, out, argv)
	}))
	report, err := d.Run(context.Background(), suite.Plan(c, []invoke.Mode{invoke.Default}, false))
	require.NoError(t, err)

	got := byID(report)
	assert.Equal(t, conferr.ToolCrashed, got["crash/abort.json/crash"].Class)
	assert.Equal(t, conferr.ComparisonMismatch, got["success/mismatch.json/default"].Class)
	assert.Equal(t, "$.b[2]", got["success/mismatch.json/default"].DiffPath)
	assert.Equal(t, conferr.OutputInvalid, got["success/garbage.json/default"].Class)
	assert.Equal(t, conferr.OutputMissing, got["success/silent.json/default"].Class)
	assert.Equal(t, conferr.ToolInvocationFailed, got["success/exit.json/default"].Class)
	assert.Equal(t, 5, report.Counts.Failed)
	assert.False(t, report.OK())
}

func TestDriverInSituLeavesGoldenUntouched(t *testing.T) {
	c := newCorpus(t, map[string]string{"data/ref-example-1.json": `{"a":1,"b":[1,2,3]}`})
	d, _ := newDriver(t, toolFunc(func(in, out string, argv []string) (executil.Result, error) {
		if _, err := echoTool(in, out, argv); err != nil {
			return executil.Result{}, err
		}
		return executil.Result{}, os.WriteFile(in, []byte(`"clobbered"`), 0o600)
	}))
	report, err := d.Run(context.Background(), suite.Plan(c, []invoke.Mode{invoke.InSitu, invoke.DynamicInSitu}, false))
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report.Results)

	golden, err := os.ReadFile(c.Success.Fixtures[0].Path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":[1,2,3]}`, string(golden))
}

func TestDriverDeterminism(t *testing.T) {
	c := newCorpus(t, map[string]string{"data/a.json": `{"a":1}`})
	var calls atomic.Int32
	d, _ := newDriver(t, toolFunc(func(_, out string, _ []string) (executil.Result, error) {
		if calls.Add(1)%2 == 0 {
			return executil.Result{}, os.WriteFile(out, []byte(`{"a":2}`), 0o600)
		}
		return executil.Result{}, os.WriteFile(out, []byte(`{"a":1}`), 0o600)
	}))
	cases := suite.Plan(c, nil, true)
	require.Len(t, cases, 1)
	report, err := d.Run(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, conferr.NotDeterministic, report.Results[0].Class)
}

type missingTool struct{}

func (missingTool) Path(context.Context) (string, error) {
	return "", conferr.New(conferr.BinaryNotFound, "/build", "no probe-passing candidate")
}

func TestDriverBinaryNotFoundFailsEveryCase(t *testing.T) {
	c := newCorpus(t, map[string]string{"data/a.json": `{}`, "crash-data/b.json": `[`})
	var invoked atomic.Bool
	d, _ := newDriver(t, toolFunc(func(string, string, []string) (executil.Result, error) {
		invoked.Store(true)
		return executil.Result{}, nil
	}))
	d.Resolver = missingTool{}

	report, err := d.Run(context.Background(), suite.Plan(c, invoke.SuccessModes, false))
	require.NoError(t, err)
	assert.Equal(t, 5, report.Counts.Failed)
	for _, res := range report.Results {
		assert.Equal(t, conferr.BinaryNotFound, res.Class, res.ID)
	}
	assert.False(t, invoked.Load())
}

func TestDriverProbeSkipsUnsupportedModes(t *testing.T) {
	c := newCorpus(t, map[string]string{"data/a.json": `{}`})
	d, _ := newDriver(t, toolFunc(func(in, out string, argv []string) (executil.Result, error) {
		for _, a := range argv {
			if a == "-i" {
				return executil.Result{ExitCode: 64}, nil
			}
		}
		return echoTool(in, out, argv)
	}))
	d.ProbeModes = true

	report, err := d.Run(context.Background(), suite.Plan(c, invoke.SuccessModes, false))
	require.NoError(t, err)
	got := byID(report)
	assert.Equal(t, suite.StatusPass, got["success/a.json/default"].Status)
	assert.Equal(t, suite.StatusPass, got["success/a.json/dynamic"].Status)
	assert.Equal(t, suite.StatusSkip, got["success/a.json/insitu"].Status)
	assert.Equal(t, conferr.ModeUnsupported, got["success/a.json/dynamic-insitu"].Class)
	assert.True(t, report.OK())
}

func TestDriverCancellation(t *testing.T) {
	files := map[string]string{}
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		files["data/"+n+".json"] = `{}`
	}
	c := newCorpus(t, files)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	d, _ := newDriver(t, toolFunc(func(in, out string, argv []string) (executil.Result, error) {
		once.Do(cancel)
		return echoTool(in, out, argv)
	}))
	d.Workers = 1

	report, err := d.Run(ctx, suite.Plan(c, []invoke.Mode{invoke.Default}, false))
	require.NoError(t, err)
	require.Len(t, report.Results, 6)
	assert.Equal(t, 6, report.Counts.Failed)
	for _, res := range report.Results[1:] {
		assert.Equal(t, conferr.Canceled, res.Class, res.ID)
	}
}

func TestDriverUnreadableFixture(t *testing.T) {
	d, _ := newDriver(t, toolFunc(echoTool))
	cases := []suite.Case{{
		ID:      "success/gone.json/default",
		Fixture: fixture.Fixture{Corpus: fixture.Success, Rel: "gone.json", Path: filepath.Join(t.TempDir(), "gone.json")},
		Mode:    invoke.Default,
	}}
	report, err := d.Run(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, conferr.FixtureUnreadable, report.Results[0].Class)
}

func TestStaticTool(t *testing.T) {
	p, err := suite.StaticTool("/x").Path(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/x", p)
}
