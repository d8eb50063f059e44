package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lattice-substrate/json-conform/conferr"
	"github.com/lattice-substrate/json-conform/executil"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 30 * time.Second

// Artifact file names inside a case directory.
const (
	OutputName      = "output.json"
	WorkingCopyName = "input"
)

// DefaultHandledExitCodes are the crash-corpus exit codes that count as
// graceful handling.
var DefaultHandledExitCodes = []int{0}

// Request is one invocation of the tool.
type Request struct {
	Tool    string
	Fixture string // absolute path of the golden file
	Mode    Mode
	CaseDir string // private, existing directory owned by the case
}

// Result is what a single invocation produced.
type Result struct {
	executil.Result
	Argv   []string
	Input  string // path handed to the tool (the fixture or its working copy)
	Output string // artifact path; empty for Crash
}

// Runner invokes the tool and classifies the outcome.
type Runner struct {
	Exec        executil.CommandRunner
	Style       FlagStyle
	Timeout     time.Duration
	HandledExit []int
	Logger      *slog.Logger
}

// NewRunner returns a Runner with host execution and default settings.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{
		Exec:        executil.OSRunner{},
		Style:       LongFlags,
		Timeout:     DefaultTimeout,
		HandledExit: DefaultHandledExitCodes,
		Logger:      logger,
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r *Runner) handled(code int) bool {
	codes := r.HandledExit
	if len(codes) == 0 {
		codes = DefaultHandledExitCodes
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// Invoke runs the tool once. The returned Result is populated whenever the
// tool was started; the error is a *conferr.Error naming the failure class,
// or nil when the run ended the way the mode requires.
//
// For in-place modes the fixture is first copied into the case directory
// and the copy is handed to the tool, so the golden file is never exposed
// to a tool that might rewrite it.
func (r *Runner) Invoke(ctx context.Context, req Request) (Result, error) {
	if !req.Mode.valid() {
		return Result{}, conferr.Newf(conferr.ConfigInvalid, "", "unknown mode %q", req.Mode)
	}
	if req.CaseDir == "" {
		return Result{}, conferr.New(conferr.InternalIO, "", "case directory is required")
	}

	res := Result{Input: req.Fixture}
	if req.Mode.InPlace() {
		copyPath := filepath.Join(req.CaseDir, WorkingCopyName+filepath.Ext(req.Fixture))
		if err := copyFile(req.Fixture, copyPath); err != nil {
			return res, err
		}
		res.Input = copyPath
	}
	if req.Mode.WritesOutput() {
		res.Output = filepath.Join(req.CaseDir, OutputName)
	}

	args, err := Args(req.Mode, r.style(), res.Input, res.Output)
	if err != nil {
		return res, conferr.Wrap(conferr.ConfigInvalid, "", "build arguments", err)
	}
	res.Argv = append([]string{req.Tool}, args...)

	runner := r.Exec
	if runner == nil {
		runner = executil.OSRunner{}
	}
	r.logger().Debug("invoking tool", "argv", strings.Join(res.Argv, " "), "mode", string(req.Mode))
	er, err := runner.Run(ctx, res.Argv, executil.Options{Dir: req.CaseDir, Timeout: r.timeout()})
	res.Result = er
	if err != nil {
		return res, conferr.Wrap(conferr.ToolInvocationFailed, req.Tool, "start tool", err)
	}
	return res, r.classify(ctx, req, res)
}

func (r *Runner) style() FlagStyle {
	if r.Style == "" {
		return LongFlags
	}
	return r.Style
}

func (r *Runner) classify(ctx context.Context, req Request, res Result) error {
	switch {
	case res.TimedOut:
		return conferr.Newf(conferr.ToolTimedOut, req.Fixture, "tool did not finish within %s", r.timeout())
	case errors.Is(ctx.Err(), context.Canceled):
		return conferr.New(conferr.Canceled, req.Fixture, "run canceled during invocation")
	case res.Signaled:
		return conferr.Newf(conferr.ToolCrashed, req.Fixture, "tool terminated abnormally (%s)%s", res.State, stderrTail(res.Stderr))
	}

	if req.Mode == Crash {
		if r.handled(res.ExitCode) {
			return nil
		}
		return conferr.Newf(conferr.ToolInvocationFailed, req.Fixture,
			"exit code %d is not a handled exit code %v%s", res.ExitCode, r.handledCodes(), stderrTail(res.Stderr))
	}

	if res.ExitCode != 0 {
		return conferr.Newf(conferr.ToolInvocationFailed, req.Fixture,
			"tool exited with code %d%s", res.ExitCode, stderrTail(res.Stderr))
	}
	info, err := os.Stat(res.Output)
	if err != nil {
		if os.IsNotExist(err) {
			return conferr.New(conferr.OutputMissing, res.Output, "tool exited 0 without writing its output")
		}
		return conferr.Wrap(conferr.InternalIO, res.Output, "stat output", err)
	}
	if !info.Mode().IsRegular() {
		return conferr.New(conferr.OutputMissing, res.Output, "output is not a regular file")
	}
	return nil
}

func (r *Runner) handledCodes() []int {
	if len(r.HandledExit) == 0 {
		return DefaultHandledExitCodes
	}
	return r.HandledExit
}

func stderrTail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return ""
	}
	const max = 200
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return fmt.Sprintf(": stderr: %s", s)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return conferr.Wrap(conferr.FixtureUnreadable, src, "read fixture", err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return conferr.Wrap(conferr.InternalIO, dst, "write working copy", err)
	}
	return nil
}
