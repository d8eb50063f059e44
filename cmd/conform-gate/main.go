// Command conform-gate runs the repository's verification gates in order and
// stops at the first failure.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
)

type gateStep struct {
	label string
	args  []string
	// slow steps are dropped by --quick.
	slow bool
}

type commandRunner interface {
	Run(ctx context.Context, name string, args []string, stdout io.Writer, stderr io.Writer) error
}

type hostRunner struct{}

// installedToolEnv names the build tree of a native tool; when it is unset
// the installed-tool gate skips itself.
const installedToolEnv = "JSON_CONFORM_TOOL_ROOT"

var gateSteps = []gateStep{
	{label: "go vet", args: []string{"vet", "./..."}},
	{label: "unit tests", args: []string{"test", "./...", "-count=1", "-timeout=10m"}},
	{label: "race tests", args: []string{"test", "./...", "-race", "-count=1", "-timeout=15m"}, slow: true},
	{label: "parser fuzz smoke", args: []string{"test", "./jsontree", "-run", "^$", "-fuzz", "FuzzParseCanonicalRoundTrip", "-fuzztime", "10s"}, slow: true},
	{label: "self conformance", args: []string{"test", "./conformance", "-count=1", "-timeout=10m", "-v"}},
	{label: "installed tool", args: []string{"test", "./conformance", "-run", "TestInstalledTool", "-count=1", "-v"}},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, hostRunner{})
	stop()
	os.Exit(code)
}

func selectSteps(quick bool) []gateStep {
	if !quick {
		return gateSteps
	}
	var out []gateStep
	for _, s := range gateSteps {
		if !s.slow {
			out = append(out, s)
		}
	}
	return out
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, runner commandRunner) int {
	quick := false
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			if err := writeUsage(stdout); err != nil {
				return 1
			}
			return 0
		case "--quick":
			quick = true
		default:
			if err := writef(stderr, "error: unknown argument %q\n", arg); err != nil {
				return 1
			}
			if err := writeUsage(stderr); err != nil {
				return 1
			}
			return 2
		}
	}

	steps := selectSteps(quick)
	for i, step := range steps {
		if err := writef(stdout, "[%d/%d] %s\n", i+1, len(steps), step.label); err != nil {
			return 1
		}
		if err := runner.Run(ctx, "go", step.args, stdout, stderr); err != nil {
			if writeErr := writef(stderr, "gate failed: %s: %v\n", step.label, err); writeErr != nil {
				return 1
			}
			return 1
		}
	}

	if err := writef(stdout, "all %d gates passed\n", len(steps)); err != nil {
		return 1
	}
	return 0
}

func (hostRunner) Run(ctx context.Context, name string, args []string, stdout io.Writer, stderr io.Writer) error {
	// #nosec G204 -- command and args are fixed gate invocations.
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", name, args, err)
	}
	return nil
}

func writeUsage(w io.Writer) error {
	return writef(w, "usage: go run ./cmd/conform-gate [--quick] [--help]\n"+
		"runs: vet, tests, race, fuzz smoke, self conformance, installed tool\n"+
		"--quick skips race and fuzz; the installed-tool gate skips unless %s is set\n", installedToolEnv)
}

func writef(w io.Writer, format string, args ...any) error {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	return nil
}
