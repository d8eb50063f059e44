// Package executil runs the tool under test as a subprocess and reports how
// it terminated.
package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"time"
)

// DefaultMaxOutput bounds the captured stdout and stderr per stream.
const DefaultMaxOutput = 64 * 1024

// Options controls a single subprocess run.
type Options struct {
	Dir       string
	Env       map[string]string
	Timeout   time.Duration // 0 means no timeout beyond ctx
	MaxOutput int           // 0 means DefaultMaxOutput
}

// Result describes how the process terminated.
type Result struct {
	ExitCode int // -1 when the process did not exit normally
	Signaled bool
	State    string // process state as reported by os (e.g. "signal: aborted")
	TimedOut bool
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Exited reports whether the process exited normally with code.
func (r Result) Exited(code int) bool {
	return !r.Signaled && !r.TimedOut && r.ExitCode == code
}

// CommandRunner abstracts command execution so tests can substitute it.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, opts Options) (Result, error)
}

// OSRunner executes commands on the host.
type OSRunner struct{}

// Run executes argv synchronously. A non-nil error means the process could
// not be started at all; abnormal termination is reported in Result.
func (OSRunner) Run(ctx context.Context, argv []string, opts Options) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("empty argv")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// #nosec G204 -- argv is built from the fixed invocation templates.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.WaitDelay = time.Second
	if len(opts.Env) != 0 {
		keys := make([]string, 0, len(opts.Env))
		for k := range opts.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		merged := cmd.Environ()
		for _, k := range keys {
			merged = append(merged, fmt.Sprintf("%s=%s", k, opts.Env[k]))
		}
		cmd.Env = merged
	}

	maxOut := opts.MaxOutput
	if maxOut <= 0 {
		maxOut = DefaultMaxOutput
	}
	stdout := &limitedBuffer{max: maxOut}
	stderr := &limitedBuffer{max: maxOut}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
		res.State = cmd.ProcessState.String()
		res.Signaled = res.ExitCode == -1
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) {
			return res, nil
		}
		if cmd.ProcessState == nil {
			return res, fmt.Errorf("run %q failed: %w", argv, err)
		}
	}
	return res, nil
}

// limitedBuffer keeps the first max bytes written and discards the rest
// while still reporting full writes to the child.
type limitedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	if !b.truncated {
		return b.buf.Bytes()
	}
	return append(b.buf.Bytes(), "\n[output truncated]"...)
}
