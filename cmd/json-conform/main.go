// Command json-conform runs the JSON conformance suite against the tool
// under test.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lattice-substrate/json-conform/conferr"
)

// Exit codes.
const (
	exitSuccess      = 0 // every case passed or was skipped
	exitFailure      = 1 // at least one case failed
	exitCommandError = 2 // bad flags, bad config, tool not located
)

// exitError carries a specific exit code out of a cobra command.
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *exitError) Unwrap() error {
	return e.err
}

func commandError(msg string, err error) *exitError {
	return &exitError{code: exitCommandError, msg: msg, err: err}
}

// exitCode maps an error to a process exit code. Errors that are not
// exitErrors come from flag parsing or config loading.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitCommandError
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		writeError(stderr, err)
	}
	return exitCode(err)
}

func writeError(w io.Writer, err error) {
	var ce *conferr.Error
	if errors.As(err, &ce) {
		_, _ = fmt.Fprintf(w, "error [%s]: %v\n", ce.Class, err)
		return
	}
	_, _ = fmt.Fprintf(w, "error: %v\n", err)
}
