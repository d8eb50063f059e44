// Package locate finds the tool under test inside a build tree.
//
// A name match alone is not trusted: stale or unrelated files can share the
// name. Every candidate must be a regular executable file and must pass a
// version probe before it is selected.
package locate

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lattice-substrate/json-conform/conferr"
	"github.com/lattice-substrate/json-conform/executil"
)

const (
	// DefaultBinaryName is the qajson4c test driver.
	DefaultBinaryName = "simple-test"

	// DefaultProbeTimeout bounds each version probe.
	DefaultProbeTimeout = 10 * time.Second
)

// ProbeArgs is the liveness probe argument vector.
var ProbeArgs = []string{"--version"}

// Locator searches a root directory for a probe-passing binary.
type Locator struct {
	Runner       executil.CommandRunner
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// New returns a Locator that runs probes on the host.
func New(logger *slog.Logger) *Locator {
	return &Locator{Runner: executil.OSRunner{}, ProbeTimeout: DefaultProbeTimeout, Logger: logger}
}

func (l *Locator) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.Logger
}

// Candidates returns every file below root whose base name is name (or
// name.exe), sorted lexicographically. A missing root yields no candidates.
func Candidates(root, name string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return fs.SkipAll
			}
			if d != nil && d.IsDir() && path != root {
				// Unreadable subtrees are skipped, not fatal.
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		if base == name || strings.EqualFold(base, name+".exe") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

// Find returns the first candidate under root that is an executable
// regular file and exits 0 when invoked with ProbeArgs. It returns a
// BINARY_NOT_FOUND error when no candidate qualifies.
func (l *Locator) Find(ctx context.Context, root, name string) (string, error) {
	log := l.logger()
	candidates, err := Candidates(root, name)
	if err != nil {
		return "", conferr.Wrap(conferr.BinaryNotFound, root, "search build tree", err)
	}

	for _, path := range candidates {
		if err := l.Verify(ctx, path); err != nil {
			log.Debug("rejected candidate", "path", path, "reason", err)
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", conferr.Wrap(conferr.InternalIO, path, "resolve absolute path", err)
		}
		log.Info("located tool", "path", abs)
		return abs, nil
	}
	return "", conferr.Newf(conferr.BinaryNotFound, root,
		"no probe-passing %q among %d candidate(s)", name, len(candidates))
}

// Verify checks a single candidate: regular file, executable, probe exit 0.
func (l *Locator) Verify(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("not executable (mode %s)", info.Mode().Perm())
	}

	timeout := l.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	runner := l.Runner
	if runner == nil {
		runner = executil.OSRunner{}
	}
	argv := append([]string{path}, ProbeArgs...)
	res, err := runner.Run(ctx, argv, executil.Options{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	switch {
	case res.TimedOut:
		return fmt.Errorf("probe timed out after %s", timeout)
	case !res.Exited(0):
		return fmt.Errorf("probe exited abnormally: %s", res.State)
	}
	return nil
}

// Resolver caches the located path for the lifetime of the process. The
// search runs at most once; the result is read-only afterwards. When
// Explicit is set that path is verified instead of searching Root.
type Resolver struct {
	Locator  *Locator
	Root     string
	Name     string
	Explicit string

	once sync.Once
	path string
	err  error
}

// NewResolver returns a resolver for name under root.
func NewResolver(l *Locator, root, name string) *Resolver {
	return &Resolver{Locator: l, Root: root, Name: name}
}

// Path returns the resolved tool path, searching on first use.
func (r *Resolver) Path(ctx context.Context) (string, error) {
	r.once.Do(func() {
		if r.Explicit != "" {
			r.path, r.err = r.Locator.verifyExplicit(ctx, r.Explicit)
			return
		}
		name := r.Name
		if name == "" {
			name = DefaultBinaryName
		}
		r.path, r.err = r.Locator.Find(ctx, r.Root, name)
	})
	return r.path, r.err
}

func (l *Locator) verifyExplicit(ctx context.Context, path string) (string, error) {
	if err := l.Verify(ctx, path); err != nil {
		return "", conferr.Wrap(conferr.BinaryNotFound, path, "explicit tool rejected", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", conferr.Wrap(conferr.InternalIO, path, "resolve absolute path", err)
	}
	l.logger().Info("using explicit tool", "path", abs)
	return abs, nil
}
