package invoke

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lattice-substrate/json-conform/conferr"
)

// probeDocument is the trivial input used to detect supported modes.
const probeDocument = "{}\n"

// Support is the probe verdict for one mode.
type Support struct {
	Mode      Mode
	Supported bool
	Reason    string // why the mode is unsupported
}

// Compatibility maps modes to probe verdicts. A mode with no entry is
// treated as supported.
type Compatibility map[Mode]Support

// Supports reports whether m may be run and, if not, why.
func (c Compatibility) Supports(m Mode) (bool, string) {
	s, ok := c[m]
	if !ok {
		return true, ""
	}
	return s.Supported, s.Reason
}

// Ordered returns the verdicts for modes in the given order.
func (c Compatibility) Ordered(modes []Mode) []Support {
	out := make([]Support, 0, len(modes))
	for _, m := range modes {
		ok, reason := c.Supports(m)
		out = append(out, Support{Mode: m, Supported: ok, Reason: reason})
	}
	return out
}

// ProbeModes invokes the tool once per mode on an empty object and marks a
// mode unsupported when that invocation fails. Probe artifacts live under a
// temporary directory inside workDir that is removed before returning.
func (r *Runner) ProbeModes(ctx context.Context, tool string, modes []Mode, workDir string) (Compatibility, error) {
	dir, err := os.MkdirTemp(workDir, "probe-")
	if err != nil {
		return nil, conferr.Wrap(conferr.InternalIO, workDir, "create probe directory", err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	input := filepath.Join(dir, "probe.json")
	if err := os.WriteFile(input, []byte(probeDocument), 0o600); err != nil {
		return nil, conferr.Wrap(conferr.InternalIO, input, "write probe document", err)
	}

	log := r.logger()
	compat := make(Compatibility, len(modes))
	for i, m := range modes {
		caseDir := filepath.Join(dir, fmt.Sprintf("%02d-%s", i, m))
		if err := os.Mkdir(caseDir, 0o700); err != nil {
			return nil, conferr.Wrap(conferr.InternalIO, caseDir, "create probe case directory", err)
		}
		_, err := r.Invoke(ctx, Request{Tool: tool, Fixture: input, Mode: m, CaseDir: caseDir})
		if err == nil {
			compat[m] = Support{Mode: m, Supported: true}
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, conferr.Wrap(conferr.Canceled, "", "mode probe interrupted", ctxErr)
		}
		var ce *conferr.Error
		reason := err.Error()
		if errors.As(err, &ce) {
			reason = fmt.Sprintf("%s: %s", ce.Class, ce.Message)
		}
		log.Info("mode unsupported", "mode", string(m), "reason", reason)
		compat[m] = Support{Mode: m, Reason: reason}
	}
	return compat, nil
}
