// Package suite plans and drives conformance runs of the tool under test.
package suite

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lattice-substrate/json-conform/conferr"
	"github.com/lattice-substrate/json-conform/invoke"
	"github.com/lattice-substrate/json-conform/jsontree"
	"github.com/lattice-substrate/json-conform/locate"
)

// MaxWorkers caps the worker pool.
const MaxWorkers = 64

// Config is the run configuration. Zero values mean defaults; see
// DefaultConfig.
type Config struct {
	// Root is the corpus root containing data and crash-data.
	Root string `yaml:"root"`
	// SearchRoot is where the tool binary is searched for. Defaults to
	// <Root>/build.
	SearchRoot string `yaml:"search_root"`
	// Binary is the base name searched for.
	Binary string `yaml:"binary"`
	// Tool is an explicit tool path; it is still probed but never searched.
	Tool string `yaml:"tool"`

	Timeout      time.Duration `yaml:"timeout"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	Workers      int           `yaml:"workers"`
	FlagStyle    string        `yaml:"flag_style"`
	Modes        []string      `yaml:"modes"`
	Filter       string        `yaml:"filter"`
	Determinism  bool          `yaml:"determinism"`
	ProbeModes   bool          `yaml:"probe_modes"`
	HandledExit  []int         `yaml:"handled_exit"`

	// SignificantDigits is the double comparison precision; 0 compares
	// doubles exactly. Nil means jsontree.DefaultSignificantDigits.
	SignificantDigits *int `yaml:"significant_digits"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	digits := jsontree.DefaultSignificantDigits
	return Config{
		Binary:            locate.DefaultBinaryName,
		Timeout:           invoke.DefaultTimeout,
		ProbeTimeout:      locate.DefaultProbeTimeout,
		Workers:           1,
		FlagStyle:         string(invoke.LongFlags),
		Modes:             modeNames(invoke.SuccessModes),
		HandledExit:       append([]int(nil), invoke.DefaultHandledExitCodes...),
		SignificantDigits: &digits,
	}
}

func modeNames(modes []invoke.Mode) []string {
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

// LoadConfig reads a YAML config file over DefaultConfig. Unknown fields are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) // #nosec G304 -- path is explicit operator input.
	if err != nil {
		return cfg, conferr.Wrap(conferr.ConfigInvalid, path, "read config", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, conferr.Wrap(conferr.ConfigInvalid, path, "decode config yaml", err)
	}
	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	if cfg.SearchRoot != "" && !filepath.IsAbs(cfg.SearchRoot) {
		cfg.SearchRoot = filepath.Join(filepath.Dir(path), cfg.SearchRoot)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return conferr.Newf(conferr.ConfigInvalid, "", "timeout must not be negative, got %s", c.Timeout)
	}
	if c.ProbeTimeout < 0 {
		return conferr.Newf(conferr.ConfigInvalid, "", "probe_timeout must not be negative, got %s", c.ProbeTimeout)
	}
	if c.Workers < 0 || c.Workers > MaxWorkers {
		return conferr.Newf(conferr.ConfigInvalid, "", "workers must be in [0,%d], got %d", MaxWorkers, c.Workers)
	}
	if _, err := invoke.ParseFlagStyle(c.FlagStyle); err != nil {
		return err
	}
	if _, err := c.SuccessModes(); err != nil {
		return err
	}
	if _, err := filepath.Match(c.Filter, ""); err != nil {
		return conferr.Wrap(conferr.ConfigInvalid, "", fmt.Sprintf("invalid filter %q", c.Filter), err)
	}
	if c.SignificantDigits != nil && (*c.SignificantDigits < 0 || *c.SignificantDigits > 17) {
		return conferr.Newf(conferr.ConfigInvalid, "", "significant_digits must be in [0,17], got %d", *c.SignificantDigits)
	}
	for _, code := range c.HandledExit {
		if code < 0 || code > 255 {
			return conferr.Newf(conferr.ConfigInvalid, "", "handled exit code %d out of range", code)
		}
	}
	return nil
}

// SuccessModes returns the parsed enabled modes; an empty list means all.
func (c *Config) SuccessModes() ([]invoke.Mode, error) {
	if len(c.Modes) == 0 {
		return append([]invoke.Mode(nil), invoke.SuccessModes...), nil
	}
	return invoke.ParseSuccessModes(c.Modes)
}

// Style returns the parsed flag style.
func (c *Config) Style() invoke.FlagStyle {
	s, err := invoke.ParseFlagStyle(c.FlagStyle)
	if err != nil {
		return invoke.LongFlags
	}
	return s
}

// NumberModel returns the comparison model for the configured precision.
func (c *Config) NumberModel() jsontree.NumberModel {
	if c.SignificantDigits == nil {
		return jsontree.ToolNumberModel
	}
	return jsontree.NumberModel{SignificantDigits: *c.SignificantDigits}
}

// ResolvedSearchRoot returns SearchRoot or <Root>/build.
func (c *Config) ResolvedSearchRoot() string {
	if c.SearchRoot != "" {
		return c.SearchRoot
	}
	return filepath.Join(c.Root, "build")
}

// WorkerCount returns the effective worker count.
func (c *Config) WorkerCount() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}
