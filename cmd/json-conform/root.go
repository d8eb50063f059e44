package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lattice-substrate/json-conform/fixture"
	"github.com/lattice-substrate/json-conform/locate"
	"github.com/lattice-substrate/json-conform/suite"
)

var validFormats = []string{"text", "json"}

// rootOptions holds the persistent flags.
type rootOptions struct {
	config  string
	format  string
	verbose bool

	stdout io.Writer
	stderr io.Writer
}

func (o *rootOptions) logger() *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(o.stderr, &slog.HandlerOptions{Level: level}))
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:           "json-conform",
		Short:         "Conformance harness for command-line JSON processors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&opts.config, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging and per-case output")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newLocateCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newModesCommand(opts))
	return cmd
}

// suiteFlags are the run configuration flags shared by the subcommands.
// Flags override the config file only when set explicitly.
type suiteFlags struct {
	root         string
	searchRoot   string
	binary       string
	tool         string
	timeout      time.Duration
	probeTimeout time.Duration
	workers      int
	flagStyle    string
	modes        []string
	filter       string
	determinism  bool
	probeModes   bool
	handledExit  []int
	digits       int
}

func (f *suiteFlags) register(cmd *cobra.Command) {
	d := suite.DefaultConfig()
	fl := cmd.Flags()
	fl.StringVar(&f.root, "root", "", "corpus root containing data/ and crash-data/ (default: nearest parent of the working directory)")
	fl.StringVar(&f.searchRoot, "search-root", "", "directory searched for the tool binary (default <root>/build)")
	fl.StringVar(&f.binary, "binary", d.Binary, "tool binary base name")
	fl.StringVar(&f.tool, "tool", "", "explicit tool path; probed but not searched for")
	fl.DurationVar(&f.timeout, "timeout", d.Timeout, "per-invocation timeout")
	fl.DurationVar(&f.probeTimeout, "probe-timeout", d.ProbeTimeout, "version probe timeout")
	fl.IntVar(&f.workers, "workers", d.Workers, "concurrent cases")
	fl.StringVar(&f.flagStyle, "flag-style", d.FlagStyle, "tool option spelling (long|short)")
	fl.StringSliceVar(&f.modes, "modes", d.Modes, "success-corpus modes to enable")
	fl.StringVar(&f.filter, "filter", "", "glob on fixture paths")
	fl.BoolVar(&f.determinism, "determinism", false, "run each success fixture twice and require identical output")
	fl.BoolVar(&f.probeModes, "probe-modes", false, "probe the tool and skip modes it does not support")
	fl.IntSliceVar(&f.handledExit, "handled-exit", d.HandledExit, "crash-corpus exit codes counted as graceful")
	fl.IntVar(&f.digits, "significant-digits", *d.SignificantDigits, "double comparison precision (0 means exact)")
}

// resolve layers defaults, the config file and explicitly set flags, then
// locates the corpus root when none was given.
func (f *suiteFlags) resolve(cmd *cobra.Command, opts *rootOptions) (suite.Config, error) {
	cfg := suite.DefaultConfig()
	if opts.config != "" {
		loaded, err := suite.LoadConfig(opts.config)
		if err != nil {
			return cfg, commandError("load config", err)
		}
		cfg = loaded
	}

	fl := cmd.Flags()
	set := func(name string, apply func()) {
		if fl.Changed(name) {
			apply()
		}
	}
	set("root", func() { cfg.Root = f.root })
	set("search-root", func() { cfg.SearchRoot = f.searchRoot })
	set("binary", func() { cfg.Binary = f.binary })
	set("tool", func() { cfg.Tool = f.tool })
	set("timeout", func() { cfg.Timeout = f.timeout })
	set("probe-timeout", func() { cfg.ProbeTimeout = f.probeTimeout })
	set("workers", func() { cfg.Workers = f.workers })
	set("flag-style", func() { cfg.FlagStyle = f.flagStyle })
	set("modes", func() { cfg.Modes = f.modes })
	set("filter", func() { cfg.Filter = f.filter })
	set("determinism", func() { cfg.Determinism = f.determinism })
	set("probe-modes", func() { cfg.ProbeModes = f.probeModes })
	set("handled-exit", func() { cfg.HandledExit = f.handledExit })
	set("significant-digits", func() {
		digits := f.digits
		cfg.SignificantDigits = &digits
	})

	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, commandError("working directory", err)
		}
		root, err := fixture.FindRoot(wd)
		if err != nil {
			return cfg, commandError("locate corpus root", err)
		}
		cfg.Root = root
	}
	if err := cfg.Validate(); err != nil {
		return cfg, commandError("invalid configuration", err)
	}
	return cfg, nil
}

func newResolver(cfg suite.Config, log *slog.Logger) *locate.Resolver {
	l := locate.New(log)
	if cfg.ProbeTimeout > 0 {
		l.ProbeTimeout = cfg.ProbeTimeout
	}
	r := locate.NewResolver(l, cfg.ResolvedSearchRoot(), cfg.Binary)
	r.Explicit = cfg.Tool
	return r
}

// plan loads the corpora and materializes the case table.
func plan(cfg suite.Config) ([]suite.Case, error) {
	corpora, err := fixture.LoadAll(cfg.Root, cfg.Filter)
	if err != nil {
		return nil, commandError("load fixtures", err)
	}
	modes, err := cfg.SuccessModes()
	if err != nil {
		return nil, commandError("modes", err)
	}
	return suite.Plan(corpora, modes, cfg.Determinism), nil
}
