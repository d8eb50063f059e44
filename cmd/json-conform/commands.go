package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lattice-substrate/json-conform/suite"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var f suiteFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conformance suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.resolve(cmd, opts)
			if err != nil {
				return err
			}
			cases, err := plan(cfg)
			if err != nil {
				return err
			}
			log := opts.logger()
			driver := suite.NewDriver(cfg, newResolver(cfg, log), log)
			report, err := driver.Run(cmd.Context(), cases)
			if err != nil {
				return commandError("run suite", err)
			}
			if err := writeReport(opts, report); err != nil {
				return commandError("write report", err)
			}
			if !report.OK() {
				return &exitError{code: exitFailure, msg: fmt.Sprintf("%d of %d case(s) failed", report.Counts.Failed, report.Counts.Total)}
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func writeReport(opts *rootOptions, report *suite.Report) error {
	if opts.format == "json" {
		return report.WriteJSON(opts.stdout)
	}
	return report.WriteText(opts.stdout, opts.verbose)
}

func newLocateCommand(opts *rootOptions) *cobra.Command {
	var f suiteFlags
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Print the path of the located tool binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.resolve(cmd, opts)
			if err != nil {
				return err
			}
			path, err := newResolver(cfg, opts.logger()).Path(cmd.Context())
			if err != nil {
				return commandError("locate tool", err)
			}
			if opts.format == "json" {
				return encodeJSON(opts, map[string]string{"tool": path})
			}
			_, err = fmt.Fprintln(opts.stdout, path)
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var f suiteFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the planned case IDs without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.resolve(cmd, opts)
			if err != nil {
				return err
			}
			cases, err := plan(cfg)
			if err != nil {
				return err
			}
			ids := make([]string, len(cases))
			for i, c := range cases {
				ids[i] = c.ID
			}
			if opts.format == "json" {
				return encodeJSON(opts, ids)
			}
			for _, id := range ids {
				if _, err := fmt.Fprintln(opts.stdout, id); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

type modeRow struct {
	Mode      string `json:"mode"`
	Supported bool   `json:"supported"`
	Reason    string `json:"reason,omitempty"`
}

func newModesCommand(opts *rootOptions) *cobra.Command {
	var f suiteFlags
	cmd := &cobra.Command{
		Use:   "modes",
		Short: "Probe the tool and print which invocation modes it supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.resolve(cmd, opts)
			if err != nil {
				return err
			}
			log := opts.logger()
			tool, err := newResolver(cfg, log).Path(cmd.Context())
			if err != nil {
				return commandError("locate tool", err)
			}
			modes, err := cfg.SuccessModes()
			if err != nil {
				return commandError("modes", err)
			}
			runner := suite.NewDriver(cfg, suite.StaticTool(tool), log).Runner
			compat, err := runner.ProbeModes(cmd.Context(), tool, modes, os.TempDir())
			if err != nil {
				return commandError("probe modes", err)
			}
			rows := make([]modeRow, 0, len(modes))
			for _, s := range compat.Ordered(modes) {
				rows = append(rows, modeRow{Mode: string(s.Mode), Supported: s.Supported, Reason: s.Reason})
			}
			if opts.format == "json" {
				return encodeJSON(opts, rows)
			}
			return writeModeTable(opts, rows)
		},
	}
	f.register(cmd)
	return cmd
}

func writeModeTable(opts *rootOptions, rows []modeRow) error {
	for _, r := range rows {
		verdict := "supported"
		if !r.Supported {
			verdict = "unsupported: " + r.Reason
		}
		if _, err := fmt.Fprintf(opts.stdout, "%-15s %s\n", r.Mode, verdict); err != nil {
			return err
		}
	}
	return nil
}

func encodeJSON(opts *rootOptions, v any) error {
	enc := json.NewEncoder(opts.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
