// Command qajson-reftool is a reference implementation of the simple-test
// command-line contract. The conformance suite builds it to exercise the
// harness without a native tool build.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/lattice-substrate/json-conform/jsontree"
)

const version = "1.0.0"

type options struct {
	file    string
	output  string
	dynamic int
	insitu  int
	verbose bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newCommand(stdout, stderr io.Writer) *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "simple-test",
		Short:         "Parse a JSON file and print it back",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return process(o, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	fl := cmd.Flags()
	fl.StringVarP(&o.file, "file", "f", "", "input file")
	fl.StringVarP(&o.output, "output", "o", "", "output file (default stdout)")
	fl.IntVarP(&o.dynamic, "dynamic", "d", 0, "use the dynamic parser (0|1)")
	fl.IntVarP(&o.insitu, "insitu", "i", 0, "parse in place and rewrite the input (0|1)")
	fl.BoolVarP(&o.verbose, "verbose", "v", false, "print statistics")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func process(o options, stdout, stderr io.Writer) error {
	data, err := os.ReadFile(o.file)
	if err != nil {
		return err
	}
	start := time.Now()

	var out []byte
	if o.dynamic == 1 {
		out, err = dynamicParse(data)
	} else {
		out, err = staticParse(data)
	}
	if err != nil {
		// Malformed input is handled, not fatal.
		msg, _ := json.Marshal(map[string]string{"error": err.Error()})
		return emit(o.output, stdout, msg)
	}

	if o.insitu == 1 {
		if err := os.WriteFile(o.file, out, 0o600); err != nil {
			return err
		}
	}
	if err := emit(o.output, stdout, out); err != nil {
		return err
	}
	if o.verbose {
		_, _ = fmt.Fprintf(stderr, "Statistics\n  bytes: %d\n  parse: %s\n", len(data), time.Since(start))
	}
	return nil
}

func emit(path string, stdout io.Writer, data []byte) error {
	if path == "" {
		_, err := stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func staticParse(data []byte) ([]byte, error) {
	v, err := jsontree.Parse(data)
	if err != nil {
		return nil, err
	}
	return jsontree.SerializeWith(v, jsontree.ToolNumberModel.FormatLiteral)
}

// dynamicParse goes through encoding/json, an independent parser, and
// converts the result into a value tree for printing.
func dynamicParse(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing content after document")
	}
	v, err := fromAny(doc)
	if err != nil {
		return nil, err
	}
	return jsontree.SerializeWith(v, jsontree.ToolNumberModel.FormatLiteral)
}

func fromAny(x any) (*jsontree.Value, error) {
	switch t := x.(type) {
	case nil:
		return &jsontree.Value{Kind: jsontree.KindNull}, nil
	case bool:
		s := "false"
		if t {
			s = "true"
		}
		return &jsontree.Value{Kind: jsontree.KindBool, Str: s}, nil
	case json.Number:
		return &jsontree.Value{Kind: jsontree.KindNumber, Num: t.String()}, nil
	case string:
		return &jsontree.Value{Kind: jsontree.KindString, Str: t}, nil
	case []any:
		v := &jsontree.Value{Kind: jsontree.KindArray, Elems: make([]jsontree.Value, 0, len(t))}
		for _, e := range t {
			ev, err := fromAny(e)
			if err != nil {
				return nil, err
			}
			v.Elems = append(v.Elems, *ev)
		}
		return v, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		v := &jsontree.Value{Kind: jsontree.KindObject, Members: make([]jsontree.Member, 0, len(t))}
		for _, k := range keys {
			mv, err := fromAny(t[k])
			if err != nil {
				return nil, err
			}
			v.Members = append(v.Members, jsontree.Member{Key: k, Value: *mv})
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", x)
}
