package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dev/bravebird/pagecheck/pkg/scenario"
)

// validationResult is one file's outcome
type validationResult struct {
	File   string `json:"file"`
	Name   string `json:"name,omitempty"`
	Valid  bool   `json:"valid"`
	Errors string `json:"errors,omitempty"`
}

func newValidateCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario-file>...",
		Short: "Check scenario files without running them",
		Long: `Parse each scenario, rejecting unknown fields, unknown ops, missing
arguments, unknown filters and bad patterns. Every problem in a file is
reported, not only the first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd.OutOrStdout())
		},
	}
}

func runValidate(opts *rootOptions, files []string, out io.Writer) error {
	results := make([]validationResult, 0, len(files))
	invalid := 0
	for _, f := range files {
		r := validationResult{File: f, Valid: true}
		sc, err := scenario.Load(f)
		if err != nil {
			r.Valid = false
			r.Errors = err.Error()
			invalid++
		} else {
			r.Name = sc.Name
		}
		results = append(results, r)
	}

	if opts.Format == "json" {
		if err := json.NewEncoder(out).Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(out, "ok   %s (%s)\n", r.File, r.Name)
				continue
			}
			fmt.Fprintf(out, "FAIL %s\n", r.File)
			for _, line := range strings.Split(r.Errors, "\n") {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d files invalid", invalid, len(files))
	}
	return nil
}

func newOpsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the step ops a scenario can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, op := range scenario.Ops() {
				fmt.Fprintln(cmd.OutOrStdout(), op)
			}
			return nil
		},
	}
}
