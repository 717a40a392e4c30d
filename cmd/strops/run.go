package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/strops/internal/casefile"
	"github.com/born-ml/strops/internal/harness"
	"github.com/born-ml/strops/internal/parallel"
)

type runOptions struct {
	*rootOptions
	parallel  int
	artifacts string
	keep      bool
	opset     int64
	cases     []string
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run <cases.yaml>",
		Short: "Run every case in a case file",
		Long: `Run every case in a case file and print PASS or FAIL per case.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Command error (unreadable or invalid case file)

Examples:
  strops run cases.yaml
  strops run cases.yaml --parallel 4
  strops run cases.yaml --artifacts ./models --keep
  strops run cases.yaml --case split_flat_values`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCases(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 1, "cases run concurrently")
	cmd.Flags().StringVar(&opts.artifacts, "artifacts", "", "directory for converted models (overrides the file)")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "keep converted models in the artifact directory")
	cmd.Flags().Int64Var(&opts.opset, "opset", 0, "default-domain opset (overrides the file)")
	cmd.Flags().StringSliceVar(&opts.cases, "case", nil, "run only the named cases")

	return cmd
}

func loadCases(path string, only []string) (*casefile.File, []harness.Case, error) {
	f, err := casefile.Load(path)
	if err != nil {
		return nil, nil, commandError("%v", err)
	}
	if len(only) == 0 {
		cases, err := f.HarnessCases()
		if err != nil {
			return nil, nil, commandError("%v", err)
		}
		return f, cases, nil
	}
	cases := make([]harness.Case, 0, len(only))
	for _, name := range only {
		c, err := f.Case(name)
		if err != nil {
			return nil, nil, commandError("%v", err)
		}
		cases = append(cases, c)
	}
	return f, cases, nil
}

func runCases(cmd *cobra.Command, opts *runOptions, path string) error {
	f, cases, err := loadCases(path, opts.cases)
	if err != nil {
		return err
	}

	hopts := f.Options()
	hopts.Logger = opts.logger
	if cmd.Flags().Changed("artifacts") {
		hopts.ArtifactDir = opts.artifacts
	}
	if cmd.Flags().Changed("keep") {
		hopts.KeepArtifacts = opts.keep
	}
	if cmd.Flags().Changed("opset") {
		hopts.Opset = opts.opset
	}
	if opts.parallel < 1 {
		return commandError("--parallel must be at least 1, got %d", opts.parallel)
	}

	results := make([]error, len(cases))
	cfg := parallel.Config{Enabled: opts.parallel > 1, NumWorkers: opts.parallel}
	err = parallel.Each(cmd.Context(), len(cases), func(_ context.Context, i int) error {
		res, err := harness.RunCase(cases[i], hopts)
		results[i] = err
		if err == nil && res.ArtifactPath != "" {
			opts.logger.Info("kept artifact", zap.String("case", cases[i].Name), zap.String("path", res.ArtifactPath))
		}
		return nil
	}, cfg)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	failed := 0
	for i, c := range cases {
		if results[i] == nil {
			fmt.Fprintf(w, "PASS %s\n", c.Name)
			continue
		}
		failed++
		fmt.Fprintf(w, "FAIL %s\n", c.Name)
		fmt.Fprintf(w, "  %v\n", results[i])
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", len(cases)-failed, failed, len(cases))

	if failed > 0 {
		return &exitError{code: exitFailure, err: errors.New("one or more cases failed")}
	}
	return nil
}
