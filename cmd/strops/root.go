package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes.
const (
	exitFailure      = 1 // One or more cases failed.
	exitCommandError = 2 // Bad arguments, unreadable files.
)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func commandError(format string, args ...any) error {
	return &exitError{code: exitCommandError, err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitFailure
}

// rootOptions holds global flags and the logger they configure.
type rootOptions struct {
	verbose bool
	logger  *zap.Logger
}

func (o *rootOptions) buildLogger() error {
	cfg := zap.NewProductionConfig()
	if o.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	o.logger = logger
	return nil
}

// sync flushes the logger. Errors are ignored: syncing stderr fails on
// some platforms.
func (o *rootOptions) sync() {
	if o.logger != nil {
		_ = o.logger.Sync()
	}
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strops",
		Short: "strops - string-op conversion equivalence harness",
		Long: `Build string-op graphs, convert them to ONNX with the ai.onnx.contrib
custom-op domain, run both representations and compare every output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return opts.buildLogger()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newConvertCommand(opts))
	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newOpsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}
