package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/strops/internal/harness"
)

type convertOptions struct {
	*rootOptions
	caseName string
	output   string
	opset    int64
}

func newConvertCommand(root *rootOptions) *cobra.Command {
	opts := &convertOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "convert <cases.yaml>",
		Short: "Convert one case to an ONNX model file",
		Long: `Convert one case to an ONNX model without running it.

Examples:
  strops convert cases.yaml --case join_three -o join.onnx
  strops convert cases.yaml --case join_three -o join12.onnx --opset 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertCase(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.caseName, "case", "", "case to convert (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output model path (required)")
	cmd.Flags().Int64Var(&opts.opset, "opset", 0, "default-domain opset (overrides the file)")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func convertCase(cmd *cobra.Command, opts *convertOptions, path string) error {
	f, cases, err := loadCases(path, []string{opts.caseName})
	if err != nil {
		return err
	}
	hopts := f.Options()
	hopts.Logger = opts.logger
	if cmd.Flags().Changed("opset") {
		hopts.Opset = opts.opset
	}

	data, err := harness.Convert(cases[0], hopts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o600); err != nil {
		return commandError("failed to write model: %v", err)
	}
	sum := sha256.Sum256(data)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes, sha256 %s)\n", opts.output, len(data), hex.EncodeToString(sum[:]))
	return nil
}
