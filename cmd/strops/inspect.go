package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/strops/internal/onnx"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <model.onnx>",
		Short: "Print a model's opsets, inputs, outputs and ops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := onnx.GetModelInfo(args[0])
			if err != nil {
				return commandError("%v", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "IR version: %d\n", info.IRVersion)
			if info.ProducerName != "" {
				fmt.Fprintf(w, "Producer:   %s %s\n", info.ProducerName, info.ProducerVersion)
			}
			opsets := make([]string, len(info.Opsets))
			for i, o := range info.Opsets {
				domain := o.Domain
				if domain == "" {
					domain = "ai.onnx"
				}
				opsets[i] = fmt.Sprintf("%s=%d", domain, o.Version)
			}
			fmt.Fprintf(w, "Opsets:     %s\n", strings.Join(opsets, ", "))
			fmt.Fprintf(w, "Inputs:     %s\n", strings.Join(info.InputNames, ", "))
			fmt.Fprintf(w, "Outputs:    %s\n", strings.Join(info.OutputNames, ", "))
			fmt.Fprintf(w, "Nodes:      %d (%d initializers)\n", info.NodeCount, info.WeightCount)
			fmt.Fprintf(w, "Ops:        %s\n", strings.Join(info.Ops, ", "))
			return nil
		},
	}
}
