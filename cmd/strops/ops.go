package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/strops/internal/contrib"
	"github.com/born-ml/strops/internal/convert"
	"github.com/born-ml/strops/internal/onnx"
)

func newOpsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List convertible source ops and runtime ops per domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "converter: %s\n", strings.Join(convert.SupportedOps(), ", "))

			ops, err := onnx.ListSupportedOps(contrib.Library())
			if err != nil {
				return err
			}
			for _, domain := range []string{"", contrib.Domain} {
				name := domain
				if name == "" {
					name = "ai.onnx"
				}
				fmt.Fprintf(w, "runtime %s: %s\n", name, strings.Join(ops[domain], ", "))
			}
			return nil
		},
	}
}
