// Package main provides the strops CLI.
package main

import (
	"fmt"
	"os"
)

const version = "v0.1.0-dev"

func main() {
	opts := &rootOptions{}
	cmd := newRootCommand(opts)
	err := cmd.Execute()
	opts.sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
