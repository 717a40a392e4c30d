// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package harness checks that string operations compute the same values
// before and after conversion to ONNX with the ai.onnx.contrib domain.
//
// # Example Usage
//
//	import (
//	    "github.com/born-ml/strops/graph"
//	    "github.com/born-ml/strops/harness"
//	    "github.com/born-ml/strops/tensor"
//	)
//
//	c := harness.Case{
//	    Name: "replace_first_space",
//	    Feed: harness.Feed{{Name: "input", Value: tensor.Vector("Hello world!")}},
//	    Build: func(in ...graph.Output) []graph.Output {
//	        return []graph.Output{graph.Identity(graph.RegexReplace(in[0], " ", "_", false), "output")}
//	    },
//	    Outputs: []string{"output:0"},
//	}
//	res, err := harness.RunCase(c, harness.DefaultOptions())
//	if errors.Is(err, harness.ErrMismatch) {
//	    var e *harness.Error
//	    errors.As(err, &e)
//	    fmt.Println(e.Port, e.Diff)
//	}
//
// The returned Result carries both runs' values per port and the serialized
// model with its SHA-256 checksum.
package harness

import (
	"github.com/born-ml/strops/internal/harness"
	"github.com/born-ml/strops/internal/tensor"
)

// Case describes one equivalence check.
type Case = harness.Case

// BuildFunc adds the ops under test to a graph.
type BuildFunc = harness.BuildFunc

// Binding feeds a value to a named placeholder.
type Binding = harness.Binding

// Feed is an ordered list of bindings.
type Feed = harness.Feed

// Options configures RunCase.
type Options = harness.Options

// Tolerance bounds float differences.
type Tolerance = harness.Tolerance

// Result holds the values and artifact of a case.
type Result = harness.Result

// PortResult holds both runs' values for one port.
type PortResult = harness.PortResult

// Error reports the stage a case failed at.
type Error = harness.Error

// Stage names a pipeline step.
type Stage = harness.Stage

// Stage sentinels matched by errors.Is.
var (
	ErrInvalidCase = harness.ErrInvalidCase
	ErrConversion  = harness.ErrConversion
	ErrRuntimeLoad = harness.ErrRuntimeLoad
	ErrExecution   = harness.ErrExecution
	ErrMismatch    = harness.ErrMismatch
)

// DefaultOptions targets opset 13 with the contrib library registered.
func DefaultOptions() Options {
	return harness.DefaultOptions()
}

// DefaultTolerance is Rel 1e-7, Abs 1e-5.
func DefaultTolerance() Tolerance {
	return harness.DefaultTolerance()
}

// RunCase builds, converts, runs and compares c.
func RunCase(c Case, opts Options) (*Result, error) {
	return harness.RunCase(c, opts)
}

// Compare checks one pair of values the way RunCase does.
func Compare(source, target *tensor.Tensor, tol Tolerance) (string, error) {
	return harness.Compare(source, target, tol)
}

// Convert builds c and returns the serialized model without running it.
func Convert(c Case, opts Options) ([]byte, error) {
	return harness.Convert(c, opts)
}
