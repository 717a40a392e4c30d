// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the value type fed to and returned by the
// equivalence harness.
//
// # Overview
//
// A Tensor is a dense, row-major array with one of seven element types:
// float32, float64, int32, int64, uint8, bool and string. Shape{} denotes a
// scalar. Tensors are immutable once handed to a graph or session.
//
// # Basic Usage
//
//	import "github.com/born-ml/strops/tensor"
//
//	words := tensor.Vector("Hello world!", "Test 1 2 3")
//	grid := tensor.Must(tensor.FromSlice([]string{"a", "b", "c", "d"}, tensor.Shape{2, 2}))
//	text := tensor.Scalar("Some scalar text")
//
//	vals, err := tensor.Values[string](grid)
//
// # Type Names
//
// Case files name element types the way [ParseDataType] accepts them:
// "float32", "float64", "int32", "int64", "uint8", "bool" and "string".
package tensor
