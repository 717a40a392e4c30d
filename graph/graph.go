// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph builds the source string-op graphs checked by the harness.
//
// Ops are free functions over Output values. Errors are sticky: a failing
// op records the first error on its graph, returns the zero Output and
// every later op on that graph becomes a no-op. Check [Graph.Err] once
// after building.
//
// Every output is addressed by a wire id "<node>:<port>"; node names
// default to the op type and are made unique with a _N suffix.
//
// # Supported Ops
//
//   - Identity, Reshape
//   - RegexReplace (StaticRegexReplace), RegexReplaceT (RegexReplace)
//   - StringJoin
//   - StringSplit, StringSplitN (StringSplitV2)
//   - StringToHashBucketFast
//   - StringUpper, StringLower
package graph

import (
	"github.com/born-ml/strops/internal/graph"
)

// Graph is a mutable op graph.
type Graph = graph.Graph

// Node is one op in a graph.
type Node = graph.Node

// Output addresses one output port of a node.
type Output = graph.Output

// Ragged is the result of StringSplit.
type Ragged = graph.Ragged

// Session evaluates a graph natively.
type Session = graph.Session

// New creates an empty graph.
func New(name string) *Graph {
	return graph.New(name)
}

// NewSession prepares g for evaluation with no logging.
func NewSession(g *Graph) (*Session, error) {
	return graph.NewSession(g, nil)
}

// Identity forwards x under a new name.
func Identity(x Output, name string) Output {
	return graph.Identity(x, name)
}

// Reshape changes the shape of x. One dimension may be -1.
func Reshape(x Output, shape ...int) Output {
	return graph.Reshape(x, shape...)
}

// RegexReplace replaces the first or every match of an RE2 pattern.
func RegexReplace(x Output, pattern, rewrite string, global bool) Output {
	return graph.RegexReplace(x, pattern, rewrite, global)
}

// RegexReplaceT is RegexReplace with pattern and rewrite as tensors.
func RegexReplaceT(x, pattern, rewrite Output, global bool) Output {
	return graph.RegexReplaceT(x, pattern, rewrite, global)
}

// StringJoin joins inputs element-wise, broadcasting scalars.
func StringJoin(inputs []Output, separator string) Output {
	return graph.StringJoin(inputs, separator)
}

// StringSplit splits every element of x on sep.
func StringSplit(x Output, sep string) Ragged {
	return graph.StringSplit(x, sep)
}

// StringSplitN splits with at most maxSplit splits per element.
func StringSplitN(x Output, sep string, maxSplit int64) Ragged {
	return graph.StringSplitN(x, sep, maxSplit)
}

// StringToHashBucketFast maps every element to a bucket in [0, numBuckets).
func StringToHashBucketFast(x Output, numBuckets int64) Output {
	return graph.StringToHashBucketFast(x, numBuckets)
}

// StringUpper upper-cases x; encoding is "" (ASCII) or "utf-8".
func StringUpper(x Output, encoding string) Output {
	return graph.StringUpper(x, encoding)
}

// StringLower lower-cases x; encoding is "" (ASCII) or "utf-8".
func StringLower(x Output, encoding string) Output {
	return graph.StringLower(x, encoding)
}
