// Package contrib provides the ai.onnx.contrib string operators as an
// operators.Library for the ONNX runtime session.
//
// The library is never registered implicitly: callers hand Library() to
// onnx.SessionOptions.RegisterCustomOpsLibrary.
package contrib

import "github.com/born-ml/strops/internal/onnx/operators"

const (
	// Domain is the custom-op domain served by this library.
	Domain = "ai.onnx.contrib"
	// Version is the opset version of Domain the library implements.
	Version = 1
	// Name identifies the library in case files and logs.
	Name = "ortcustomops"
)

// Library returns a fresh library value; callers may not share mutations.
func Library() *operators.Library {
	return &operators.Library{
		Name:    Name,
		Domain:  Domain,
		Version: Version,
		Ops: map[string]operators.OpHandler{
			"StringRegexReplace":     handleRegexReplace,
			"StringJoin":             handleJoin,
			"StringSplit":            handleSplit,
			"StringToHashBucketFast": handleHashBucketFast,
			"StringUpper":            handleUpper,
			"StringLower":            handleLower,
		},
	}
}
