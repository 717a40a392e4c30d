// Package onnx provides the ONNX runtime used as the conversion target.
//
// This package loads serialized ONNX models and evaluates them on a
// per-session operator registry. The default domain covers the shape and
// utility operators a converted string graph needs; custom domains are
// served by libraries registered on the session options.
//
// # Supported Features
//
//   - ONNX format parsing and deterministic serialization (protobuf wire format)
//   - Opset versions 8-18 for the default domain
//   - String, integer, bool and float tensors
//   - Custom-op libraries per domain, such as ai.onnx.contrib
//   - Named input/output support
//
// # Example Usage
//
//	import "github.com/born-ml/strops/onnx"
//
//	opts := onnx.DefaultSessionOptions()
//	opts.RegisterCustomOpsLibrary(onnx.ContribLibrary())
//
//	sess, err := onnx.NewSessionFromFile("model.onnx", opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	outputs, err := sess.Run([]string{"output:0"}, map[string]*tensor.Tensor{
//	    "input:0": tensor.Vector("Hello world!"),
//	})
//
// # Supported Operators
//
// Default domain:
//   - Shape: Reshape, Shape, Size, Expand, Squeeze, Unsqueeze, Concat
//   - Other: Constant, Identity
//
// ai.onnx.contrib:
//   - StringRegexReplace, StringJoin, StringSplit
//   - StringToHashBucketFast, StringUpper, StringLower
//
// Use [ListSupportedOps] to get the complete list of supported operators.
package onnx

import (
	"github.com/born-ml/strops/internal/contrib"
	internalonnx "github.com/born-ml/strops/internal/onnx"
	"github.com/born-ml/strops/internal/onnx/operators"
)

// SessionOptions configures model loading behavior.
type SessionOptions = internalonnx.SessionOptions

// Library groups the operators of one custom domain.
type Library = operators.Library

// Load failures, matched with errors.Is.
var (
	ErrInvalidModel    = internalonnx.ErrInvalidModel
	ErrDomainNotImport = internalonnx.ErrDomainNotImport
	ErrNoLibrary       = internalonnx.ErrNoLibrary
	ErrUnsupportedOp   = internalonnx.ErrUnsupportedOp
	ErrSessionClosed   = internalonnx.ErrSessionClosed
)

// DefaultSessionOptions returns the default options for loading models.
//
// Default configuration:
//   - Strict mode: enabled (fails on unsupported operators)
//   - No custom-op libraries
func DefaultSessionOptions() SessionOptions {
	return internalonnx.DefaultSessionOptions()
}

// ContribLibrary returns the ai.onnx.contrib string operators.
func ContribLibrary() *Library {
	return contrib.Library()
}

// NewSession loads a model from raw bytes.
//
// This is useful when the model is produced in memory, for example by the
// converter, and never written to disk.
//
// Example:
//
//	modelBytes, _ := os.ReadFile("model.onnx")
//	sess, err := onnx.NewSession(modelBytes, opts)
func NewSession(data []byte, opts SessionOptions) (Runtime, error) {
	sess, err := internalonnx.NewSession(data, opts)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// NewSessionFromFile loads a model from a file path.
//
// The function parses the model, checks every node's domain against the
// model's opset imports and the registered libraries, and orders the graph
// for execution.
func NewSessionFromFile(path string, opts SessionOptions) (Runtime, error) {
	sess, err := internalonnx.NewSessionFromFile(path, opts)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ModelInfo contains metadata about an ONNX model without loading it.
//
// Use [GetModelInfo] to quickly inspect a model file.
type ModelInfo = internalonnx.ModelInfo

// GetModelInfo extracts metadata from an ONNX file.
//
// Example:
//
//	info, err := onnx.GetModelInfo("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Producer: %s\n", info.ProducerName)
//	fmt.Printf("Opsets: %v\n", info.Opsets)
//	fmt.Printf("Operators: %v\n", info.Ops)
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}

// ListSupportedOps returns the supported operators per domain, with the
// default domain keyed by "".
//
// Example:
//
//	ops, _ := onnx.ListSupportedOps(onnx.ContribLibrary())
//	for _, op := range ops["ai.onnx.contrib"] {
//	    fmt.Println(op)
//	}
func ListSupportedOps(libs ...*Library) (map[string][]string, error) {
	return internalonnx.ListSupportedOps(libs...)
}
