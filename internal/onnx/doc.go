// Package onnx provides the ONNX interchange format and an in-process
// runtime for it.
//
// ONNX (Open Neural Network Exchange) models are protobuf messages. This
// package hand-models the subset of onnx.proto the string-op pipeline needs
// and encodes it with google.golang.org/protobuf/encoding/protowire.
//
// Key components:
//   - ModelProto: Top-level ONNX model structure with metadata and graph
//   - GraphProto: Computation graph with nodes, inputs, outputs, and initializers
//   - NodeProto: Single operation in the graph (e.g., Unsqueeze, StringJoin)
//   - TensorProto: Constant tensor; strings live in string_data, numbers in raw_data
//   - ValueInfoProto: Input/output tensor type information
//   - Session: a loaded model bound to its own operator registry
//
// Custom-domain operators come from operators.Library values registered on
// SessionOptions. A model that uses a domain it does not import, or one no
// library serves, fails to load with a *LoadError.
//
// Example usage:
//
//	opts := onnx.DefaultSessionOptions()
//	opts.RegisterCustomOpsLibrary(contrib.Library())
//	sess, err := onnx.NewSessionFromFile("model.onnx", opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//	outs, err := sess.Run([]string{"output:0"}, map[string]*tensor.Tensor{"input:0": in})
package onnx
