package onnx

import "github.com/born-ml/strops/tensor"

// Runtime is a loaded model ready for evaluation.
//
// This interface hides the internal implementation and allows for:
//   - Easy mocking in tests
//   - Decoupling from internal package structure
//
// Run is safe for concurrent use. Close releases the model; Run after
// Close fails with ErrSessionClosed.
type Runtime interface {
	// Run evaluates outputNames given feed (input name -> value). Results
	// are returned in the order requested.
	//
	// Every input from InputNames() must be fed, with the declared dtype.
	//
	// Example:
	//
	//	outputs, err := sess.Run([]string{"output:0"}, map[string]*tensor.Tensor{
	//	    "input:0": tensor.Vector("♠♣"),
	//	})
	//	if err != nil {
	//	    log.Fatal(err)
	//	}
	//	buckets := outputs[0].Int64s()
	Run(outputNames []string, feed map[string]*tensor.Tensor) ([]*tensor.Tensor, error)

	// InputNames returns the names of model inputs.
	InputNames() []string

	// OutputNames returns the names of model outputs.
	OutputNames() []string

	// Close releases the session. It is idempotent.
	Close() error
}
