package onnx_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/strops/graph"
	"github.com/born-ml/strops/harness"
	"github.com/born-ml/strops/onnx"
	"github.com/born-ml/strops/tensor"
)

// mockRuntime implements the onnx.Runtime interface for testing.
type mockRuntime struct {
	inputNames  []string
	outputNames []string
	closed      bool
	runFunc     func([]string, map[string]*tensor.Tensor) ([]*tensor.Tensor, error)
}

func (m *mockRuntime) Run(names []string, feed map[string]*tensor.Tensor) ([]*tensor.Tensor, error) {
	if m.closed {
		return nil, onnx.ErrSessionClosed
	}
	if m.runFunc != nil {
		return m.runFunc(names, feed)
	}
	// Default: echo the fed inputs by position.
	out := make([]*tensor.Tensor, len(names))
	for i := range names {
		out[i] = feed[m.inputNames[i]]
	}
	return out, nil
}

func (m *mockRuntime) InputNames() []string {
	return m.inputNames
}

func (m *mockRuntime) OutputNames() []string {
	return m.outputNames
}

func (m *mockRuntime) Close() error {
	m.closed = true
	return nil
}

// TestRuntimeInterface verifies that mockRuntime implements onnx.Runtime.
func TestRuntimeInterface(_ *testing.T) {
	var _ onnx.Runtime = &mockRuntime{}
}

// TestMockRuntime demonstrates using a mock Runtime for testing.
func TestMockRuntime(t *testing.T) {
	mock := &mockRuntime{
		inputNames:  []string{"input:0"},
		outputNames: []string{"output:0"},
	}

	in := tensor.Vector("Hello world!")
	out, err := mock.Run([]string{"output:0"}, map[string]*tensor.Tensor{"input:0": in})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out[0] != in {
		t.Error("Run() should echo the input")
	}

	if err := mock.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := mock.Run([]string{"output:0"}, nil); !errors.Is(err, onnx.ErrSessionClosed) {
		t.Errorf("Run() after Close error = %v, want ErrSessionClosed", err)
	}
}

// convertedModel produces a serialized upper-casing model whose input is
// declared as a string vector of length 2.
func convertedModel(t *testing.T) []byte {
	t.Helper()
	res, err := harness.RunCase(harness.Case{
		Name: "upper",
		Feed: harness.Feed{{Name: "input", Value: tensor.Vector("abc", "xyz")}},
		Build: func(in ...graph.Output) []graph.Output {
			return []graph.Output{graph.Identity(graph.StringUpper(in[0], ""), "output")}
		},
		Outputs: []string{"output:0"},
	}, harness.DefaultOptions())
	if err != nil {
		t.Fatalf("RunCase() error = %v", err)
	}
	return res.Artifact
}

func TestSessionFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upper.onnx")
	if err := os.WriteFile(path, convertedModel(t), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := onnx.DefaultSessionOptions()
	opts.RegisterCustomOpsLibrary(onnx.ContribLibrary())
	sess, err := onnx.NewSessionFromFile(path, opts)
	if err != nil {
		t.Fatalf("NewSessionFromFile() error = %v", err)
	}
	defer sess.Close()

	out, err := sess.Run([]string{"output:0"}, map[string]*tensor.Tensor{"input:0": tensor.Vector("Hello", "world")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := out[0].Strings(); len(got) != 2 || got[0] != "HELLO" || got[1] != "WORLD" {
		t.Errorf("Run() = %v, want [HELLO WORLD]", got)
	}

	if _, err := sess.Run([]string{"output:0"}, map[string]*tensor.Tensor{"input:0": tensor.Vector("Hello")}); err == nil {
		t.Error("Run() with a [1] feed for a [2] input should fail")
	}

	info, err := onnx.GetModelInfo(path)
	if err != nil {
		t.Fatalf("GetModelInfo() error = %v", err)
	}
	if len(info.InputNames) != 1 || info.InputNames[0] != "input:0" {
		t.Errorf("InputNames = %v, want [input:0]", info.InputNames)
	}
}

// TestSessionWithoutLibrary checks the load fails with a nil Runtime.
func TestSessionWithoutLibrary(t *testing.T) {
	sess, err := onnx.NewSession(convertedModel(t), onnx.DefaultSessionOptions())
	if !errors.Is(err, onnx.ErrNoLibrary) {
		t.Fatalf("NewSession() error = %v, want ErrNoLibrary", err)
	}
	if sess != nil {
		t.Error("NewSession() should return a nil Runtime on error")
	}
}

func TestListSupportedOps(t *testing.T) {
	ops, err := onnx.ListSupportedOps(onnx.ContribLibrary())
	if err != nil {
		t.Fatalf("ListSupportedOps() error = %v", err)
	}
	if len(ops[""]) == 0 {
		t.Error("default domain has no operators")
	}
	if len(ops["ai.onnx.contrib"]) != 6 {
		t.Errorf("contrib ops = %v, want 6", ops["ai.onnx.contrib"])
	}
}
