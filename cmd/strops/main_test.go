package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCases = "../../internal/casefile/testdata/string_ops.yaml"

// execute runs the CLI with args and returns stdout and the exit code.
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	opts := &rootOptions{}
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	opts.sync()
	if err != nil {
		return out.String() + err.Error(), exitCode(err)
	}
	return out.String(), 0
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand(&rootOptions{})
	for _, name := range []string{"run", "convert", "inspect", "ops", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestRunSample(t *testing.T) {
	out, code := execute(t, "run", sampleCases)
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, "PASS regex_replace_first")
	assert.Contains(t, out, "PASS hash_bucket_fast")
	assert.Contains(t, out, "10 passed, 0 failed, 10 total")
	newGolden(t).Assert(t, "run_sample", []byte(out))
}

func TestRunSelectedCases(t *testing.T) {
	out, code := execute(t, "run", sampleCases, "--case", "join_three", "--case", "split_flat_values", "-v")
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
	assert.NotContains(t, out, "regex_replace_first")

	out, code = execute(t, "run", sampleCases, "--case", "nope")
	assert.Equal(t, exitCommandError, code, out)
}

func TestRunParallelKeepsArtifacts(t *testing.T) {
	dir := t.TempDir()
	out, code := execute(t, "run", sampleCases, "--parallel", "4", "--artifacts", dir, "--keep")
	assert.Equal(t, 0, code, out)

	models, err := filepath.Glob(filepath.Join(dir, "*.onnx"))
	require.NoError(t, err)
	assert.Len(t, models, 10)
}

func TestRunReportsFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cases:
  - name: multi_char_separator
    inputs: [{name: input, dtype: string, values: ["a, b"]}]
    nodes: [{op: split, name: tokens, inputs: [input], attrs: {sep: ", "}}]
    outputs: [tokens]
  - name: upper
    inputs: [{name: input, dtype: string, values: [a]}]
    nodes: [{op: upper, name: up, inputs: [input]}]
    outputs: [up]
`), 0o600))

	out, code := execute(t, "run", path)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, out, "FAIL multi_char_separator")
	assert.Contains(t, out, "port StringSplitV2:1")
	assert.Contains(t, out, "PASS upper")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestRunCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"run", filepath.Join(t.TempDir(), "none.yaml")}},
		{"bad parallel", []string{"run", sampleCases, "--parallel", "0"}},
		{"bad inspect path", []string{"inspect", filepath.Join(t.TempDir(), "none.onnx")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := execute(t, tt.args...)
			assert.Equal(t, exitCommandError, code, out)
		})
	}
}

func TestConvertThenInspect(t *testing.T) {
	model := filepath.Join(t.TempDir(), "join.onnx")
	out, code := execute(t, "convert", sampleCases, "--case", "join_three", "-o", model, "--opset", "12")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "wrote "+model)

	out, code = execute(t, "inspect", model)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Producer:   strops")
	assert.Contains(t, out, "ai.onnx=12")
	assert.Contains(t, out, "ai.onnx.contrib=1")
	assert.Contains(t, out, "Inputs:     input:0, input1:0, input2:0")
	assert.Contains(t, out, "Outputs:    output:0")
	assert.Contains(t, out, "ai.onnx.contrib::StringJoin")
}

func TestConvertRequiresFlags(t *testing.T) {
	_, code := execute(t, "convert", sampleCases)
	assert.NotEqual(t, 0, code)
}

func TestOps(t *testing.T) {
	out, code := execute(t, "ops")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "StringSplitV2")
	assert.Contains(t, out, "runtime ai.onnx.contrib: StringJoin, StringLower")
	assert.Contains(t, out, "runtime ai.onnx: ")
	newGolden(t).Assert(t, "ops", []byte(out))
}

func TestVersion(t *testing.T) {
	out, code := execute(t, "version")
	require.Equal(t, 0, code)
	assert.Equal(t, "strops "+version+"\n", out)
}
