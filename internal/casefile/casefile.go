// Package casefile reads equivalence cases from YAML.
//
// A file holds harness options and a list of cases. Each case declares its
// inputs with concrete values and a short list of nodes wired by name:
//
//	opset: 13
//	libraries: [ortcustomops]
//	cases:
//	  - name: split_flat_values
//	    inputs:
//	      - {name: input, dtype: string, values: ["Test 1 2 3"]}
//	    nodes:
//	      - {op: split, name: tokens, inputs: [input], attrs: {sep: " "}}
//	      - {op: identity, name: output, inputs: [tokens.values]}
//	    outputs: [output]
//
// Node attributes are decoded with mapstructure into typed structs and
// unknown keys are rejected, like unknown YAML fields.
package casefile

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/strops/internal/contrib"
	"github.com/born-ml/strops/internal/harness"
	"github.com/born-ml/strops/internal/onnx"
	"github.com/born-ml/strops/internal/onnx/operators"
	"github.com/born-ml/strops/internal/tensor"
)

// ErrInvalidFile is wrapped by every validation failure.
var ErrInvalidFile = errors.New("invalid case file")

// knownLibraries resolves library names used in files.
var knownLibraries = map[string]func() *operators.Library{
	contrib.Name: contrib.Library,
}

// File is a parsed case file.
type File struct {
	// Opset is the default-domain opset. Zero keeps the harness default.
	Opset int64 `yaml:"opset,omitempty"`

	// ExtraOpset replaces the default custom-domain imports when set.
	ExtraOpset []OpsetSpec `yaml:"extra_opset,omitempty"`

	// Libraries names the custom-op libraries registered on the runtime.
	// Nil keeps the default; an empty list registers none.
	Libraries []string `yaml:"libraries,omitempty"`

	Tolerance *ToleranceSpec `yaml:"tolerance,omitempty"`

	ArtifactDir   string `yaml:"artifact_dir,omitempty"`
	KeepArtifacts bool   `yaml:"keep_artifacts,omitempty"`

	// CheckIdempotent defaults to true.
	CheckIdempotent *bool `yaml:"check_idempotent,omitempty"`

	Cases []CaseSpec `yaml:"cases"`
}

// OpsetSpec is one opset import.
type OpsetSpec struct {
	Domain  string `yaml:"domain"`
	Version int64  `yaml:"version"`
}

// ToleranceSpec overrides the float tolerance.
type ToleranceSpec struct {
	Rel float64 `yaml:"rel"`
	Abs float64 `yaml:"abs"`
}

// CaseSpec declares one case.
type CaseSpec struct {
	Name    string      `yaml:"name"`
	Inputs  []InputSpec `yaml:"inputs"`
	Nodes   []NodeSpec  `yaml:"nodes"`
	Outputs []string    `yaml:"outputs"`
}

// InputSpec declares a placeholder and the value fed to it. A missing
// shape means a vector of the values; an empty one means a scalar.
type InputSpec struct {
	Name   string `yaml:"name"`
	DType  string `yaml:"dtype"`
	Shape  []int  `yaml:"shape"`
	Values []any  `yaml:"values"`
}

// NodeSpec is one op. Inputs name earlier inputs or nodes; a split node
// exposes name.values, name.indices and name.dense_shape, and its bare
// name means name.values.
type NodeSpec struct {
	Op     string         `yaml:"op"`
	Name   string         `yaml:"name"`
	Inputs []string       `yaml:"inputs"`
	Attrs  map[string]any `yaml:"attrs,omitempty"`
}

// Load reads and parses a case file.
//
//nolint:gosec // G304: the path comes from the command line.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a case file, rejecting unknown fields.
func Parse(data []byte) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %w", ErrInvalidFile, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if len(f.Cases) == 0 {
		return fmt.Errorf("%w: no cases", ErrInvalidFile)
	}
	seen := make(map[string]bool, len(f.Cases))
	for i, c := range f.Cases {
		if c.Name == "" {
			return fmt.Errorf("%w: cases[%d]: name is required", ErrInvalidFile, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: case %s defined twice", ErrInvalidFile, c.Name)
		}
		seen[c.Name] = true
		if len(c.Outputs) == 0 {
			return fmt.Errorf("%w: case %s: outputs list is required", ErrInvalidFile, c.Name)
		}
	}
	for _, name := range f.Libraries {
		if _, ok := knownLibraries[name]; !ok {
			return fmt.Errorf("%w: unknown library %q", ErrInvalidFile, name)
		}
	}
	return nil
}

// Options returns the harness options the file describes, starting from
// harness.DefaultOptions.
func (f *File) Options() harness.Options {
	opts := harness.DefaultOptions()
	if f.Opset != 0 {
		opts.Opset = f.Opset
	}
	if f.ExtraOpset != nil {
		opts.ExtraOpset = make([]onnx.OperatorSetID, len(f.ExtraOpset))
		for i, o := range f.ExtraOpset {
			opts.ExtraOpset[i] = onnx.OperatorSetID{Domain: o.Domain, Version: o.Version}
		}
	}
	if f.Libraries != nil {
		opts.Libraries = make([]*operators.Library, 0, len(f.Libraries))
		for _, name := range f.Libraries {
			opts.Libraries = append(opts.Libraries, knownLibraries[name]())
		}
	}
	if f.Tolerance != nil {
		opts.Tolerance = harness.Tolerance{Rel: f.Tolerance.Rel, Abs: f.Tolerance.Abs}
	}
	opts.ArtifactDir = f.ArtifactDir
	opts.KeepArtifacts = f.KeepArtifacts
	if f.CheckIdempotent != nil {
		opts.CheckIdempotent = *f.CheckIdempotent
	}
	return opts
}

// HarnessCases turns every case spec into a harness.Case. Each case's
// nodes are built once here so bad specs fail before anything runs.
func (f *File) HarnessCases() ([]harness.Case, error) {
	cases := make([]harness.Case, 0, len(f.Cases))
	for i := range f.Cases {
		c, err := f.Cases[i].Case()
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// Case returns the case named name.
func (f *File) Case(name string) (harness.Case, error) {
	for i := range f.Cases {
		if f.Cases[i].Name == name {
			return f.Cases[i].Case()
		}
	}
	return harness.Case{}, fmt.Errorf("%w: no case named %q", ErrInvalidFile, name)
}

// Tensor builds the value fed to the input.
func (in InputSpec) Tensor() (*tensor.Tensor, error) {
	dtype, ok := tensor.ParseDataType(in.DType)
	if !ok {
		return nil, fmt.Errorf("input %s: unknown dtype %q", in.Name, in.DType)
	}
	shape := tensor.Shape{len(in.Values)}
	if in.Shape != nil {
		shape = tensor.Shape(in.Shape)
	}

	var (
		t   *tensor.Tensor
		err error
	)
	switch dtype {
	case tensor.String:
		t, err = decodeValues[string](in.Values, shape)
	case tensor.Int64:
		t, err = decodeValues[int64](in.Values, shape)
	case tensor.Int32:
		t, err = decodeValues[int32](in.Values, shape)
	case tensor.Uint8:
		t, err = decodeValues[uint8](in.Values, shape)
	case tensor.Float32:
		t, err = decodeValues[float32](in.Values, shape)
	case tensor.Float64:
		t, err = decodeValues[float64](in.Values, shape)
	case tensor.Bool:
		t, err = decodeValues[bool](in.Values, shape)
	default:
		err = fmt.Errorf("unsupported dtype %s", dtype)
	}
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", in.Name, err)
	}
	return t, nil
}

func decodeValues[T tensor.Elem](raw []any, shape tensor.Shape) (*tensor.Tensor, error) {
	var values []T
	if err := mapstructure.Decode(raw, &values); err != nil {
		return nil, err
	}
	return tensor.FromSlice(values, shape)
}
