// Package harness checks that a string-op graph computes the same values
// before and after conversion to ONNX.
//
// RunCase builds the graph from a Case, evaluates it natively, converts it,
// loads the model on the ONNX runtime with the configured custom-op
// libraries, evaluates it again with the same feed and compares every
// requested port. Each failure is reported as an *Error whose stage is
// matched by errors.Is against ErrInvalidCase, ErrConversion,
// ErrRuntimeLoad, ErrExecution or ErrMismatch.
package harness

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/born-ml/strops/internal/contrib"
	"github.com/born-ml/strops/internal/convert"
	"github.com/born-ml/strops/internal/graph"
	"github.com/born-ml/strops/internal/onnx"
	"github.com/born-ml/strops/internal/onnx/operators"
	"github.com/born-ml/strops/internal/tensor"
)

// BuildFunc adds the ops under test. It receives one placeholder per feed
// binding, in feed order, and returns the outputs it produced.
type BuildFunc func(inputs ...graph.Output) []graph.Output

// Binding feeds Value to the placeholder called Name.
type Binding struct {
	Name  string
	Value *tensor.Tensor
}

// Feed is an ordered list of bindings.
type Feed []Binding

// Case is one equivalence check.
type Case struct {
	Name  string
	Build BuildFunc
	Feed  Feed
	// Outputs are the wire ids ("node:port") compared between the runs.
	Outputs []string
}

// Options configures RunCase.
type Options struct {
	// Opset is the default-domain opset the model targets.
	Opset int64
	// ExtraOpset is imported alongside the default domain.
	ExtraOpset []onnx.OperatorSetID
	// Libraries are registered on the runtime session.
	Libraries []*operators.Library
	// Tolerance bounds float differences.
	Tolerance Tolerance
	// ArtifactDir, if set, receives the model file the runtime loads.
	ArtifactDir string
	// KeepArtifacts leaves the file in ArtifactDir after the case.
	KeepArtifacts bool
	// CheckIdempotent converts twice and requires identical bytes.
	CheckIdempotent bool
	// Logger receives stage events. Nil disables logging.
	Logger *zap.Logger
}

// DefaultOptions targets opset 13 with the contrib domain imported and its
// library registered.
func DefaultOptions() Options {
	return Options{
		Opset:           convert.DefaultOpset,
		ExtraOpset:      []onnx.OperatorSetID{{Domain: contrib.Domain, Version: contrib.Version}},
		Libraries:       []*operators.Library{contrib.Library()},
		Tolerance:       DefaultTolerance(),
		CheckIdempotent: true,
	}
}

// PortResult holds both runs' values for one compared port.
type PortResult struct {
	Port   string
	Source *tensor.Tensor
	Target *tensor.Tensor
}

// Result describes a case that reached the comparison stage.
type Result struct {
	Case  string
	Ports []PortResult
	// Artifact is the serialized model.
	Artifact []byte
	// Checksum is the hex SHA-256 of Artifact.
	Checksum string
	// ArtifactPath is set when the model was written to ArtifactDir and kept.
	ArtifactPath string
}

// Port returns the result for wire id port.
func (r *Result) Port(port string) (PortResult, bool) {
	for _, p := range r.Ports {
		if p.Port == port {
			return p, true
		}
	}
	return PortResult{}, false
}

type runner struct {
	c      Case
	opts   Options
	logger *zap.Logger
	// ports are c.Outputs in canonical "name:port" form.
	ports []string
}

func newRunner(c Case, opts Options) *runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &runner{c: c, opts: opts, logger: logger.With(zap.String("case", c.Name))}
}

// RunCase runs c through the pipeline. On a mismatch the Result is returned
// along with the error so both runs' values can be inspected.
func RunCase(c Case, opts Options) (*Result, error) {
	return newRunner(c, opts).run()
}

// Convert builds c and returns the serialized model without running it.
func Convert(c Case, opts Options) ([]byte, error) {
	r := newRunner(c, opts)
	g, inputs, err := r.build()
	if err != nil {
		return nil, r.fail(StageBuild, err)
	}
	data, err := r.convert(g, inputs)
	if err != nil {
		return nil, r.fail(StageConvert, err)
	}
	return data, nil
}

func (r *runner) fail(stage Stage, err error) *Error {
	r.logger.Warn("case failed", zap.String("stage", string(stage)), zap.Error(err))
	return &Error{Case: r.c.Name, Stage: stage, Err: err}
}

func (r *runner) stage(stage Stage, fields ...zap.Field) {
	r.logger.Debug("stage", append([]zap.Field{zap.String("stage", string(stage))}, fields...)...)
}

func (r *runner) run() (*Result, error) {
	r.stage(StageBuild)
	g, inputs, err := r.build()
	if err != nil {
		return nil, r.fail(StageBuild, err)
	}
	feed := make(map[string]*tensor.Tensor, len(r.c.Feed))
	for i, b := range r.c.Feed {
		feed[inputs[i]] = b.Value
	}

	r.stage(StageSource)
	sess, err := graph.NewSession(g, r.logger)
	if err != nil {
		return nil, r.fail(StageSource, err)
	}
	want, err := sess.Run(feed, r.ports)
	if err != nil {
		return nil, r.fail(StageSource, err)
	}

	r.stage(StageConvert, zap.Int64("opset", r.opts.Opset))
	artifact, err := r.convert(g, inputs)
	if err != nil {
		return nil, r.fail(StageConvert, err)
	}
	sum := sha256.Sum256(artifact)
	res := &Result{Case: r.c.Name, Artifact: artifact, Checksum: hex.EncodeToString(sum[:])}

	r.stage(StageLoad, zap.String("checksum", res.Checksum))
	got, err := r.target(res, feed)
	if err != nil {
		return nil, err
	}

	r.stage(StageCompare)
	for i, port := range r.ports {
		res.Ports = append(res.Ports, PortResult{Port: port, Source: want[i], Target: got[i]})
	}
	for _, p := range res.Ports {
		diff, err := Compare(p.Source, p.Target, r.opts.Tolerance)
		if err == nil {
			continue
		}
		r.logger.Warn("case failed",
			zap.String("stage", string(StageCompare)),
			zap.String("port", p.Port),
			zap.Error(err))
		return res, &Error{
			Case:   r.c.Name,
			Stage:  StageCompare,
			Port:   p.Port,
			Source: p.Source,
			Target: p.Target,
			Diff:   diff,
			Err:    err,
		}
	}
	return res, nil
}

// build declares the placeholders, runs Build and returns the graph along
// with the placeholders' wire ids in feed order.
func (r *runner) build() (*graph.Graph, []string, error) {
	c := r.c
	if c.Build == nil {
		return nil, nil, fmt.Errorf("%w: no build function", ErrInvalidCase)
	}
	if len(c.Outputs) == 0 {
		return nil, nil, fmt.Errorf("%w: no output ports", ErrInvalidCase)
	}
	if err := r.opts.Tolerance.validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidCase, err)
	}

	g := graph.New(c.Name)
	placeholders := make([]graph.Output, len(c.Feed))
	ids := make([]string, len(c.Feed))
	for i, b := range c.Feed {
		if b.Name == "" || b.Value == nil {
			return nil, nil, fmt.Errorf("%w: binding %d needs a name and a value", ErrInvalidCase, i)
		}
		placeholders[i] = g.Placeholder(b.Name, b.Value.DType(), b.Value.Shape())
		if err := g.Err(); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidCase, err)
		}
		ids[i] = placeholders[i].WireID()
	}

	outs := c.Build(placeholders...)
	if err := g.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidCase, err)
	}
	if len(outs) == 0 {
		return nil, nil, fmt.Errorf("%w: build returned no outputs", ErrInvalidCase)
	}
	declared := make(map[string]bool, len(c.Outputs))
	for _, id := range c.Outputs {
		o, err := g.Lookup(id)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: output port %s: %w", ErrInvalidCase, id, err)
		}
		if declared[o.WireID()] {
			return nil, nil, fmt.Errorf("%w: output port %s declared twice", ErrInvalidCase, id)
		}
		declared[o.WireID()] = true
		r.ports = append(r.ports, o.WireID())
	}
	for i, o := range outs {
		if !o.Valid() {
			return nil, nil, fmt.Errorf("%w: build returned no tensor at output %d", ErrInvalidCase, i)
		}
		if o.Graph() != g {
			return nil, nil, fmt.Errorf("%w: build returned an output of another graph", ErrInvalidCase)
		}
		if !declared[o.WireID()] {
			return nil, nil, fmt.Errorf("%w: output %s is not a declared port", ErrInvalidCase, o.WireID())
		}
	}
	return g, ids, nil
}

func (r *runner) convert(g *graph.Graph, inputs []string) ([]byte, error) {
	opts := convert.Options{
		Opset:        r.opts.Opset,
		ExtraOpset:   r.opts.ExtraOpset,
		InputNames:   inputs,
		OutputNames:  r.ports,
		ProducerName: "strops",
		Logger:       r.logger,
	}
	model, err := convert.Convert(g, opts)
	if err != nil {
		return nil, err
	}
	data := onnx.Marshal(model)
	if !r.opts.CheckIdempotent {
		return data, nil
	}
	again, err := convert.Convert(g, opts)
	if err != nil {
		return nil, fmt.Errorf("second conversion: %w", err)
	}
	if !bytes.Equal(data, onnx.Marshal(again)) {
		return nil, errors.New("converting the same graph twice produced different models")
	}
	return data, nil
}

// target loads the artifact and runs it. The session and any temporary file
// are released before it returns.
func (r *runner) target(res *Result, feed map[string]*tensor.Tensor) (out []*tensor.Tensor, err error) {
	sessOpts := onnx.DefaultSessionOptions()
	sessOpts.Logger = r.logger
	for _, lib := range r.opts.Libraries {
		sessOpts.RegisterCustomOpsLibrary(lib)
	}

	var sess *onnx.Session
	if r.opts.ArtifactDir == "" {
		sess, err = onnx.NewSession(res.Artifact, sessOpts)
		if err != nil {
			return nil, r.fail(StageLoad, err)
		}
	} else {
		path, werr := r.writeArtifact(res.Artifact)
		if werr != nil {
			return nil, r.fail(StageConvert, werr)
		}
		if r.opts.KeepArtifacts {
			res.ArtifactPath = path
		} else {
			defer func() {
				if rerr := os.Remove(path); rerr != nil {
					r.logger.Warn("removing artifact", zap.String("path", path), zap.Error(rerr))
				}
			}()
		}
		sess, err = onnx.NewSessionFromFile(path, sessOpts)
		if err != nil {
			return nil, r.fail(StageLoad, err)
		}
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = r.fail(StageTarget, cerr)
		}
	}()

	r.stage(StageTarget)
	out, err = sess.Run(r.ports, feed)
	if err != nil {
		return nil, r.fail(StageTarget, err)
	}
	return out, nil
}

func (r *runner) writeArtifact(data []byte) (string, error) {
	if err := os.MkdirAll(r.opts.ArtifactDir, 0o750); err != nil {
		return "", fmt.Errorf("artifact dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.onnx", fileSafe(r.c.Name), uuid.NewString())
	path := filepath.Join(r.opts.ArtifactDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

func fileSafe(name string) string {
	if name == "" {
		return "case"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
