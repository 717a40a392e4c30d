package onnx

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/born-ml/strops/internal/onnx/operators"
)

// Load failures. LoadError wraps one of these.
var (
	ErrInvalidModel    = errors.New("invalid model")
	ErrDomainNotImport = errors.New("domain not imported by model")
	ErrNoLibrary       = errors.New("no custom op library registered for domain")
	ErrUnsupportedOp   = errors.New("unsupported operator")
)

// LoadError reports why a model could not be prepared for execution.
type LoadError struct {
	Node   string // Offending node name, if any
	Domain string
	OpType string
	Err    error
}

func (e *LoadError) Error() string {
	if e.OpType == "" {
		return fmt.Sprintf("load model: %v", e.Err)
	}
	return fmt.Sprintf("load model: node %s (%s): %v", e.Node, operators.QualifiedName(e.Domain, e.OpType), e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SessionOptions configures model loading behavior.
type SessionOptions struct {
	// CustomOpLibraries are registered on the session's own registry.
	// Nothing is registered globally.
	CustomOpLibraries []*operators.Library

	// StrictMode fails the load on operators with no handler. When false
	// they are logged and fail only if executed.
	StrictMode bool

	// Logger receives load and execution events. Nil disables logging.
	Logger *zap.Logger
}

// DefaultSessionOptions returns default loading options.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		StrictMode: true,
	}
}

// RegisterCustomOpsLibrary adds lib to the libraries the session loads.
func (o *SessionOptions) RegisterCustomOpsLibrary(lib *operators.Library) {
	o.CustomOpLibraries = append(o.CustomOpLibraries, lib)
}

// LoadFromProto prepares a parsed model for execution.
func LoadFromProto(proto *ModelProto, opt SessionOptions) (*Model, error) {
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := operators.NewRegistry()
	for _, lib := range opt.CustomOpLibraries {
		if err := registry.RegisterLibrary(lib); err != nil {
			return nil, &LoadError{Err: fmt.Errorf("%w: %w", ErrInvalidModel, err)}
		}
		logger.Debug("registered custom op library",
			zap.String("library", lib.Name),
			zap.String("domain", lib.Domain),
			zap.Int64("version", lib.Version),
			zap.Int("ops", len(lib.Ops)))
	}

	if proto == nil || proto.Graph == nil {
		return nil, &LoadError{Err: fmt.Errorf("%w: model has no graph", ErrInvalidModel)}
	}
	if err := validateOperators(proto, registry, opt.StrictMode, logger); err != nil {
		return nil, err
	}

	model := &Model{
		proto:    proto,
		registry: registry,
		logger:   logger,
	}
	if err := model.compile(); err != nil {
		return nil, &LoadError{Err: fmt.Errorf("%w: %w", ErrInvalidModel, err)}
	}
	return model, nil
}

// LoadFromBytes parses and prepares a model.
func LoadFromBytes(data []byte, opt SessionOptions) (*Model, error) {
	proto, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("%w: %w", ErrInvalidModel, err)}
	}
	return LoadFromProto(proto, opt)
}

// validateOperators checks each node against the model's opset imports and
// the registry: a node's domain must be imported, a custom domain needs a
// registered library, and in strict mode every op needs a handler.
func validateOperators(proto *ModelProto, registry *operators.Registry, strict bool, logger *zap.Logger) error {
	if proto.OpsetVersion("") == 0 {
		return &LoadError{Err: fmt.Errorf("%w: model does not import the default domain", ErrInvalidModel)}
	}

	for i := range proto.Graph.Nodes {
		node := &proto.Graph.Nodes[i]
		domain := operators.NormalizeDomain(node.Domain)
		fail := func(err error) error {
			return &LoadError{Node: node.Name, Domain: domain, OpType: node.OpType, Err: err}
		}

		if proto.OpsetVersion(domain) == 0 {
			return fail(fmt.Errorf("%w: %q", ErrDomainNotImport, domain))
		}
		if domain != operators.DefaultDomain {
			lib, ok := registry.Library(domain)
			if !ok {
				return fail(fmt.Errorf("%w: %q", ErrNoLibrary, domain))
			}
			if v := proto.OpsetVersion(domain); v > lib.Version {
				return fail(fmt.Errorf("%w: model imports %s version %d, library %s provides %d",
					ErrNoLibrary, domain, v, lib.Name, lib.Version))
			}
		}
		if _, ok := registry.Get(domain, node.OpType); !ok {
			if strict {
				return fail(ErrUnsupportedOp)
			}
			logger.Warn("operator has no handler",
				zap.String("node", node.Name),
				zap.String("op", operators.QualifiedName(domain, node.OpType)))
		}
	}
	return nil
}

// ModelInfo contains basic information about an ONNX model without fully loading it.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	Opsets          []OperatorSetID
	InputNames      []string
	OutputNames     []string
	Ops             []string // Distinct qualified op types, sorted
	NodeCount       int
	WeightCount     int
}

// GetModelInfo extracts basic info from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Info(proto), nil
}

// Info summarizes a parsed model.
func Info(proto *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		OpsetVersion:    proto.OpsetVersion(""),
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
		Opsets:          append([]OperatorSetID(nil), proto.OpsetImport...),
	}

	if proto.Graph != nil {
		// Get inputs (excluding initializers)
		initNames := make(map[string]bool)
		for i := range proto.Graph.Initializers {
			initNames[proto.Graph.Initializers[i].Name] = true
		}
		for i := range proto.Graph.Inputs {
			if !initNames[proto.Graph.Inputs[i].Name] {
				info.InputNames = append(info.InputNames, proto.Graph.Inputs[i].Name)
			}
		}

		for _, output := range proto.Graph.Outputs {
			info.OutputNames = append(info.OutputNames, output.Name)
		}

		seen := make(map[string]bool)
		for i := range proto.Graph.Nodes {
			op := operators.QualifiedName(proto.Graph.Nodes[i].Domain, proto.Graph.Nodes[i].OpType)
			if !seen[op] {
				seen[op] = true
				info.Ops = append(info.Ops, op)
			}
		}
		sort.Strings(info.Ops)

		info.NodeCount = len(proto.Graph.Nodes)
		info.WeightCount = len(proto.Graph.Initializers)
	}
	return info
}

// ListSupportedOps returns the supported operators per domain, including
// those of the given libraries.
func ListSupportedOps(libs ...*operators.Library) (map[string][]string, error) {
	registry := operators.NewRegistry()
	for _, lib := range libs {
		if err := registry.RegisterLibrary(lib); err != nil {
			return nil, err
		}
	}
	ops := make(map[string][]string)
	for _, domain := range registry.Domains() {
		ops[domain] = registry.SupportedOps(domain)
	}
	return ops, nil
}
