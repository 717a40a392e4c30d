package operators

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/born-ml/strops/internal/tensor"
)

// DefaultDomain is the standard ONNX operator domain. "ai.onnx" is an alias.
const DefaultDomain = ""

// NormalizeDomain maps the "ai.onnx" alias to DefaultDomain.
func NormalizeDomain(domain string) string {
	if domain == "ai.onnx" {
		return DefaultDomain
	}
	return domain
}

// OpHandler processes an ONNX node and returns output tensors.
type OpHandler func(ctx *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error)

// Context provides execution context for operators.
type Context struct {
	// Opset is the model's default-domain opset version.
	Opset int64
	// Logger is never nil inside a handler.
	Logger *zap.Logger
}

// Library is a custom-operator library: a named set of handlers for one
// domain. It is the in-process counterpart of a native custom-op shared
// library and is registered on a session explicitly.
type Library struct {
	Name    string
	Domain  string
	Version int64
	Ops     map[string]OpHandler
}

// Registry maps (domain, op_type) to handler functions.
type Registry struct {
	handlers  map[string]map[string]OpHandler
	libraries map[string]*Library
}

// NewRegistry creates a registry holding the standard operators.
func NewRegistry() *Registry {
	r := &Registry{
		handlers:  make(map[string]map[string]OpHandler),
		libraries: make(map[string]*Library),
	}

	r.registerShapeOps()
	r.registerUtilityOps()

	return r
}

// Register adds or replaces a handler.
func (r *Registry) Register(domain, opType string, handler OpHandler) {
	domain = NormalizeDomain(domain)
	ops, ok := r.handlers[domain]
	if !ok {
		ops = make(map[string]OpHandler)
		r.handlers[domain] = ops
	}
	ops[opType] = handler
}

// RegisterLibrary adds every handler of lib under lib.Domain. A domain can
// be served by one library only.
func (r *Registry) RegisterLibrary(lib *Library) error {
	if lib == nil {
		return fmt.Errorf("nil custom op library")
	}
	domain := NormalizeDomain(lib.Domain)
	if domain == DefaultDomain {
		return fmt.Errorf("library %s: cannot register into the default domain", lib.Name)
	}
	if prev, ok := r.libraries[domain]; ok {
		return fmt.Errorf("library %s: domain %s already provided by %s", lib.Name, domain, prev.Name)
	}
	r.libraries[domain] = lib
	for opType, h := range lib.Ops {
		r.Register(domain, opType, h)
	}
	return nil
}

// Library returns the library registered for domain, if any.
func (r *Registry) Library(domain string) (*Library, bool) {
	lib, ok := r.libraries[NormalizeDomain(domain)]
	return lib, ok
}

// Get returns the handler for an operator.
func (r *Registry) Get(domain, opType string) (OpHandler, bool) {
	h, ok := r.handlers[NormalizeDomain(domain)][opType]
	return h, ok
}

// HasDomain reports whether any handler is registered for domain.
func (r *Registry) HasDomain(domain string) bool {
	_, ok := r.handlers[NormalizeDomain(domain)]
	return ok
}

// Execute runs an operator with the given inputs.
func (r *Registry) Execute(ctx *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	handler, ok := r.Get(node.Domain, node.OpType)
	if !ok {
		return nil, fmt.Errorf("unsupported operator: %s", QualifiedName(node.Domain, node.OpType))
	}
	return handler(ctx, node, inputs)
}

// Domains returns the registered domains in sorted order.
func (r *Registry) Domains() []string {
	domains := make([]string, 0, len(r.handlers))
	for d := range r.handlers {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// SupportedOps returns the sorted operator types registered for domain.
func (r *Registry) SupportedOps(domain string) []string {
	ops := make([]string, 0, len(r.handlers[NormalizeDomain(domain)]))
	for op := range r.handlers[NormalizeDomain(domain)] {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// QualifiedName formats an operator as "domain::op", or just "op" in the
// default domain.
func QualifiedName(domain, opType string) string {
	if NormalizeDomain(domain) == DefaultDomain {
		return opType
	}
	return domain + "::" + opType
}
