package onnx

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/born-ml/strops/internal/tensor"
)

// ErrSessionClosed is returned by Run after Close.
var ErrSessionClosed = errors.New("session is closed")

// Session is a loaded model with its own operator registry. Run is safe
// for concurrent use; Close releases the model.
type Session struct {
	mu     sync.RWMutex
	model  *Model
	closed bool
}

// NewSession loads a serialized model.
func NewSession(data []byte, opts SessionOptions) (*Session, error) {
	model, err := LoadFromBytes(data, opts)
	if err != nil {
		return nil, err
	}
	return &Session{model: model}, nil
}

// NewSessionFromFile loads a model file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func NewSessionFromFile(path string, opts SessionOptions) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("%w: %w", ErrInvalidModel, err)}
	}
	return NewSession(data, opts)
}

// NewSessionFromProto loads an already parsed model.
func NewSessionFromProto(proto *ModelProto, opts SessionOptions) (*Session, error) {
	model, err := LoadFromProto(proto, opts)
	if err != nil {
		return nil, err
	}
	return &Session{model: model}, nil
}

// InputNames returns the model's input names.
func (s *Session) InputNames() []string {
	return s.model.InputNames()
}

// OutputNames returns the model's output names.
func (s *Session) OutputNames() []string {
	return s.model.OutputNames()
}

// Run executes the model and returns the named outputs in request order.
// Every requested name must be a declared graph output.
func (s *Session) Run(outputNames []string, feed map[string]*tensor.Tensor) ([]*tensor.Tensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	declared := make(map[string]bool, len(s.model.outputNames))
	for _, name := range s.model.outputNames {
		declared[name] = true
	}
	for _, name := range outputNames {
		if !declared[name] {
			return nil, fmt.Errorf("requested output %s is not a model output", name)
		}
	}

	values, err := s.model.execute(feed)
	if err != nil {
		return nil, err
	}
	results := make([]*tensor.Tensor, len(outputNames))
	for i, name := range outputNames {
		t, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("missing output: %s", name)
		}
		results[i] = t
	}
	return results, nil
}

// Close releases the session. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.model = &Model{}
	return nil
}
