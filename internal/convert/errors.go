package convert

import (
	"errors"
	"fmt"
)

// Conversion failures. Error wraps one of these.
var (
	ErrUnsupported   = errors.New("unsupported")
	ErrMissingOpset  = errors.New("required opset not imported")
	ErrInvalidGraph  = errors.New("invalid graph")
	ErrInvalidOption = errors.New("invalid option")
)

// Error reports a conversion failure, naming the source node when there is one.
type Error struct {
	Node string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("convert: %v", e.Err)
	}
	return fmt.Sprintf("convert node %s (%s): %v", e.Node, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
