package harness

import (
	"errors"
	"fmt"

	"github.com/born-ml/strops/internal/tensor"
)

// Stage failures. errors.Is matches an *Error against the sentinel of its
// stage.
var (
	ErrInvalidCase = errors.New("invalid case")
	ErrConversion  = errors.New("conversion failed")
	ErrRuntimeLoad = errors.New("runtime load failed")
	ErrExecution   = errors.New("execution failed")
	ErrMismatch    = errors.New("outputs differ")
)

// Stage names a step of the pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageBuild   Stage = "build"
	StageSource  Stage = "source"
	StageConvert Stage = "convert"
	StageLoad    Stage = "load"
	StageTarget  Stage = "target"
	StageCompare Stage = "compare"
)

func (s Stage) sentinel() error {
	switch s {
	case StageBuild:
		return ErrInvalidCase
	case StageSource, StageTarget:
		return ErrExecution
	case StageConvert:
		return ErrConversion
	case StageLoad:
		return ErrRuntimeLoad
	case StageCompare:
		return ErrMismatch
	}
	return nil
}

// Error reports the stage a case failed at. For mismatches Port, Source,
// Target and Diff describe the first diverging output.
type Error struct {
	Case   string
	Stage  Stage
	Port   string
	Source *tensor.Tensor
	Target *tensor.Tensor
	Diff   string
	Err    error
}

func (e *Error) Error() string {
	if e.Stage == StageCompare {
		msg := fmt.Sprintf("case %s: port %s: %v: source %v, target %v", e.Case, e.Port, e.Err, e.Source, e.Target)
		if e.Diff != "" {
			msg += "\n" + e.Diff
		}
		return msg
	}
	return fmt.Sprintf("case %s: %s: %v", e.Case, e.Stage, e.Err)
}

// Is reports whether target is the sentinel for e's stage.
func (e *Error) Is(target error) bool {
	s := e.Stage.sentinel()
	return s != nil && target == s
}

func (e *Error) Unwrap() error {
	return e.Err
}
