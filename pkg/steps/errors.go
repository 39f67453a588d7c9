package steps

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrPipelineMustBeSet    = errors.New("pipeline must be set")
	ErrTransformerMustBeSet = errors.New("transformer must be set")
	ErrInputMustBeSet       = errors.New("input step must be set")
	ErrStepAlreadyExists    = errors.New("step name already used in this pipeline")
	ErrPipelineMismatch     = errors.New("input step belongs to a different pipeline")
	ErrCycle                = errors.New("step graph contains a cycle")
	ErrNotFitted            = errors.New("transformer has not been fitted or loaded")
	ErrAdapterMismatch      = errors.New("adapter cannot produce the inputs the transformer expects")
	ErrUnknownInput         = errors.New("unknown raw input name")
)

// TransformerError wraps an error raised inside user computation. The engine
// never retries or masks it; Unwrap exposes the original error to errors.Is
// and errors.As.
type TransformerError struct {
	Step string
	Err  error
}

func (e *TransformerError) Error() string {
	return fmt.Sprintf("step %s: transformer: %v", e.Step, e.Err)
}

func (e *TransformerError) Unwrap() error { return e.Err }

func transformerError(step string, err error) error {
	if err == nil {
		return nil
	}

	return &TransformerError{Step: step, Err: err}
}
