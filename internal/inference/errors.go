package inference

import (
	"errors"
	"fmt"
)

var ErrIterationLimit = errors.New("iteration limit reached")

// ErrDuplicateRequest reports a request id that is still generating.
var ErrDuplicateRequest = errors.New("request id already in flight")

// BackendError wraps a failure of the model runtime. It is terminal for the
// request and never retried.
type BackendError struct {
	Phase string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Phase, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// guard runs fn and converts a panic into an error.
func guard(phase string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in %s: %v", phase, rec)
		}
	}()
	return fn()
}
