package selfprompt

import (
	"errors"
	"fmt"
)

// ErrMalformedSelfPrompt is wrapped by every construction-time rejection.
var ErrMalformedSelfPrompt = errors.New("malformed self-prompt")

// MalformedError names the offending field.
type MalformedError struct {
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedSelfPrompt, e.Field, e.Reason)
}

func (e *MalformedError) Unwrap() error { return ErrMalformedSelfPrompt }

func malformed(field, format string, args ...any) error {
	return &MalformedError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
