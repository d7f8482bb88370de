package responder

import (
	"errors"
	"fmt"
)

// ErrTransient marks a generation failure the caller should answer with a
// fallback notice instead of retrying.
var ErrTransient = errors.New("responder: transient upstream failure")

// TransientError wraps the upstream error behind a transient failure.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("responder: %s unavailable: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransient) match.
func (e *TransientError) Is(target error) bool { return target == ErrTransient }
