package shared

import (
	"errors"
	"strings"
)

// Warning is a non-fatal validation issue. The operation that produced it
// pauses and only proceeds when the operator explicitly bypasses the list.
type Warning struct {
	Code    string
	Message string
}

// Warnings collects the issues of one validation pass.
type Warnings []Warning

// Add appends a warning.
func (w *Warnings) Add(code, message string) {
	*w = append(*w, Warning{Code: code, Message: message})
}

// Empty reports whether no warnings were raised.
func (w Warnings) Empty() bool { return len(w) == 0 }

// Messages returns the warning texts.
func (w Warnings) Messages() []string {
	out := make([]string, len(w))
	for i, warning := range w {
		out[i] = warning.Message
	}
	return out
}

// ErrWarningsNotBypassed signals that warnings exist and the caller did not
// confirm them.
var ErrWarningsNotBypassed = errors.New("validation warnings require explicit confirmation")

// WarningsError wraps a warning list into the error returned to callers that
// did not set the bypass flag.
type WarningsError struct {
	Warnings Warnings
}

func (e *WarningsError) Error() string {
	return "warnings: " + strings.Join(e.Warnings.Messages(), "; ")
}

func (e *WarningsError) Unwrap() error { return ErrWarningsNotBypassed }
