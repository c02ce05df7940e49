package models

import "fmt"

// ErrorKind is a stable error code attached to every build error.
type ErrorKind string

const (
	ErrConfig    ErrorKind = "config"
	ErrDiscovery ErrorKind = "discovery"
	ErrRender    ErrorKind = "render"
	ErrAsset     ErrorKind = "asset"
	ErrCache     ErrorKind = "cache"
	ErrInterrupt ErrorKind = "interrupt"
)

// BuildError carries a kind, a user-visible remediation hint, and the
// wrapped cause.
type BuildError struct {
	Kind       ErrorKind
	Item       string // page or asset path, when per-item
	Message    string
	Suggestion string
	Err        error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Item != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Item, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// NewError builds a BuildError.
func NewError(kind ErrorKind, item, message, suggestion string, err error) *BuildError {
	return &BuildError{Kind: kind, Item: item, Message: message, Suggestion: suggestion, Err: err}
}
