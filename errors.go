package zxcore

import "github.com/pkg/errors"

// ErrKind classifies a core-level failure so a caller (CLI, debugger,
// front end) can react without parsing error text.
type ErrKind int

const (
	ErrFileNotFound ErrKind = iota
	ErrUnreadable
	ErrMalformed
	ErrOutOfMemory
	ErrUnsupported
)

func (k ErrKind) String() string {
	switch k {
	case ErrFileNotFound:
		return "file not found"
	case ErrUnreadable:
		return "file unreadable"
	case ErrMalformed:
		return "malformed input"
	case ErrOutOfMemory:
		return "out of memory"
	case ErrUnsupported:
		return "unsupported operation"
	default:
		return "unknown error"
	}
}

// CoreError wraps an ErrKind with the context (file name, format, or
// detail) a caller needs to surface a useful message, while still
// supporting errors.Wrap/errors.Cause from the underlying cause.
type CoreError struct {
	Kind    ErrKind
	Context string
	cause   error
}

func (e *CoreError) Error() string {
	if e.Context == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Context
}

func (e *CoreError) Cause() error {
	return e.cause
}

func (e *CoreError) Unwrap() error {
	return e.cause
}

// NewCoreError builds a CoreError of kind with the given context string.
func NewCoreError(kind ErrKind, context string) error {
	return &CoreError{Kind: kind, Context: context}
}

// WrapCoreError wraps err as a CoreError of kind, preserving err as the
// cause for errors.Cause/errors.Unwrap, and context as the message.
func WrapCoreError(err error, kind ErrKind, context string) error {
	if err == nil {
		return nil
	}
	return &CoreError{Kind: kind, Context: context, cause: errors.WithStack(err)}
}
