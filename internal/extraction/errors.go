package extraction

import (
	"errors"
	"fmt"

	"switchfacts/internal/syntax"
)

// FaultKind names a class of extraction fault.
type FaultKind string

const (
	// UnhandledCaseShape: a label of a shape extraction does not support.
	UnhandledCaseShape FaultKind = "unhandled_case_shape"
	// UnhandledPatternShape: a pattern label whose pattern is not supported.
	UnhandledPatternShape FaultKind = "unhandled_pattern_shape"
)

var (
	ErrUnhandledCaseShape    = errors.New("unhandled case label shape")
	ErrUnhandledPatternShape = errors.New("case pattern not handled")
)

// InternalError reports a syntax form extraction cannot handle. It is
// recoverable: the surrounding switch keeps going.
type InternalError struct {
	Kind   FaultKind
	Span   syntax.Span
	Detail string
}

// NewInternalError builds an InternalError.
func NewInternalError(kind FaultKind, span syntax.Span, format string, args ...interface{}) *InternalError {
	return &InternalError{Kind: kind, Span: span, Detail: fmt.Sprintf(format, args...)}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Span, e.Unwrap(), e.Detail)
}

// Unwrap maps the kind onto its sentinel so callers can use errors.Is.
func (e *InternalError) Unwrap() error {
	switch e.Kind {
	case UnhandledCaseShape:
		return ErrUnhandledCaseShape
	case UnhandledPatternShape:
		return ErrUnhandledPatternShape
	}
	return nil
}

// AsInternal unwraps err to an InternalError.
func AsInternal(err error) (*InternalError, bool) {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
