package bas

import (
	"errors"
	"fmt"
)

// CompileErrorCode categorizes label compilation failures.
type CompileErrorCode string

const (
	// ErrCodeUnknownSource indicates the mapping references a source
	// name the caller did not supply. This is mapping/config drift,
	// never a zero-fallback.
	ErrCodeUnknownSource CompileErrorCode = "UNKNOWN_SOURCE"

	// ErrCodeBadMapping indicates a structurally broken mapping
	// document.
	ErrCodeBadMapping CompileErrorCode = "BAD_MAPPING"

	// ErrCodeBadValue indicates a path terminated on a value that
	// cannot be coerced to a decimal.
	ErrCodeBadValue CompileErrorCode = "BAD_VALUE"
)

// CompileError reports a label compilation failure with the label and
// source that triggered it.
type CompileError struct {
	Code    CompileErrorCode
	Label   string
	Source  string
	Message string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	switch {
	case e.Label != "" && e.Source != "":
		return fmt.Sprintf("%s: label %s, source %q: %s", e.Code, e.Label, e.Source, e.Message)
	case e.Label != "":
		return fmt.Sprintf("%s: label %s: %s", e.Code, e.Label, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsUnknownSource reports whether err is an UNKNOWN_SOURCE compilation
// failure. Uses errors.As to handle wrapped errors.
func IsUnknownSource(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Code == ErrCodeUnknownSource
}
