package faults

import (
	"errors"
	"fmt"
	"strings"
)

type Category string

const (
	// Generation-time categories. All of them abort the generation run.
	SpecParseError               Category = "SpecParseError"
	AmbiguousClassificationError Category = "AmbiguousClassificationError"
	MissingIdParamError          Category = "MissingIdParamError"

	// Apply-time categories. These abort only the current resource's
	// convergence; sibling resources are unaffected.
	CreateFailedError    Category = "CreateFailedError"
	AmbiguousLookupError Category = "AmbiguousLookupError"
	NoListFoundError     Category = "NoListFoundError"
	TimeoutError         Category = "TimeoutError"

	NotFoundError   Category = "NotFoundError"
	ValidationError Category = "ValidationError"
	TransportError  Category = "TransportError"
	APIError        Category = "APIError"
)

// Error carries enough context to diagnose a failure without re-running the
// generation or convergence in a debugger: the resource tag, the identifier
// or lookup value that was being processed, and the API's own status code and
// structured error code when one was returned.
type Error struct {
	Category   Category
	Resource   string
	Target     string
	StatusCode int
	APICode    string
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	var sb strings.Builder
	sb.WriteString(string(e.Category))
	if e.Resource != "" {
		sb.WriteString(": resource ")
		sb.WriteString(e.Resource)
	}
	if e.Target != "" {
		sb.WriteString(" target ")
		sb.WriteString(e.Target)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (status %d", e.StatusCode)
		if e.APICode != "" {
			sb.WriteString(", code ")
			sb.WriteString(e.APICode)
		}
		sb.WriteString(")")
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func New(category Category, message string, cause error) *Error {
	return &Error{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsCategory reports whether any fault in err's chain carries the category.
// Wrapping faults keep their causes visible: a CreateFailedError wrapping an
// APIError answers true for both.
func IsCategory(err error, category Category) bool {
	for err != nil {
		var typed *Error
		if !errors.As(err, &typed) {
			return false
		}
		if typed.Category == category {
			return true
		}
		err = typed.Unwrap()
	}
	return false
}

// StatusOf reports the HTTP status carried by err, or zero when err carries
// none.
func StatusOf(err error) int {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.StatusCode
	}
	return 0
}
