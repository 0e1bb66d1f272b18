package bsn

import (
	"errors"
	"fmt"

	"github.com/florianilch/bsncloud/internal/session"
)

// APIError is the structured failure for login, network selection and API
// responses.
type APIError = session.Error

// Error codes carried by APIError.
const (
	CodeConfiguration    = session.CodeConfiguration
	CodeAuthentication   = session.CodeAuthentication
	CodeNetworkSelection = session.CodeNetworkSelection
	CodeHTTPStatus       = session.CodeHTTPStatus
	CodeInvalidResponse  = session.CodeInvalidResponse
)

// Kind classifies a ValidationError.
type Kind int

const (
	// KindBadArgument is an argument that is missing, malformed or out of range.
	KindBadArgument Kind = iota + 1
	// KindNotFound is a referenced local resource that does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBadArgument:
		return "bad argument"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

var (
	// ErrBadArgument matches ValidationErrors of KindBadArgument.
	ErrBadArgument = errors.New("bad argument")
	// ErrNotFound matches ValidationErrors of KindNotFound.
	ErrNotFound = errors.New("not found")
)

// ValidationError is returned when arguments are rejected before any request
// is sent.
type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s %s", e.Kind, e.Field, e.Message)
}

// Is matches ErrBadArgument and ErrNotFound by kind.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrBadArgument:
		return e.Kind == KindBadArgument
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func badArgument(field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: KindBadArgument, Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFound(field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: KindNotFound, Field: field, Message: fmt.Sprintf(format, args...)}
}
