package fault

import (
	"errors"
	"fmt"
)

type faultCode string

const (
	UnknownCode  faultCode = "unknown"
	NotFoundCode faultCode = "not_found"
	BadInputCode faultCode = "bad_input"
	// InvalidConfigCode marks misconfiguration detected at startup. Components
	// returning it must not be started.
	InvalidConfigCode faultCode = "invalid_config"
)

type FieldErrorsMetadata map[string][]string

// Fault is an error carrying a machine readable code next to a human message.
type Fault struct {
	code     faultCode
	message  string
	metadata any
	original error
}

func New(code faultCode, message string) Fault {
	return Fault{
		code:    code,
		message: message,
	}
}

// Configf is a shorthand for an InvalidConfigCode fault with a formatted message.
func Configf(format string, args ...any) Fault {
	return New(InvalidConfigCode, fmt.Sprintf(format, args...))
}

func (f Fault) WithMetadata(metadata any) Fault {
	e := f
	e.metadata = metadata
	return e
}

func (f Fault) WithOriginal(original error) Fault {
	e := f
	e.original = original
	return e
}

func (f Fault) Code() faultCode {
	return f.code
}

func (f Fault) Message() string {
	return f.message
}

func (f Fault) Metadata() any {
	return f.metadata
}

func (f Fault) Original() error {
	return f.original
}

func (f Fault) Unwrap() error {
	return f.original
}

func (f Fault) Error() string {
	if f.original != nil {
		return fmt.Sprintf("%s: %v", f.message, f.original)
	}
	return f.message
}

// Is reports whether err is, or wraps, a Fault with the given code.
func Is(err error, code faultCode) bool {
	var f Fault
	return errors.As(err, &f) && f.code == code
}
