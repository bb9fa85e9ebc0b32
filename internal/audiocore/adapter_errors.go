package audiocore

import (
	"github.com/tphakala/eas-monitor/internal/errors"
)

// TransientError marks an adapter fault that a reconnect may cure, such as
// a dropped stream or an unplugged device.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks an adapter fault that retrying will not fix, such as a
// missing binary or an unsupported format.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Transient wraps err as a recoverable adapter fault. nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Fatal wraps err as an unrecoverable adapter fault. nil stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsTransient reports whether err carries a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether err carries a FatalError. Unclassified errors are
// not fatal.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
