package driver

import "errors"

var (
	// ErrSpawnFailed is returned when the capture or playback process could not be started
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrStreamClosed signals that the capture process closed its output stream
	ErrStreamClosed = errors.New("stream closed")

	// ErrReadFailed wraps any non-EOF failure while reading the capture stream
	ErrReadFailed = errors.New("read failed")

	// ErrProcessGone is reported when a signal is delivered to a process that
	// has already exited. Stop paths treat it as success.
	ErrProcessGone = errors.New("process already exited")
)

// ValidationError is a custom error type for invalid parameters, reported
// synchronously before any process is spawned.
type ValidationError struct {
	msg string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg}
}

func (e *ValidationError) Error() string {
	return e.msg
}

// RuntimeError is a custom error type for runtime errors
type RuntimeError struct {
	msg string
}

func NewRuntimeError(msg string) *RuntimeError {
	return &RuntimeError{msg}
}

func (e *RuntimeError) Error() string {
	return e.msg
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
