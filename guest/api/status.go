// Package api holds the types guest service modules share with the host ABI.
package api

// Status represents the status of a guest method.
type Status struct {
	Code   StatusCode
	Reason string
}

type StatusCode int32

// These are predefined codes used in a Status.
const (
	// Completed without errors.
	StatusCodeSuccess StatusCode = iota
	// Exited with unexpected errors.
	StatusCodeError
	// Rejected its arguments.
	StatusCodeInvalidArgument
)

// Error returns a failed status carrying err's message, or nil for a nil err.
func Error(err error) *Status {
	if err == nil {
		return nil
	}
	return &Status{Code: StatusCodeError, Reason: err.Error()}
}

// InvalidArgument returns a status rejecting the call's arguments.
func InvalidArgument(reason string) *Status {
	return &Status{Code: StatusCodeInvalidArgument, Reason: reason}
}
