package describer

import (
	"errors"
	"fmt"
)

// Fallback messages used when the service gives no usable detail
const (
	unknownServerError = "An unknown server error occurred."
	emptyDescription   = "Received an empty description from the server."
)

// ErrEmptyDescription is returned when a 2xx response has no usable description
var ErrEmptyDescription = errors.New(emptyDescription)

// ServiceError is a non-2xx answer from the description service.
// Its message is what the user hears after "Analysis failed: ".
type ServiceError struct {
	StatusCode int
	Detail     string
}

func (e *ServiceError) Error() string {
	return e.Detail
}

// TransportError wraps a failure to reach the service or read its answer
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newServiceError(status int, detail string) *ServiceError {
	if detail == "" {
		detail = fmt.Sprintf("HTTP error! Status: %d", status)
	}
	return &ServiceError{StatusCode: status, Detail: detail}
}
