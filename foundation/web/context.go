package web

import (
	"context"
	"errors"
	"time"
)

type ctxKey int

const valuesKey ctxKey = 1

// Values carry request-scoped metadata a handler can use for logging
// and response shaping.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// GetValues returns the Values stored for this request's context.
func GetValues(ctx context.Context) (*Values, error) {
	v, ok := ctx.Value(valuesKey).(*Values)
	if !ok {
		return nil, errors.New("web: values missing from context")
	}
	return v, nil
}

// GetTraceID returns the trace id from the context, or "00000000-..."
// if none is present — useful in code paths that may run outside a
// request (tests, background workers).
func GetTraceID(ctx context.Context) string {
	v, ok := ctx.Value(valuesKey).(*Values)
	if !ok {
		return "00000000-0000-0000-0000-000000000000"
	}
	return v.TraceID
}

// shutdownError is a type used to help with the graceful termination
// of the service when integrity issues are identified.
type shutdownError struct {
	Message string
}

// NewShutdownError returns an error that causes the framework to
// signal a graceful shutdown.
func NewShutdownError(message string) error {
	return &shutdownError{message}
}

// Error implements the error interface.
func (se *shutdownError) Error() string {
	return se.Message
}

// IsShutdown checks to see if the shutdown error is contained in the
// specified error value.
func IsShutdown(err error) bool {
	var se *shutdownError
	return errors.As(err, &se)
}
