package web

import "errors"

// Trusted wraps an error the handler expected and already classified
// with an HTTP status, as opposed to an error bubbling up from deeper,
// unclassified failure.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps err with status, marking it safe to surface to the
// client via its own Error() text.
func NewTrusted(err error, status int) error {
	return &Trusted{Err: err, Status: status}
}

// Error implements the error interface.
func (t *Trusted) Error() string {
	return t.Err.Error()
}

// GetTrusted returns the *Trusted wrapped by err, or nil if err does
// not wrap one.
func GetTrusted(err error) *Trusted {
	var t *Trusted
	if !errors.As(err, &t) {
		return nil
	}
	return t
}

// AsValidationError reports whether err wraps a *ValidationError,
// assigning it to target on success.
func AsValidationError(err error, target **ValidationError) bool {
	return errors.As(err, target)
}
