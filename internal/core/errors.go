package core

import "errors"

var (
	// ErrUpstream means the text-analysis model could not be reached or
	// failed. It is fatal to the request.
	ErrUpstream = errors.New("upstream dependency error")
	// ErrValidation means a required request field is missing.
	ErrValidation = errors.New("validation error")
)

// validationError carries a message meant for the client and matches
// ErrValidation.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func (e validationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return validationError{msg: msg} }
