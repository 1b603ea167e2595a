package cqrs

import (
	"errors"
	"fmt"

	"github.com/code19m/errx"
)

const detailsValidationErrors = "validation_errors"

// ValidationError is one problem found in the input of an operation.
// Field is empty for errors that are not tied to a single field.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewBadRequest builds the error returned when input validation fails.
// The full list is kept in the error details and field errors are exposed as errx fields.
func NewBadRequest(errs []ValidationError) error {
	fields := make(errx.M)
	for _, e := range errs {
		if e.Field != "" {
			fields[e.Field] = e.Message
		}
	}

	return errx.New(
		"Validation errors",
		errx.WithCode(CodeBadRequest),
		errx.WithType(errx.T_Validation),
		errx.WithFields(fields),
		errx.WithDetails(errx.D{detailsValidationErrors: errs}),
	)
}

// ValidationErrorsOf returns the validation errors carried by a bad request error.
func ValidationErrorsOf(err error) []ValidationError {
	var e errx.ErrorX
	if !errors.As(err, &e) || e.Code() != CodeBadRequest {
		return nil
	}
	errs, _ := e.Details()[detailsValidationErrors].([]ValidationError)
	return errs
}

// CommandRuntimeError wraps a failure raised inside a handler body.
type CommandRuntimeError struct {
	Command string
	Err     error
}

func (e *CommandRuntimeError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandRuntimeError) Unwrap() error {
	return e.Err
}

// UnwrapRuntimeError returns the cause of a CommandRuntimeError, or err itself.
func UnwrapRuntimeError(err error) error {
	var rte *CommandRuntimeError
	if errors.As(err, &rte) && rte.Err != nil {
		return rte.Err
	}
	return err
}
