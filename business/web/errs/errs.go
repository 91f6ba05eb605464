// Package errs provides types and support related to web v1 functionality.
package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/statecore/foundation/blockchain/validity"
	"github.com/ardanlabs/statecore/foundation/validate"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (re *Trusted) Error() string {
	return re.Err.Error()
}

// Unwrap returns the wrapped error.
func (re *Trusted) Unwrap() error {
	return re.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var re *Trusted
	return errors.As(err, &re)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var re *Trusted
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// ToResponse converts an error the application knows about into the
// response and status sent to the client. Unknown errors are hidden.
func ToResponse(err error) (Response, int) {
	switch {
	case validate.IsFieldErrors(err):
		fieldErrors := validate.GetFieldErrors(err)
		return Response{Error: "data validation error", Fields: fieldErrors.Fields()}, http.StatusBadRequest

	case validity.IsInvalid(err):
		reason, _ := validity.ReasonOf(err)
		return Response{Error: err.Error(), Reason: reason.String()}, http.StatusBadRequest

	case IsTrusted(err):
		trsErr := GetTrusted(err)
		return Response{Error: trsErr.Error()}, trsErr.Status
	}

	return Response{Error: http.StatusText(http.StatusInternalServerError)}, http.StatusInternalServerError
}
