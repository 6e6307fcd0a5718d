// Package errors is the error type handlers return to pick the status and
// body of an error response.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is an error with an HTTP status and optional per-field details.
type Error struct {
	Status  int
	Err     error
	Details []Detail
}

// Detail points at the part of a request, or the feed, that went wrong.
type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", e.Status, e.message())
	for _, d := range e.Details {
		fmt.Fprintf(&b, "; %s: %s", d.Field, d.Error)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Falls back to the status text when nothing was wrapped.
func (e *Error) message() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}
	return e.Err.Error()
}

// The body clients see.
type body struct {
	Message string   `json:"message"`
	Details []Detail `json:"details,omitempty"`
	Status  int      `json:"status"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(body{
		Message: e.message(),
		Details: e.Details,
		Status:  e.Status,
	})
}

func (e *Error) UnmarshalJSON(byts []byte) error {
	var b body
	if err := json.Unmarshal(byts, &b); err != nil {
		return err
	}

	*e = Error{
		Status:  b.Status,
		Err:     errors.New(b.Message),
		Details: b.Details,
	}
	return nil
}

// E builds an Error out of whatever it's given: a string or error becomes
// the wrapped error, an int the status, and details are appended. The
// status defaults to 500.
func E(args ...any) *Error {
	ret := &Error{Status: http.StatusInternalServerError}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}

// As pulls the structured error out of err's chain. Anything else is
// reported as a bare 500 so internals don't leak into responses.
func As(err error) (*Error, bool) {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr, true
	}

	return E(http.StatusInternalServerError, "internal server error"), false
}
