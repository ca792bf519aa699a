package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnexpectedStatus is matched by every StatusError.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// StatusError is returned when the manager answers with a status code that
// the caller did not accept.
type StatusError struct {
	Method   string
	Path     string
	Code     int
	Expected []int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: return code '%d' not in list of expected codes: %v\n %s",
		e.Method, e.Path, e.Code, e.Expected, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// IsStatus reports whether err is a StatusError carrying code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
