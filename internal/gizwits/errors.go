package gizwits

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrLogin = errors.New("login failed")

// StatusError is returned when the cloud answers with a non-200 status.
type StatusError struct {
	Status  int
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gizwits: status %d", e.Status)
	}
	return fmt.Sprintf("gizwits: status %d: %s (code %d)", e.Status, e.Message, e.Code)
}

// IsAuthFailure reports whether err is a 401/403 answer, meaning the token
// was rejected.
func IsAuthFailure(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden
}
