package service

import "fmt"

// Error is a client-facing failure with a stable wire code.
type Error struct {
	Code   string
	Detail string
	Status int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func newError(code, detail string, status int) *Error {
	return &Error{Code: code, Detail: detail, Status: status}
}
