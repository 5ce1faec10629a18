package challenge

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("challenge: no such challenge")
	ErrExpired       = errors.New("challenge: challenge has expired")
	ErrSpent         = errors.New("challenge: challenge has already been used")
	ErrInvalidTarget = errors.New("challenge: invalid thread or parent target")
	ErrInvalidOpID   = errors.New("challenge: client operation id must be a UUID")
	ErrMinerVersion  = errors.New("challenge: miner version is too old")
	ErrWrongScope    = errors.New("challenge: challenge was issued for a different scope")
)

// Error is a challenge failure with a reason that is safe to show clients
// and a private cause that is only logged.
type Error struct {
	Verb          string
	PublicReason  string
	PrivateReason error
	StatusCode    int
}

func NewError(verb, publicReason string, privateReason error) *Error {
	return &Error{
		Verb:          verb,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
		StatusCode:    http.StatusBadRequest,
	}
}

// WithStatus sets the HTTP status reported for the error.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("challenge: error when processing challenge: %s: %v", e.Verb, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}
