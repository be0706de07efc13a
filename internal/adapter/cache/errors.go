package cache

import "errors"

// ErrKeyNotFound is returned by Get for a missing or expired key.
var ErrKeyNotFound = errors.New("cache: key not found")

// Op names used in Error.
const (
	OpGet = "GET"
	OpSet = "SET"
)

// Error wraps a backend failure with the operation name.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
