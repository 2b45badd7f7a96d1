package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an exact-one operation matches zero rows or
	// more than one row.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownField is returned when a filter, change, or ordering names a
	// column the row type does not have. Nothing is sent to the store.
	ErrUnknownField = errors.New("unknown field")
)

// Error describes a failed table operation.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
