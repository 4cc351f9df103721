package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for collection errors. Typed errors below unwrap to them,
// so callers can use either errors.Is or errors.As.
var (
	ErrRead      = errors.New("collection read failed")
	ErrWrite     = errors.New("collection write failed")
	ErrDelete    = errors.New("collection delete failed")
	ErrBadTable  = errors.New("invalid table name")
	ErrBadDriver = errors.New("unknown store driver")
)

// ReadError reports that the collection could not be enumerated.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read collection: %v", e.Err) }

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *ReadError) Unwrap() []error { return []error{ErrRead, e.Err} }

// WriteError reports a failed put of a single record.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %q: %v", e.Key, e.Err) }

func (e *WriteError) Unwrap() []error { return []error{ErrWrite, e.Err} }

// DeleteError reports a failed delete of a single record.
type DeleteError struct {
	Key string
	Err error
}

func (e *DeleteError) Error() string { return fmt.Sprintf("delete %q: %v", e.Key, e.Err) }

func (e *DeleteError) Unwrap() []error { return []error{ErrDelete, e.Err} }
