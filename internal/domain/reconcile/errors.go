package reconcile

import (
	"errors"
	"fmt"
)

// ErrKeyConflict is the kind of every KeyConflictError.
var ErrKeyConflict = errors.New("canonical key held by another identity")

// KeyConflictError means a group's canonical key already stores a record
// of a different identity. Writing there would overwrite that record.
type KeyConflictError struct {
	Key   string
	Owner string
}

func (e *KeyConflictError) Error() string {
	return fmt.Sprintf("key %q holds a record of %s", e.Key, e.Owner)
}

func (e *KeyConflictError) Unwrap() error { return ErrKeyConflict }
