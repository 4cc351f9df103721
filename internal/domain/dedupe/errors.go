package dedupe

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is the kind of every MalformedRecordError.
var ErrMalformedRecord = errors.New("malformed score record")

// MalformedRecordError describes a record that cannot be grouped.
type MalformedRecordError struct {
	Key    string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %q: %s", e.Key, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }
