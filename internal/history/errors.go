package history

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an id has no resolvable index entry or blob
var ErrNotFound = errors.New("history entry not found")

// PersistenceError reports a failed read or write against the store
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
