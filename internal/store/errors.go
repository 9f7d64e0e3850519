// internal/store/errors.go
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired means no owner identity is established. Fatal for
	// the attempted operation, never retried automatically.
	ErrAuthRequired = errors.New("authentication required")

	// ErrNotFound means the target record is absent under the current
	// owner scope (including toggle/update/delete races that lost).
	ErrNotFound = errors.New("task not found")
)

// TransientError wraps a network or backend failure. The caller decides
// whether to retry; the store never retries internally.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAuthRequired(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
