package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested owner, transaction or config key does not exist.
var ErrNotFound = errors.New("not found")

// IsNotFound returns true if err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError reports an I/O failure in the transaction store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// WrapStoreError wraps a backend failure for op. Backends outside this package use it
// so every store failure can be matched with errors.As.
func WrapStoreError(op string, err error) error {
	return storeErr(op, err)
}

// ConfigMissingError reports that a required configuration key is absent or empty.
type ConfigMissingError struct {
	Key ConfigKey
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("configuration %s is missing", e.Key)
}

// ValidationErrors is the list of user-facing messages produced by Validate.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	switch len(v) {
	case 0:
		return "valid"
	case 1:
		return v[0]
	default:
		return fmt.Sprintf("%s (and %d more)", v[0], len(v)-1)
	}
}
