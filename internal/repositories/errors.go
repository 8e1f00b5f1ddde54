package repositories

import "errors"

// Common repository errors
var (
	// ErrInvalidArgument reports a missing or empty query, record or update.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicateKey reports that a record matching the lookup already exists.
	ErrDuplicateKey = errors.New("duplicate key violation")
	// ErrStoreFailure wraps any error returned by the database.
	ErrStoreFailure = errors.New("store operation failed")
)

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string {
	return e.op + ": " + ErrStoreFailure.Error() + ": " + e.err.Error()
}

func (e *storeError) Is(target error) bool {
	return target == ErrStoreFailure
}

func (e *storeError) Unwrap() error {
	return e.err
}
