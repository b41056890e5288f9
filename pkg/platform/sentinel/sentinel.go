// Package sentinel holds the store-level facts services translate into coded
// errors. Validation failures do not belong here; use pkg/domain-errors.
package sentinel

import "errors"

var (
	// ErrNotFound: no row for the key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a version compare-and-swap lost to a concurrent writer.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed: a unique slot is taken, such as an acknowledgement code
	// or an application's single certificate.
	ErrAlreadyUsed = errors.New("already used")
	// ErrTimeout: the store did not answer within the transaction bound.
	ErrTimeout = errors.New("timeout")
)
