package docstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations.
var (
	// ErrInvalidArgument indicates a malformed request (length mismatch,
	// empty delete selector, bad filter key).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCollectionNotFound indicates the named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrClosed indicates the client was used after Close.
	ErrClosed = errors.New("store closed")
)

// Kind classifies a store failure.
type Kind int

const (
	// KindTransport covers I/O, driver and storage failures.
	KindTransport Kind = iota
	// KindInvalidArgument covers rejected requests.
	KindInvalidArgument
	// KindNotFound covers missing collections.
	KindNotFound
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	default:
		return "transport"
	}
}

// StoreError wraps every failure returned at the store boundary.
type StoreError struct {
	Op         string
	Collection string
	Kind       Kind
	Err        error
}

// Error implements error.
func (e *StoreError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("docstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("docstore: %s %s: %v", e.Op, e.Collection, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewError wraps err as a *StoreError. The Kind is derived from the
// sentinels err wraps. An err that already is a *StoreError is returned as is.
func NewError(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	kind := KindTransport
	switch {
	case errors.Is(err, ErrInvalidArgument):
		kind = KindInvalidArgument
	case errors.Is(err, ErrCollectionNotFound):
		kind = KindNotFound
	}
	return &StoreError{Op: op, Collection: collection, Kind: kind, Err: err}
}

// KindOf returns the Kind of err. Errors that are not a *StoreError are
// reported as KindTransport.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransport
}
