package store

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Implementation names a backend of the IStore interface.
type Implementation string

const (
	ImplMemory Implementation = "memory"
	ImplBadger Implementation = "badger"
	ImplRedis  Implementation = "redis"
)

// DatabaseInfo holds metadata about the medium behind a store.
type DatabaseInfo struct {
	SizeBytes  int64          `json:"size_bytes"`
	QuotaBytes int64          `json:"quota_bytes,omitempty"`
	Keys       int            `json:"keys"`
	DbType     Implementation `json:"db_type"`
}

// IStore is the interface of the shared key–value persistence medium.
// Every single-key write is atomic: readers observe either the old or the new value, never a mix.
// The medium offers no multi-key transactions.
type IStore interface {
	// Set inserts or updates a key–value pair.
	Set(ctx context.Context, key string, value []byte) (err error)
	// SetIfUnset inserts a key–value pair only if the key does not exist.
	// The boolean reports whether the value was written.
	SetIfUnset(ctx context.Context, key string, value []byte) (ok bool, err error)
	// CompareAndSwap replaces the value of key with value only if the current value equals old.
	CompareAndSwap(ctx context.Context, key string, old, value []byte) (ok bool, err error)
	// CompareAndDelete deletes key only if the current value equals old.
	CompareAndDelete(ctx context.Context, key string, old []byte) (ok bool, err error)
	// Delete deletes a key–value pair. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) (err error)
	// Get return the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(ctx context.Context, key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists in the store.
	Has(ctx context.Context, key string) (loaded bool, err error)
	// Keys returns all keys starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) (keys []string, err error)
	// GetDBInfo returns metadata about the medium underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo(ctx context.Context) (info DatabaseInfo, err error)
	// Close releases the resources held by the store.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The backend error, if any.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store error (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("store error (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the backend error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so sentinels like ErrStorageFull
// can be tested with errors.Is regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new store error wrapping a backend error.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

var (
	// ErrStorageFull is returned when the medium rejects a write because it is out of capacity.
	ErrStorageFull = NewError(RetCStorageFull, "storage full")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = NewError(RetCClosed, "store is closed")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCStorageFull                         // 4: The medium is out of capacity.
	RetCClosed                              // 5: The store was closed.
)

// String returns the name of the return code.
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCStorageFull:
		return "StorageFull"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
