// Package storage implements the pluggable ordered key/value substrate
// spec.md §4.1 calls the "storage driver": bytes in/out through named
// trees, with batch operations and prefix scans.
//
// The interface is deliberately narrower than a full database: a Driver
// only deals in trees and raw bytes. Higher layers (pkg/graph's
// persistence, pkg/textindex's segment storage, pkg/auth's user catalog)
// own the encoding. This mirrors the teacher's storage.Engine (grounded on
// pkg/storage/types.go) generalized one level down: the teacher's Engine
// is graph-shaped (CreateNode/CreateEdge); spec.md asks for a
// graph-agnostic byte store that the graph cache is layered on top of, the
// way krotik-eliasdb's graph/graphstorage sits on its storage/file package.
package storage

import "errors"

// ErrKind classifies a StorageDriverError per spec.md §7.
type ErrKind int

const (
	ErrKindNotFound ErrKind = iota
	ErrKindBackendSpecific
	ErrKindInvalidArgument
)

// DriverError is the typed error union spec.md §4.1 requires every
// operation to return.
type DriverError struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *DriverError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DriverError) Unwrap() error { return e.Cause }

func NotFound(msg string) *DriverError {
	return &DriverError{Kind: ErrKindNotFound, Message: msg}
}

func BackendSpecific(msg string, cause error) *DriverError {
	return &DriverError{Kind: ErrKindBackendSpecific, Message: msg, Cause: cause}
}

func InvalidArgument(msg string) *DriverError {
	return &DriverError{Kind: ErrKindInvalidArgument, Message: msg}
}

// IsNotFound reports whether err is (or wraps) a not-found DriverError.
func IsNotFound(err error) bool {
	var de *DriverError
	if errors.As(err, &de) {
		return de.Kind == ErrKindNotFound
	}
	return false
}

// KV is one key/value pair surfaced by an iteration.
type KV struct {
	Key   []byte
	Value []byte
}

// BatchOp is a single operation within a batch write; Value is nil for a
// remove.
type BatchOp struct {
	Key    []byte
	Value  []byte
	Remove bool
}

// Tree is a named ordered key/value namespace (spec.md's "Tree" in the
// glossary). Point operations, full and prefix iteration, and atomic
// batch application are all required; the contract is that every op
// commits ACID-per-operation inside the underlying driver.
type Tree interface {
	Name() string

	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)

	Clear() error
	Empty() (bool, error)

	// All iterates every key in ascending order. The callback returning
	// false stops iteration early.
	All(fn func(k, v []byte) bool) error

	// Prefix iterates every key sharing the given prefix, in ascending
	// order. Implementations must keep this efficient (spec.md §4.1) by
	// relying on the underlying backend's native ordering rather than a
	// full scan-and-filter.
	Prefix(prefix []byte, fn func(k, v []byte) bool) error

	// Batch applies every op atomically; either all operations are
	// visible or none are.
	Batch(ops []BatchOp) error
}

// Driver is the top-level storage handle returned by Open. A concrete
// driver is fixed for the lifetime of the handle, per spec.md §4.1.
type Driver interface {
	OpenTree(name string) (Tree, error)
	ListTrees() ([]string, error)
	DropTree(name string) error
	Flush() error
	Close() error
}
