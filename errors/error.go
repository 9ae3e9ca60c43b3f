package errors

import (
	"fmt"
)

// ConfigurationError occurs when a reduce table is constructed with an invalid
// partition count, capacity, key space or memory budget
type ConfigurationError struct{ Message string }

// Error returns a textual representation of this ConfigurationError
func (e ConfigurationError) Error() string {
	return fmt.Sprintf("Invalid reduce table configuration: %s", e.Message)
}

// StorageError occurs when spill I/O fails for a partition. It is fatal and is
// never retried internally - the caller or surrounding scheduler decides what to do
type StorageError struct {
	PartitionID int
	Err         error
}

// Error returns a textual representation of this StorageError
func (e StorageError) Error() string {
	return fmt.Sprintf("Spill storage failure on partition %d: %v", e.PartitionID, e.Err)
}

// Unwrap returns the underlying I/O error
func (e StorageError) Unwrap() error {
	return e.Err
}

// LogicError occurs when a table method is called in a state which forbids it,
// such as Insert after Flush, or a second Flush
type LogicError struct {
	Op    string
	State string
}

// Error returns a textual representation of this LogicError
func (e LogicError) Error() string {
	return fmt.Sprintf("Cannot %s a reduce table which is %s", e.Op, e.State)
}

// ReduceError occurs when a user-supplied ReduceOperation fails. The table is left
// in an undefined state and must be Disposed
type ReduceError struct {
	PartitionID int
	KeyHash     uint64
	Err         error
}

// Error returns a textual representation of this ReduceError
func (e ReduceError) Error() string {
	return fmt.Sprintf("Reduce operation failed on partition %d (key hash %x): %v", e.PartitionID, e.KeyHash, e.Err)
}

// Unwrap returns the error produced by the ReduceOperation
func (e ReduceError) Unwrap() error {
	return e.Err
}
