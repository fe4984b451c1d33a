package partition

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRecords is wrapped by every ValidationError.
	ErrInvalidRecords = errors.New("partition records violate timeline invariants")
	// ErrEmptyRange is returned when a Partitioner is built over a zero-length range.
	ErrEmptyRange = errors.New("time range is empty")

	ErrInvalidIndex           = errors.New("partition index out of bounds")
	ErrOutOfRange             = errors.New("cut point is not strictly inside the partition")
	ErrWouldViolateContiguity = errors.New("edit would move a partition boundary")

	// ErrNoGateway is returned by SavePartitionsToDatabase when no gateway was configured.
	ErrNoGateway = errors.New("no persistence gateway configured")
	// ErrSingleSelection is returned by range selection on a Single-mode track.
	ErrSingleSelection = errors.New("track only allows a single selection")
)

// ValidationError describes the first record that broke an invariant during
// construction or reload.
type ValidationError struct {
	Index  int
	Reason string
	Err    error // optional cause, e.g. an unknown category
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("record %d: %s", e.Index, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return ErrInvalidRecords.Error() + ": " + msg
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidRecords}
	}
	return []error{ErrInvalidRecords, e.Err}
}

// CutError is returned by CutPartition.
type CutError struct {
	Index int
	At    time.Time
	Err   error
}

func (e *CutError) Error() string {
	return fmt.Sprintf("cut partition %d at %d: %s", e.Index, e.At.UnixMilli(), e.Err)
}

func (e *CutError) Unwrap() error { return e.Err }

// ModifyError is returned by ModifyPartition.
type ModifyError struct {
	Index int
	Err   error
}

func (e *ModifyError) Error() string {
	return fmt.Sprintf("modify partition %d: %s", e.Index, e.Err)
}

func (e *ModifyError) Unwrap() error { return e.Err }
