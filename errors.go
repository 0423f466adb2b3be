package automata

import (
	"errors"
	"fmt"

	"github.com/gogpu/automata/program"
)

// Runtime errors.
var (
	// ErrExhaustedCapacity is returned by Allocator.Allocate when every id
	// is in use.
	ErrExhaustedCapacity = errors.New("automata: allocator capacity exhausted")

	// ErrBadIndex is returned for instance ids outside [0, Size()).
	ErrBadIndex = errors.New("automata: instance index out of range")

	// ErrShortBuffer is returned when a caller buffer is smaller than the
	// data it must hold.
	ErrShortBuffer = errors.New("automata: buffer too small")

	// ErrClosed is returned by operations on a closed simulator.
	ErrClosed = errors.New("automata: simulator closed")

	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered.
	ErrBackendNotAvailable = errors.New("automata: backend not available")

	// ErrBackendFailure matches every *BackendError.
	ErrBackendFailure = errors.New("automata: backend failure")
)

// Compile errors, re-exported from package program.
var (
	ErrInvalidDescriptor     = program.ErrInvalidDescriptor
	ErrDuplicateParameter    = program.ErrDuplicateParameter
	ErrUnresolvedPlaceholder = program.ErrUnresolvedPlaceholder
)

// BackendError reports a failure inside an execution backend.
//
// errors.Is(err, ErrBackendFailure) holds for every BackendError, and Unwrap
// exposes the underlying cause.
type BackendError struct {
	Backend string // "cpu", "gpu", ...
	Op      string // operation that failed, e.g. "dispatch"
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("automata: %s backend: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is reports whether target is ErrBackendFailure.
func (e *BackendError) Is(target error) bool { return target == ErrBackendFailure }
